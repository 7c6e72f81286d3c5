package framework

import (
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/platform/internal/shared/id"
)

// BundleEventType identifies a bundle lifecycle transition.
type BundleEventType int

const (
	BundleInstalled BundleEventType = iota + 1
	BundleResolved
	BundleStarting
	BundleStarted
	BundleStopping
	BundleStopped
)

func (t BundleEventType) String() string {
	switch t {
	case BundleInstalled:
		return "INSTALLED"
	case BundleResolved:
		return "RESOLVED"
	case BundleStarting:
		return "STARTING"
	case BundleStarted:
		return "STARTED"
	case BundleStopping:
		return "STOPPING"
	case BundleStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// BundleEvent is delivered to bundle listeners.
type BundleEvent struct {
	Type   BundleEventType
	Bundle *Bundle
	Time   time.Time
}

// BundleListener receives bundle events synchronously.
type BundleListener func(BundleEvent)

type bundleListenerEntry struct {
	id      id.ListenerID
	context string // empty for listeners added on the loader
	fn      BundleListener
}

// AddBundleListener registers fn for every bundle event.
func (l *Loader) AddBundleListener(fn BundleListener) id.ListenerID {
	return l.addBundleListener("", fn)
}

// RemoveBundleListener removes a listener added with AddBundleListener.
func (l *Loader) RemoveBundleListener(listenerID id.ListenerID) bool {
	return l.removeBundleListener("", listenerID)
}

func (l *Loader) addBundleListener(contextID string, fn BundleListener) id.ListenerID {
	entry := bundleListenerEntry{id: id.NewListenerID(), context: contextID, fn: fn}

	l.listenerMu.Lock()
	l.listeners = append(l.listeners, entry)
	l.listenerMu.Unlock()
	return entry.id
}

func (l *Loader) removeBundleListener(contextID string, listenerID id.ListenerID) bool {
	l.listenerMu.Lock()
	defer l.listenerMu.Unlock()

	for i, entry := range l.listeners {
		if entry.id == listenerID && entry.context == contextID {
			l.listeners = append(l.listeners[:i:i], l.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (l *Loader) removeContextListeners(contextID string) {
	l.listenerMu.Lock()
	defer l.listenerMu.Unlock()

	kept := l.listeners[:0:0]
	for _, entry := range l.listeners {
		if entry.context != contextID {
			kept = append(kept, entry)
		}
	}
	l.listeners = kept
}

// emit delivers an event to every listener. It must not be called with l.mu
// held.
func (l *Loader) emit(eventType BundleEventType, b *Bundle) {
	l.listenerMu.RLock()
	snapshot := make([]bundleListenerEntry, len(l.listeners))
	copy(snapshot, l.listeners)
	l.listenerMu.RUnlock()

	l.metrics.RecordBundleEvent(eventType.String())
	l.metrics.SetBundleStates(l.StateCounts())

	event := BundleEvent{Type: eventType, Bundle: b, Time: time.Now()}
	for _, entry := range snapshot {
		l.deliver(entry, event)
	}
}

func (l *Loader) deliver(entry bundleListenerEntry, event BundleEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error("Bundle listener panicked",
				zap.String("listener", entry.id.String()),
				zap.String("event", event.Type.String()),
				zap.Any("panic", rec))
		}
	}()
	entry.fn(event)
}
