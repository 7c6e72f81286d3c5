package service

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/platform/internal/shared/id"
)

// EventType identifies a change to a registration.
type EventType int

const (
	Registered EventType = iota + 1
	Modified
	Unregistering
)

func (t EventType) String() string {
	switch t {
	case Registered:
		return "REGISTERED"
	case Modified:
		return "MODIFIED"
	case Unregistering:
		return "UNREGISTERING"
	default:
		return "UNKNOWN"
	}
}

// Event is delivered to service listeners.
type Event struct {
	Type      EventType
	Reference *Reference
}

// Listener receives service events synchronously.
type Listener func(Event)

type listenerEntry struct {
	id      id.ListenerID
	context string
	filter  *Filter
	fn      Listener
}

// AddServiceListener registers fn for events whose reference matches filter.
// The filter is validated immediately.
func (r *Registry) AddServiceListener(ctx BundleContext, fn Listener, filter string) (id.ListenerID, error) {
	if fn == nil {
		return "", ErrNilService
	}
	f, err := ParseFilter(filter)
	if err != nil {
		return "", err
	}

	entry := &listenerEntry{
		id:      id.NewListenerID(),
		context: ctx.ContextID(),
		filter:  f,
		fn:      fn,
	}

	r.listenerMu.Lock()
	r.listeners = append(r.listeners, entry)
	r.listenerMu.Unlock()

	return entry.id, nil
}

// RemoveServiceListener removes one listener registered by ctx.
func (r *Registry) RemoveServiceListener(ctx BundleContext, listenerID id.ListenerID) bool {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()

	for i, entry := range r.listeners {
		if entry.id == listenerID && entry.context == ctx.ContextID() {
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAllServiceListeners removes every listener registered by ctx and
// returns how many there were.
func (r *Registry) RemoveAllServiceListeners(ctx BundleContext) int {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()

	kept := make([]*listenerEntry, 0, len(r.listeners))
	for _, entry := range r.listeners {
		if entry.context != ctx.ContextID() {
			kept = append(kept, entry)
		}
	}
	removed := len(r.listeners) - len(kept)
	r.listeners = kept
	return removed
}

// PublishServiceEvent delivers an event to every listener whose filter
// matches the reference, in registration order.
func (r *Registry) PublishServiceEvent(eventType EventType, ref *Reference) {
	r.listenerMu.RLock()
	snapshot := make([]*listenerEntry, len(r.listeners))
	copy(snapshot, r.listeners)
	r.listenerMu.RUnlock()

	r.metrics.RecordServiceEvent(eventType.String())

	if len(snapshot) == 0 {
		return
	}

	props := ref.snapshot()
	event := Event{Type: eventType, Reference: ref}
	for _, entry := range snapshot {
		if !entry.filter.Match(props) {
			continue
		}
		r.deliver(entry, event)
	}
}

func (r *Registry) deliver(entry *listenerEntry, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Service listener panicked",
				zap.String("listener", entry.id.String()),
				zap.String("event", event.Type.String()),
				zap.Any("panic", rec))
		}
	}()
	entry.fn(event)
}

// ListenerCount returns the number of registered service listeners.
func (r *Registry) ListenerCount() int {
	r.listenerMu.RLock()
	defer r.listenerMu.RUnlock()
	return len(r.listeners)
}
