package framework

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/manifest"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/storage"
)

// SystemBundleName always denotes the system bundle.
const SystemBundleName = "system.bundle"

// Bundle is one loadable unit.
type Bundle struct {
	id       int64
	location string
	manifest *manifest.Manifest
	storage  storage.Storage // nil for the built-in system bundle
	loader   *Loader
	system   bool

	mu        sync.RWMutex
	state     State
	activator Activator
	changedAt time.Time
}

func newBundle(l *Loader, id int64, location string, m *manifest.Manifest, s storage.Storage) *Bundle {
	return &Bundle{
		id:        id,
		location:  location,
		manifest:  m,
		storage:   s,
		loader:    l,
		system:    m.IsSystemBundle(),
		state:     Installed,
		changedAt: time.Now(),
	}
}

// ID returns the install order number of the bundle. The system bundle is 0.
func (b *Bundle) ID() int64 { return b.id }

// SymbolicName returns the unique name from the manifest.
func (b *Bundle) SymbolicName() string { return b.manifest.SymbolicName() }

// Location returns the directory or archive the bundle was created from.
func (b *Bundle) Location() string { return b.location }

// Manifest returns the parsed bundle manifest.
func (b *Bundle) Manifest() *manifest.Manifest { return b.manifest }

// IsSystemBundle reports whether this is the distinguished system bundle.
func (b *Bundle) IsSystemBundle() bool { return b.system }

// Dependencies returns the symbolic names from Require-Bundle.
func (b *Bundle) Dependencies() []string { return b.manifest.RequiredBundles() }

// ActivationPolicy returns whether the bundle starts eagerly or only when
// another bundle requires it.
func (b *Bundle) ActivationPolicy() manifest.Policy { return b.manifest.ActivationPolicy() }

// ActivatorClass returns the activator class name, empty when none is set.
func (b *Bundle) ActivatorClass() string { return b.manifest.Activator() }

// ActivatorLibrary returns the library the activator is created from.
func (b *Bundle) ActivatorLibrary() string { return b.manifest.ActivatorLibrary() }

// State returns the current lifecycle state.
func (b *Bundle) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// StateChangedAt returns when the bundle last changed state.
func (b *Bundle) StateChangedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.changedAt
}

func (b *Bundle) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.changedAt = time.Now()
	b.mu.Unlock()
}

func (b *Bundle) currentActivator() Activator {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.activator
}

func (b *Bundle) setActivator(a Activator) {
	b.mu.Lock()
	b.activator = a
	b.mu.Unlock()
}

// IsResolved reports whether the bundle's dependencies were resolved. It
// stays true while the bundle is starting, active or stopping.
func (b *Bundle) IsResolved() bool {
	return b.State() >= Resolved
}

// IsStarted reports whether the activator's start hook was entered and the
// bundle has not been stopped.
func (b *Bundle) IsStarted() bool {
	s := b.State()
	return s == Starting || s == Active
}

// IsActive reports whether the bundle is ACTIVE.
func (b *Bundle) IsActive() bool {
	return b.State() == Active
}

// GetResource opens a resource of the bundle by slash-separated path.
func (b *Bundle) GetResource(path string) (io.ReadCloser, error) {
	if b.storage == nil {
		return nil, fmt.Errorf("bundle %s has no resources", b.SymbolicName())
	}
	return b.storage.Open(path)
}

// HasResource reports whether the bundle contains path.
func (b *Bundle) HasResource(path string) bool {
	return b.storage != nil && b.storage.Exists(path)
}

// Storage returns the bundle's storage, nil for the built-in system bundle.
func (b *Bundle) Storage() storage.Storage { return b.storage }

// Resolve resolves the bundle and its dependencies. It does nothing unless
// the bundle is INSTALLED.
func (b *Bundle) Resolve() error {
	return b.loader.resolve(b)
}

// Start starts a RESOLVED bundle after its dependencies. Starting a bundle
// in any other state is a StateError and its activator is not called.
func (b *Bundle) Start() error {
	if s := b.State(); s != Resolved {
		return &StateError{Bundle: b.SymbolicName(), State: s, Op: "start"}
	}
	return b.loader.StartBundle(b)
}

// Stop stops an ACTIVE bundle and the active bundles requiring it. Stopping
// a bundle in any other state is a StateError.
func (b *Bundle) Stop() error {
	if s := b.State(); s != Active {
		return &StateError{Bundle: b.SymbolicName(), State: s, Op: "stop"}
	}
	return b.loader.StopBundle(b)
}

func (b *Bundle) String() string {
	return fmt.Sprintf("%s [%d] %s", b.SymbolicName(), b.id, b.State())
}
