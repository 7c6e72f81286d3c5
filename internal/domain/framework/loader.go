package framework

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/codecache"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/extension"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/manifest"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/service"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/storage"
	"github.com/GriffinCanCode/AgentOS/platform/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/platform/internal/shared/paths"
)

// Options configures a Loader. Only Cache is required.
type Options struct {
	Cache      *codecache.Cache
	Registry   *service.Registry
	Extensions *extension.Service

	// Libraries opens the libraries installed in the cache. Defaults to an
	// empty Catalog.
	Libraries LibraryLoader

	// SystemActivator replaces the built-in activator of the system bundle
	SystemActivator Activator

	// Properties are framework properties visible to every Context
	Properties map[string]string

	// ContributionFile is the bundle resource holding extension declarations
	ContributionFile string

	// CopyLibraries forces libraries of directory bundles to be copied into
	// the cache instead of being registered in place
	CopyLibraries bool

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

type bundleInfo struct {
	bundle      *Bundle
	context     *Context
	classLoader *ClassLoader
}

// Loader owns the bundle table and drives the bundle lifecycle.
type Loader struct {
	cache            *codecache.Cache
	registry         *service.Registry
	extensions       *extension.Service
	libraries        LibraryLoader
	systemActivator  Activator
	properties       map[string]string
	contributionFile string
	copyLibraries    bool
	logger           *zap.Logger
	metrics          *monitoring.Metrics

	mu      sync.RWMutex
	bundles map[string]*bundleInfo
	nextID  int64
	system  *Bundle

	resolveMu sync.Mutex

	// startMu serializes activator calls. It is never held together with mu
	// while an activator runs.
	startMu sync.Mutex
	started []*Bundle
	// inHook is the bundle being started or stopped while its hook and
	// listeners run
	inHook atomic.Pointer[Bundle]

	listenerMu sync.RWMutex
	listeners  []bundleListenerEntry
}

// NewLoader creates a loader holding only the built-in system bundle.
func NewLoader(opts Options) (*Loader, error) {
	if opts.Cache == nil {
		return nil, errors.New("loader requires a code cache")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Loader{
		cache:            opts.Cache,
		registry:         opts.Registry,
		extensions:       opts.Extensions,
		libraries:        opts.Libraries,
		systemActivator:  opts.SystemActivator,
		properties:       make(map[string]string, len(opts.Properties)+1),
		contributionFile: opts.ContributionFile,
		copyLibraries:    opts.CopyLibraries,
		logger:           logger,
		metrics:          opts.Metrics,
		bundles:          make(map[string]*bundleInfo),
	}
	for k, v := range opts.Properties {
		l.properties[k] = v
	}
	if _, ok := l.properties[PropFrameworkUUID]; !ok {
		l.properties[PropFrameworkUUID] = newFrameworkUUID()
	}
	if l.registry == nil {
		l.registry = service.NewRegistry(logger).WithMetrics(opts.Metrics)
	}
	if l.extensions == nil {
		l.extensions = extension.NewService(l, logger).WithMetrics(opts.Metrics)
	} else {
		l.extensions.SetClassLoader(l)
	}
	if l.libraries == nil {
		l.libraries = NewCatalog()
	}
	if l.contributionFile == "" {
		l.contributionFile = paths.ContributionFile
	}

	system, err := newSystemBundle(l)
	if err != nil {
		return nil, err
	}
	l.system = system
	l.bundles[system.SymbolicName()] = &bundleInfo{bundle: system, context: newContext(l, system)}
	l.nextID = 1
	return l, nil
}

// Registry returns the service registry shared by all bundles.
func (l *Loader) Registry() *service.Registry { return l.registry }

// Extensions returns the extension registry shared by all bundles.
func (l *Loader) Extensions() *extension.Service { return l.extensions }

// Cache returns the code cache.
func (l *Loader) Cache() *codecache.Cache { return l.cache }

// Property returns a framework property.
func (l *Loader) Property(key string) string { return l.properties[key] }

// SystemBundle returns the current system bundle.
func (l *Loader) SystemBundle() *Bundle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.system
}

// CreateBundle opens the bundle at path and reads its manifest. The bundle
// is not added to the table.
func (l *Loader) CreateBundle(path string) (*Bundle, error) {
	s, err := storage.Open(path)
	if err != nil {
		return nil, err
	}

	m, err := readManifest(s)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("bundle %s: %w", path, err)
	}

	l.mu.Lock()
	bundleID := l.nextID
	l.nextID++
	l.mu.Unlock()

	return newBundle(l, bundleID, path, m, s), nil
}

func readManifest(s storage.Storage) (*manifest.Manifest, error) {
	for _, name := range paths.ManifestFiles {
		if !s.Exists(name) {
			continue
		}
		data, err := s.ReadFile(name)
		if err != nil {
			return nil, err
		}
		return manifest.Parse(name, data)
	}
	return nil, fmt.Errorf("%w: no manifest found", manifest.ErrInvalidManifest)
}

// LoadBundle adds b to the table, allocates its context and installs its
// libraries. Loading a second bundle with an already known symbolic name is
// a logged no-op.
func (l *Loader) LoadBundle(b *Bundle) error {
	if s := b.State(); s != Installed && s != Resolved {
		return &StateError{Bundle: b.SymbolicName(), State: s, Op: "load"}
	}
	name := b.SymbolicName()

	l.mu.Lock()
	if b.IsSystemBundle() {
		if !l.replaceSystemLocked(b) {
			l.mu.Unlock()
			return nil
		}
	} else if existing, ok := l.bundles[name]; ok {
		l.mu.Unlock()
		if existing.bundle != b {
			l.logger.Warn("Bundle already loaded, ignoring duplicate",
				zap.String("bundle", name),
				zap.String("location", b.Location()),
				zap.String("loaded_from", existing.bundle.Location()))
		}
		return nil
	}
	l.bundles[name] = &bundleInfo{bundle: b, context: newContext(l, b)}
	l.mu.Unlock()

	l.logger.Info("Bundle installed",
		zap.String("bundle", name),
		zap.Int64("id", b.ID()),
		zap.String("location", b.Location()))
	l.emit(BundleInstalled, b)

	return l.InstallLibraries(b, l.copyLibraries)
}

// replaceSystemLocked swaps in a discovered system bundle while the built-in
// one has not been started. Callers hold l.mu.
func (l *Loader) replaceSystemLocked(b *Bundle) bool {
	current := l.system
	if current == b {
		return false
	}
	if current.Storage() != nil || current.State() != Installed {
		l.logger.Warn("System bundle already in place, ignoring",
			zap.String("location", b.Location()),
			zap.String("state", current.State().String()))
		return false
	}
	delete(l.bundles, current.SymbolicName())
	l.system = b
	return true
}

// LoadBundlePath creates and loads the bundle at path. If a bundle with the
// same symbolic name is already loaded, that bundle is returned.
func (l *Loader) LoadBundlePath(path string) (*Bundle, error) {
	b, err := l.CreateBundle(path)
	if err != nil {
		return nil, err
	}
	if err := l.LoadBundle(b); err != nil {
		return b, err
	}
	loaded := l.FindBundle(b.SymbolicName())
	if b.IsSystemBundle() {
		loaded = l.SystemBundle()
	}
	if loaded != b {
		b.Storage().Close()
		b.setState(Uninstalled)
		return loaded, nil
	}
	return b, nil
}

// DiscoverBundles loads every subdirectory and zip archive directly below
// each base directory. Missing base directories are skipped. A bundle that
// fails to load is logged and skipped; the joined failures are returned with
// the bundles that did load.
func (l *Loader) DiscoverBundles(baseDirs ...string) ([]*Bundle, error) {
	var (
		loaded []*Bundle
		errs   []error
	)

	for _, base := range baseDirs {
		entries, err := os.ReadDir(base)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				l.logger.Debug("Plugin directory not found", zap.String("dir", base))
				continue
			}
			errs = append(errs, fmt.Errorf("failed to scan %s: %w", base, err))
			continue
		}

		for _, entry := range entries {
			full := filepath.Join(base, entry.Name())
			if !entry.IsDir() && !storage.IsCandidate(full) {
				continue
			}

			b, err := l.LoadBundlePath(full)
			if err != nil {
				l.logger.Warn("Failed to load bundle", zap.String("location", full), zap.Error(err))
				errs = append(errs, err)
				if b == nil {
					continue
				}
			}
			if b.Location() == full {
				loaded = append(loaded, b)
			}
		}
	}

	l.logger.Info("Bundle discovery complete",
		zap.Strings("dirs", baseDirs),
		zap.Int("loaded", len(loaded)),
		zap.Int("failed", len(errs)))
	return loaded, errors.Join(errs...)
}

// FindBundle returns the bundle with the given symbolic name, or nil.
// SystemBundleName always finds the system bundle.
func (l *Loader) FindBundle(name string) *Bundle {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if name == SystemBundleName {
		return l.system
	}
	if info, ok := l.bundles[name]; ok {
		return info.bundle
	}
	return nil
}

// Bundles returns every loaded bundle ordered by id.
func (l *Loader) Bundles() []*Bundle {
	l.mu.RLock()
	out := make([]*Bundle, 0, len(l.bundles))
	for _, info := range l.bundles {
		out = append(out, info.bundle)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// StateCounts returns the number of bundles per state name.
func (l *Loader) StateCounts() map[string]int {
	counts := make(map[string]int, len(States))
	for _, s := range States {
		counts[s.String()] = 0
	}
	for _, b := range l.Bundles() {
		counts[b.State().String()]++
	}
	return counts
}

func (l *Loader) info(b *Bundle) *bundleInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	info, ok := l.bundles[b.SymbolicName()]
	if !ok || info.bundle != b {
		return nil
	}
	return info
}

// GetContextForBundle returns the execution context of a loaded bundle.
func (l *Loader) GetContextForBundle(b *Bundle) *Context {
	if info := l.info(b); info != nil {
		return info.context
	}
	return nil
}

func (l *Loader) classLoaderFor(info *bundleInfo) *ClassLoader {
	l.mu.Lock()
	defer l.mu.Unlock()

	if info.classLoader == nil {
		info.classLoader = newClassLoader(info.bundle.SymbolicName(), l.cache, l.libraries)
	}
	return info.classLoader
}

// CreateInstance instantiates class on behalf of bundle. class may name its
// library as "library:Class"; otherwise the bundle's activator library is
// used.
func (l *Loader) CreateInstance(bundle, class string) (any, error) {
	b := l.FindBundle(bundle)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrBundleNotFound, bundle)
	}
	info := l.info(b)
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrBundleNotFound, bundle)
	}

	library, name := splitClass(class, b.ActivatorLibrary())
	return l.classLoaderFor(info).NewInstance(library, name)
}

// Stats returns loader statistics.
func (l *Loader) Stats() map[string]interface{} {
	l.mu.RLock()
	total := len(l.bundles)
	l.mu.RUnlock()

	counts := l.StateCounts()
	return map[string]interface{}{
		"bundles":   total,
		"started":   counts[Active.String()],
		"by_state":  counts,
		"libraries": len(l.cache.Libraries()),
	}
}

// Close releases the storage of every bundle. Bundles should be stopped
// first.
func (l *Loader) Close() error {
	var errs []error
	for _, b := range l.Bundles() {
		if s := b.Storage(); s != nil {
			if err := s.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close %s: %w", b.SymbolicName(), err))
			}
		}
	}
	return errors.Join(errs...)
}
