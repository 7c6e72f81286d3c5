package platform

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/codecache"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/extension"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/framework"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/service"
	"github.com/GriffinCanCode/AgentOS/platform/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/platform/internal/infrastructure/monitoring"
)

var ErrShutdown = errors.New("platform is shut down")

// Option customizes a Platform.
type Option func(*options)

type options struct {
	logger          *zap.Logger
	metrics         *monitoring.Metrics
	libraries       framework.LibraryLoader
	systemActivator framework.Activator
	properties      map[string]string
}

// WithLogger sets the logger. Without it nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics shares a metrics collector with the caller.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithLibraryLoader sets how bundle libraries are opened, usually a
// framework.Catalog filled at program start.
func WithLibraryLoader(loader framework.LibraryLoader) Option {
	return func(o *options) { o.libraries = loader }
}

// WithSystemActivator replaces the built-in system activator.
func WithSystemActivator(activator framework.Activator) Option {
	return func(o *options) { o.systemActivator = activator }
}

// WithProperty sets a framework property visible to every bundle context.
func WithProperty(key, value string) Option {
	return func(o *options) {
		if o.properties == nil {
			o.properties = make(map[string]string)
		}
		o.properties[key] = value
	}
}

// Platform is one bundle runtime.
type Platform struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	cache      *codecache.Cache
	registry   *service.Registry
	extensions *extension.Service
	loader     *framework.Loader

	mu          sync.Mutex
	initialized bool
	shutdown    bool
}

// New builds a platform from cfg. Nothing is discovered or started until
// Init.
func New(cfg *config.Config, opts ...Option) (*Platform, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = monitoring.NewMetrics()
	}

	cache, err := codecache.New(cfg.Platform.CachePath(), o.logger.Named("codecache"))
	if err != nil {
		return nil, fmt.Errorf("failed to create code cache: %w", err)
	}

	registry := service.NewRegistry(o.logger.Named("services")).WithMetrics(o.metrics)
	extensions := extension.NewService(nil, o.logger.Named("extensions")).WithMetrics(o.metrics)

	loader, err := framework.NewLoader(framework.Options{
		Cache:            cache,
		Registry:         registry,
		Extensions:       extensions,
		Libraries:        o.libraries,
		SystemActivator:  o.systemActivator,
		Properties:       o.properties,
		ContributionFile: cfg.Platform.ContributionFile,
		CopyLibraries:    cfg.Platform.CopyLibraries,
		Logger:           o.logger.Named("loader"),
		Metrics:          o.metrics,
	})
	if err != nil {
		return nil, err
	}

	return &Platform{
		cfg:        cfg,
		logger:     o.logger,
		metrics:    o.metrics,
		cache:      cache,
		registry:   registry,
		extensions: extensions,
		loader:     loader,
	}, nil
}

// Init brings the platform up: optionally clears the code cache, discovers
// bundles in every plugin root, starts the system bundle, resolves all
// bundles, reads their contributions and starts the eager ones. Bundles that
// fail along the way are logged and left behind; only a failing code cache
// or system bundle makes Init fail. Init runs once.
func (p *Platform) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return ErrShutdown
	}
	if p.initialized {
		return nil
	}

	if p.cfg.Platform.CleanStart {
		if err := p.cache.Clear(); err != nil {
			return fmt.Errorf("failed to clean code cache: %w", err)
		}
		p.logger.Info("Code cache cleared", zap.String("dir", p.cache.Dir()))
	}

	roots := p.cfg.Platform.PluginRoots()
	if _, err := p.loader.DiscoverBundles(roots...); err != nil {
		p.logger.Warn("Some bundles could not be loaded", zap.Error(err))
	}

	if err := p.loader.StartSystemBundle(); err != nil {
		return fmt.Errorf("failed to start system bundle: %w", err)
	}

	if err := p.loader.ResolveAllBundles(); err != nil {
		p.logger.Warn("Some bundles could not be resolved", zap.Error(err))
	}
	if err := p.loader.ReadAllContributions(); err != nil {
		p.logger.Warn("Some contributions could not be read", zap.Error(err))
	}
	if err := p.loader.StartAllBundles(); err != nil {
		p.logger.Warn("Some bundles could not be started", zap.Error(err))
	}

	p.initialized = true
	p.logger.Info("Platform initialized",
		zap.String("uuid", p.loader.Property(framework.PropFrameworkUUID)),
		zap.Strings("plugin_roots", roots),
		zap.Any("bundles", p.loader.StateCounts()),
		zap.Int("extension_points", len(p.extensions.AllExtensionPoints())))
	return nil
}

// Shutdown stops every bundle in reverse start order and releases bundle
// storage. It is safe to call more than once.
func (p *Platform) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return nil
	}
	p.shutdown = true

	stopErr := p.loader.StopAllBundles()
	if stopErr != nil {
		p.logger.Warn("Bundles failed to stop cleanly", zap.Error(stopErr))
	}
	closeErr := p.loader.Close()

	p.logger.Info("Platform shut down")
	return errors.Join(stopErr, closeErr)
}

// Component accessors, valid after New.
func (p *Platform) Config() *config.Config         { return p.cfg }
func (p *Platform) Logger() *zap.Logger            { return p.logger }
func (p *Platform) Metrics() *monitoring.Metrics   { return p.metrics }
func (p *Platform) Cache() *codecache.Cache        { return p.cache }
func (p *Platform) Registry() *service.Registry    { return p.registry }
func (p *Platform) Extensions() *extension.Service { return p.extensions }
func (p *Platform) Loader() *framework.Loader      { return p.loader }

// Stats returns runtime statistics of every component.
func (p *Platform) Stats() map[string]interface{} {
	return map[string]interface{}{
		"uuid":       p.loader.Property(framework.PropFrameworkUUID),
		"bundles":    p.loader.Stats(),
		"services":   p.registry.Stats(),
		"extensions": p.extensions.Stats(),
	}
}
