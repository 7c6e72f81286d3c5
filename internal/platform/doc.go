// Package platform assembles a bundle runtime from configuration.
//
// A Platform owns its code cache, service registry, extension registry,
// bundle loader and metrics. Nothing is global, so several platforms can
// run in one process.
//
// Example Usage:
//
//	catalog := framework.NewCatalog()
//	catalog.Register("org.example.core", "Activator", func() any { return &core.Activator{} })
//
//	p, err := platform.New(config.LoadOrDefault(), platform.WithLibraryLoader(catalog))
//	if err != nil {
//	    return err
//	}
//	if err := p.Init(); err != nil {
//	    return err
//	}
//	defer p.Shutdown()
package platform
