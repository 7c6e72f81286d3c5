package framework

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/manifest"
	"github.com/GriffinCanCode/AgentOS/platform/internal/infrastructure/monitoring"
)

// startPass records the bundles that failed to start during one call, so a
// bundle required by several others runs its start hook once.
type startPass map[*Bundle]error

// StartBundle starts b after starting its dependencies. It does nothing
// unless b is RESOLVED. Activators run outside the bundle table lock but
// one at a time; an activator or bundle listener that starts or stops a
// bundle gets ErrLifecycleBusy.
func (l *Loader) StartBundle(b *Bundle) error {
	if err := l.lockLifecycle("start", b); err != nil {
		return err
	}
	defer l.startMu.Unlock()
	return l.startLocked(b, startPass{})
}

// StartDependencies starts every RESOLVED bundle b requires.
func (l *Loader) StartDependencies(b *Bundle) error {
	if err := l.lockLifecycle("start dependencies of", b); err != nil {
		return err
	}
	defer l.startMu.Unlock()
	return l.startDependenciesLocked(b, startPass{})
}

// lockLifecycle takes startMu unless an activator hook is running.
func (l *Loader) lockLifecycle(op string, b *Bundle) error {
	if running := l.inHook.Load(); running != nil {
		target := "bundles"
		if b != nil {
			target = b.SymbolicName()
		}
		return fmt.Errorf("%w: cannot %s %s while %s runs its activator",
			ErrLifecycleBusy, op, target, running.SymbolicName())
	}
	l.startMu.Lock()
	return nil
}

func (l *Loader) startLocked(b *Bundle, pass startPass) error {
	if err, failed := pass[b]; failed {
		return err
	}
	if b.State() != Resolved {
		return nil
	}
	info := l.info(b)
	if info == nil {
		return fmt.Errorf("%w: %s", ErrBundleNotFound, b.SymbolicName())
	}

	if err := l.startDependenciesLocked(b, pass); err != nil {
		pass[b] = err
		return err
	}

	activator, err := l.LoadActivator(b)
	if err != nil {
		pass[b] = err
		return err
	}
	if err := l.activate(info, activator); err != nil {
		pass[b] = err
		return err
	}
	return nil
}

func (l *Loader) startDependenciesLocked(b *Bundle, pass startPass) error {
	for _, name := range b.Dependencies() {
		dep := l.FindBundle(name)
		if dep == nil {
			return &ResolutionError{Bundle: b.SymbolicName(), Missing: name}
		}
		if err := l.startLocked(dep, pass); err != nil {
			return fmt.Errorf("bundle %s: dependency %s: %w", b.SymbolicName(), name, err)
		}
		if !dep.IsActive() {
			return fmt.Errorf("bundle %s: dependency %w", b.SymbolicName(),
				&StateError{Bundle: name, State: dep.State(), Op: "start"})
		}
	}
	return nil
}

// LoadActivator creates the activator named in the bundle manifest. A bundle
// without Bundle-Activator gets an activator that does nothing; the system
// bundle without one gets the built-in system activator.
func (l *Loader) LoadActivator(b *Bundle) (Activator, error) {
	class := b.ActivatorClass()
	if class == "" {
		if b.IsSystemBundle() {
			if l.systemActivator != nil {
				return l.systemActivator, nil
			}
			return &systemActivator{}, nil
		}
		return noopActivator{}, nil
	}

	info := l.info(b)
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrBundleNotFound, b.SymbolicName())
	}

	obj, err := l.classLoaderFor(info).NewInstance(b.ActivatorLibrary(), class)
	if err != nil {
		l.logger.Error("Failed to create activator, did you export the class?",
			zap.String("bundle", b.SymbolicName()),
			zap.String("library", b.ActivatorLibrary()),
			zap.String("class", class),
			zap.String("path", l.cache.GetPathForLibrary(b.ActivatorLibrary())),
			zap.Error(err))
		return nil, err
	}

	activator, ok := obj.(Activator)
	if !ok {
		return nil, &LibraryError{
			Bundle:  b.SymbolicName(),
			Library: b.ActivatorLibrary(),
			Class:   class,
			Err:     fmt.Errorf("%w: %T does not implement Activator", ErrLibraryLoad, obj),
		}
	}
	return activator, nil
}

// activate runs the start hook and emits its events. Callers hold startMu.
func (l *Loader) activate(info *bundleInfo, activator Activator) error {
	b, ctx := info.bundle, info.context
	name := b.SymbolicName()

	l.inHook.Store(b)
	defer l.inHook.Store(nil)

	b.setActivator(activator)
	b.setState(Starting)
	l.emit(BundleStarting, b)

	timer := monitoring.NewTimer(l.metrics, name)
	err := callHook(name+" start", activator.Start, ctx)
	elapsed := timer.Stop(err)

	if err != nil {
		ctx.release()
		b.setActivator(nil)
		b.setState(Resolved)
		l.logger.Error("Bundle failed to start", zap.String("bundle", name), zap.Error(err))
		return err
	}

	b.setState(Active)
	l.started = append(l.started, b)
	l.logger.Info("Bundle started", zap.String("bundle", name), zap.Duration("duration", elapsed))
	l.emit(BundleStarted, b)
	return nil
}

// StartSystemBundle resolves and starts the system bundle.
func (l *Loader) StartSystemBundle() error {
	system := l.SystemBundle()
	if err := system.Resolve(); err != nil {
		return err
	}
	return l.StartBundle(system)
}

// StartAllBundles starts every RESOLVED bundle that is neither the system
// bundle nor lazily activated. Failures are logged and joined. A bundle
// whose activator fails is not started again for the bundles requiring it.
func (l *Loader) StartAllBundles() error {
	if err := l.lockLifecycle("start", nil); err != nil {
		return err
	}
	defer l.startMu.Unlock()

	pass := startPass{}
	var errs []error
	for _, b := range l.Bundles() {
		if b.IsSystemBundle() || b.ActivationPolicy() == manifest.PolicyLazy {
			continue
		}
		if _, failed := pass[b]; failed {
			continue
		}
		if err := l.startLocked(b, pass); err != nil {
			l.logger.Warn("Failed to start bundle", zap.String("bundle", b.SymbolicName()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StopBundle stops b after stopping the active bundles that require it. It
// does nothing unless b is ACTIVE.
func (l *Loader) StopBundle(b *Bundle) error {
	if err := l.lockLifecycle("stop", b); err != nil {
		return err
	}
	defer l.startMu.Unlock()
	return l.stopLocked(b)
}

func (l *Loader) stopLocked(b *Bundle) error {
	if b.State() != Active {
		return nil
	}

	var dependents []*Bundle
	for i := len(l.started) - 1; i >= 0; i-- {
		if other := l.started[i]; other != b && l.requires(other, b) {
			dependents = append(dependents, other)
		}
	}

	var errs []error
	for _, dependent := range dependents {
		if err := l.stopLocked(dependent); err != nil {
			errs = append(errs, err)
		}
	}

	info := l.info(b)
	if info == nil {
		return fmt.Errorf("%w: %s", ErrBundleNotFound, b.SymbolicName())
	}
	name := b.SymbolicName()

	l.inHook.Store(b)
	defer l.inHook.Store(nil)

	b.setState(Stopping)
	l.emit(BundleStopping, b)

	if activator := b.currentActivator(); activator != nil {
		if err := callHook(name+" stop", activator.Stop, info.context); err != nil {
			l.logger.Error("Bundle activator failed to stop", zap.String("bundle", name), zap.Error(err))
			errs = append(errs, err)
		}
	}

	info.context.release()
	b.setActivator(nil)
	l.forgetStarted(b)
	b.setState(Resolved)
	l.logger.Info("Bundle stopped", zap.String("bundle", name))
	l.emit(BundleStopped, b)

	return errors.Join(errs...)
}

func (l *Loader) requires(dependent, b *Bundle) bool {
	for _, name := range dependent.Dependencies() {
		if l.FindBundle(name) == b {
			return true
		}
	}
	return false
}

func (l *Loader) forgetStarted(b *Bundle) {
	for i, s := range l.started {
		if s == b {
			l.started = append(l.started[:i], l.started[i+1:]...)
			return
		}
	}
}

// StopAllBundles stops every active bundle in reverse start order. The
// system bundle, started first, is stopped last.
func (l *Loader) StopAllBundles() error {
	if err := l.lockLifecycle("stop", nil); err != nil {
		return err
	}
	defer l.startMu.Unlock()

	var errs []error
	for len(l.started) > 0 {
		b := l.started[len(l.started)-1]
		if err := l.stopLocked(b); err != nil {
			errs = append(errs, err)
		}
		if len(l.started) > 0 && l.started[len(l.started)-1] == b {
			l.forgetStarted(b)
		}
	}
	return errors.Join(errs...)
}
