package framework

import (
	"fmt"
)

// Activator is implemented by the class named in Bundle-Activator.
type Activator interface {
	Start(ctx *Context) error
	Stop(ctx *Context) error
}

// ActivatorFuncs adapts plain functions to an Activator. Nil hooks do
// nothing.
type ActivatorFuncs struct {
	OnStart func(ctx *Context) error
	OnStop  func(ctx *Context) error
}

func (a ActivatorFuncs) Start(ctx *Context) error {
	if a.OnStart == nil {
		return nil
	}
	return a.OnStart(ctx)
}

func (a ActivatorFuncs) Stop(ctx *Context) error {
	if a.OnStop == nil {
		return nil
	}
	return a.OnStop(ctx)
}

// noopActivator is used for bundles without Bundle-Activator.
type noopActivator struct{}

func (noopActivator) Start(*Context) error { return nil }
func (noopActivator) Stop(*Context) error  { return nil }

// callHook runs an activator hook, converting a panic into an error.
func callHook(name string, hook func(*Context) error, ctx *Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrActivatorFailed, name, rec)
		}
	}()
	if err := hook(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrActivatorFailed, name, err)
	}
	return nil
}
