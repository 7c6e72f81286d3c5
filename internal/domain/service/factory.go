package service

// Factory creates a separate service object for each consuming context.
// GetService is called when a context's use count goes from zero to one,
// UngetService when it drops back to zero or the service is unregistered.
type Factory interface {
	GetService(ctx BundleContext, reg *Registration) (any, error)
	UngetService(ctx BundleContext, reg *Registration, svc any)
}

// FactoryFunc adapts a function to a Factory that needs no cleanup.
type FactoryFunc func(ctx BundleContext, reg *Registration) (any, error)

func (f FactoryFunc) GetService(ctx BundleContext, reg *Registration) (any, error) {
	return f(ctx, reg)
}

func (f FactoryFunc) UngetService(BundleContext, *Registration, any) {}

// serviceObject holds either a plain object or a factory.
type serviceObject struct {
	plain   any
	factory Factory
}

func newServiceObject(svc any) serviceObject {
	if f, ok := svc.(Factory); ok {
		return serviceObject{factory: f}
	}
	return serviceObject{plain: svc}
}

func (o serviceObject) isFactory() bool {
	return o.factory != nil
}

// factoryKey indexes objects produced by a factory for one consumer.
type factoryKey struct {
	serviceID int64
	contextID string
}
