package service

import (
	"fmt"
	"reflect"
)

// NameOf returns the interface name used for T: its package path and type
// name, e.g. "example.com/greeting.Greeter".
func NameOf[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// DeclareType binds NameOf[T] to T.
func DeclareType[T any](r *Registry) (string, error) {
	name := NameOf[T]()
	return name, r.Declare(name, reflect.TypeOf((*T)(nil)).Elem())
}

// Register publishes svc under the name of interface T.
func Register[T any](r *Registry, ctx BundleContext, svc T, props Properties) (*Registration, error) {
	name, err := DeclareType[T](r)
	if err != nil {
		return nil, err
	}
	return r.RegisterService(ctx, []string{name}, svc, props)
}

// RegisterFactory publishes a factory producing T objects.
func RegisterFactory[T any](r *Registry, ctx BundleContext, factory Factory, props Properties) (*Registration, error) {
	name, err := DeclareType[T](r)
	if err != nil {
		return nil, err
	}
	return r.RegisterService(ctx, []string{name}, factory, props)
}

// Get returns the best service registered under the name of T. The caller
// must release it with UngetService on the returned reference.
func Get[T any](r *Registry, ctx BundleContext) (T, *Reference, error) {
	var zero T

	name := NameOf[T]()
	ref := r.GetServiceReference(ctx, name)
	if ref == nil {
		return zero, nil, fmt.Errorf("no service for %s: %w", name, ErrUnregistered)
	}

	svc, err := r.GetService(ctx, ref)
	if err != nil {
		return zero, nil, err
	}
	typed, ok := svc.(T)
	if !ok {
		r.UngetService(ctx, ref)
		return zero, nil, fmt.Errorf("%w: %T is not %s", ErrNotAnInstance, svc, name)
	}
	return typed, ref, nil
}

// References returns the references registered under the name of T that
// match filter.
func References[T any](r *Registry, ctx BundleContext, filter string) ([]*Reference, error) {
	return r.GetServiceReferences(ctx, NameOf[T](), filter)
}
