package service

import (
	"fmt"
	"sort"
)

// BundleContext identifies the bundle execution context that publishes or
// consumes services.
type BundleContext interface {
	ContextID() string
	SymbolicName() string
}

// Registration is the publisher's handle to a service.
type Registration struct {
	registry   *Registry
	owner      BundleContext
	id         int64
	interfaces []string
	object     serviceObject
	ref        *Reference

	// Protected by registry.mu
	props        properties
	ranking      int
	usage        map[string]int
	users        map[string]BundleContext
	unregistered bool
}

// Reference returns the consumer handle of the registration.
func (reg *Registration) Reference() *Reference {
	return reg.ref
}

// SetProperties replaces the caller-supplied properties and fires a Modified
// event. service.id and objectclass cannot be changed.
func (reg *Registration) SetProperties(props Properties) error {
	r := reg.registry

	r.mu.Lock()
	if reg.unregistered {
		r.mu.Unlock()
		return fmt.Errorf("service %d: %w", reg.id, ErrUnregistered)
	}
	reg.props = r.ownedProperties(reg.id, reg.interfaces, props)
	reg.ranking = r.rankingFor(props)
	r.resort(reg)
	r.mu.Unlock()

	r.PublishServiceEvent(Modified, reg.ref)
	return nil
}

// Unregister withdraws the service. Listeners are told before the service
// disappears. Unregistering twice fails with ErrUnregistered.
func (reg *Registration) Unregister() error {
	return reg.registry.unregister(reg)
}

// Reference is the consumer's handle to a service. It stays valid after the
// service is unregistered but GetService will then fail.
type Reference struct {
	reg *Registration
}

// ID returns the service id, unique for the registry lifetime.
func (ref *Reference) ID() int64 {
	return ref.reg.id
}

// Interfaces returns the names the service was registered under.
func (ref *Reference) Interfaces() []string {
	return append([]string(nil), ref.reg.interfaces...)
}

// Bundle returns the symbolic name of the publishing bundle.
func (ref *Reference) Bundle() string {
	return ref.reg.owner.SymbolicName()
}

// Ranking returns the current service.ranking property.
func (ref *Reference) Ranking() int {
	r := ref.reg.registry
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ref.reg.ranking
}

// Property returns one property, matching key case-insensitively.
func (ref *Reference) Property(key string) (any, bool) {
	r := ref.reg.registry
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ref.reg.props.Get(key)
}

// PropertyKeys returns the property keys in sorted order.
func (ref *Reference) PropertyKeys() []string {
	r := ref.reg.registry
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ref.reg.props.sortedKeys()
}

// Properties returns a copy of all properties, including the registry-owned
// ones.
func (ref *Reference) Properties() Properties {
	r := ref.reg.registry
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ref.reg.props.export()
}

// IsAvailable reports whether the service is still registered.
func (ref *Reference) IsAvailable() bool {
	r := ref.reg.registry
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !ref.reg.unregistered
}

// UsingBundles returns the sorted symbolic names of bundles currently using
// the service.
func (ref *Reference) UsingBundles() []string {
	r := ref.reg.registry
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(ref.reg.users))
	names := make([]string, 0, len(ref.reg.users))
	for _, ctx := range ref.reg.users {
		name := ctx.SymbolicName()
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snapshot copies the properties for filter evaluation outside the lock.
func (ref *Reference) snapshot() Properties {
	return ref.Properties()
}

// less orders references by ranking descending, then id ascending.
func less(a, b *Registration) bool {
	if a.ranking != b.ranking {
		return a.ranking > b.ranking
	}
	return a.id < b.id
}

func insertSorted(list []*Registration, reg *Registration) []*Registration {
	i := sort.Search(len(list), func(i int) bool { return less(reg, list[i]) })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = reg
	return list
}

func removeRegistration(list []*Registration, reg *Registration) []*Registration {
	for i, candidate := range list {
		if candidate == reg {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
