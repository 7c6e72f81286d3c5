package service

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/platform/internal/infrastructure/monitoring"
)

// Registry is the table of published services.
type Registry struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu             sync.RWMutex
	nextID         int64
	types          map[string]reflect.Type
	all            []*Registration            // canonical order
	byInterface    map[string][]*Registration // canonical order per name
	byContext      map[string][]*Registration // publisher context -> registrations
	inUse          map[string]map[int64]*Registration
	factoryObjects map[factoryKey]any

	listenerMu sync.RWMutex
	listeners  []*listenerEntry
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:         logger,
		types:          make(map[string]reflect.Type),
		byInterface:    make(map[string][]*Registration),
		byContext:      make(map[string][]*Registration),
		inUse:          make(map[string]map[int64]*Registration),
		factoryObjects: make(map[factoryKey]any),
	}
}

// WithMetrics adds metrics tracking to the registry
func (r *Registry) WithMetrics(metrics *monitoring.Metrics) *Registry {
	r.metrics = metrics
	return r
}

// Declare binds an interface name to a Go interface type. Redeclaring a
// name with the same type is allowed.
func (r *Registry) Declare(name string, t reflect.Type) error {
	if name == "" {
		return fmt.Errorf("interface name cannot be empty")
	}
	if t == nil || t.Kind() != reflect.Interface {
		return fmt.Errorf("%s: %v is not an interface type", name, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.types[name]; ok && existing != t {
		return fmt.Errorf("%s is already declared as %v", name, existing)
	}
	r.types[name] = t
	return nil
}

// InterfaceType returns the type bound to name.
func (r *Registry) InterfaceType(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// RegisterService publishes svc under the given interface names. svc must
// implement every named interface unless it is a Factory, in which case the
// objects it produces are checked instead.
func (r *Registry) RegisterService(ctx BundleContext, interfaces []string, svc any, props Properties) (*Registration, error) {
	if isNil(svc) {
		return nil, ErrNilService
	}
	names := dedupe(interfaces)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no interface names given", ErrUnknownInterface)
	}

	object := newServiceObject(svc)

	r.mu.Lock()
	for _, name := range names {
		t, ok := r.types[name]
		if !ok {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrUnknownInterface, name)
		}
		if !object.isFactory() && !reflect.TypeOf(svc).Implements(t) {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %T does not implement %s", ErrNotAnInstance, svc, name)
		}
	}

	r.nextID++
	reg := &Registration{
		registry:   r,
		owner:      ctx,
		id:         r.nextID,
		interfaces: names,
		object:     object,
		usage:      make(map[string]int),
		users:      make(map[string]BundleContext),
	}
	reg.ref = &Reference{reg: reg}
	reg.props = r.ownedProperties(reg.id, names, props)
	reg.ranking = r.rankingFor(props)

	r.all = insertSorted(r.all, reg)
	for _, name := range names {
		r.byInterface[name] = insertSorted(r.byInterface[name], reg)
	}
	r.byContext[ctx.ContextID()] = append(r.byContext[ctx.ContextID()], reg)
	count := len(r.all)
	r.mu.Unlock()

	r.logger.Debug("Service registered",
		zap.Int64("service_id", reg.id),
		zap.Strings("interfaces", names),
		zap.String("bundle", ctx.SymbolicName()))
	r.metrics.SetServicesRegistered(count)

	r.PublishServiceEvent(Registered, reg.ref)
	return reg, nil
}

// ownedProperties copies props and overwrites the registry-owned keys.
// Callers hold r.mu.
func (r *Registry) ownedProperties(serviceID int64, interfaces []string, props Properties) properties {
	p := newProperties(nil)
	for k, v := range props {
		switch strings.ToLower(k) {
		case PropServiceID, PropObjectClass:
			continue
		case PropRanking:
			if n, ok := rankingOf(v); ok {
				v = n
			} else {
				r.logger.Debug("Ignoring non-integer service ranking", zap.Any("ranking", v))
				continue
			}
		}
		if s, ok := v.([]string); ok {
			v = append([]string(nil), s...)
		}
		p.set(k, v)
	}
	p.set(PropServiceID, serviceID)
	p.set(PropObjectClass, append([]string(nil), interfaces...))
	return p
}

func (r *Registry) rankingFor(props Properties) int {
	v, ok := props.Get(PropRanking)
	if !ok {
		return 0
	}
	n, _ := rankingOf(v)
	return n
}

// resort moves reg to its new position after a ranking change. Callers hold
// r.mu.
func (r *Registry) resort(reg *Registration) {
	r.all = insertSorted(removeRegistration(r.all, reg), reg)
	for _, name := range reg.interfaces {
		r.byInterface[name] = insertSorted(removeRegistration(r.byInterface[name], reg), reg)
	}
}

// GetServiceReferences returns the references registered under iface that
// match filter, in canonical order. An empty iface selects every service.
func (r *Registry) GetServiceReferences(ctx BundleContext, iface, filter string) ([]*Reference, error) {
	f, err := ParseFilter(filter)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := r.all
	if iface != "" {
		candidates = r.byInterface[iface]
	}

	refs := make([]*Reference, 0, len(candidates))
	for _, reg := range candidates {
		if f.Match(reg.props) {
			refs = append(refs, reg.ref)
		}
	}
	return refs, nil
}

// GetServiceReference returns the best reference for iface, or nil.
func (r *Registry) GetServiceReference(ctx BundleContext, iface string) *Reference {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := r.byInterface[iface]
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0].ref
}

// GetService returns the service object behind ref and increments the use
// count of ctx.
func (r *Registry) GetService(ctx BundleContext, ref *Reference) (any, error) {
	if ref == nil {
		return nil, fmt.Errorf("%w: nil reference", ErrUnregistered)
	}
	reg := ref.reg
	contextID := ctx.ContextID()
	key := factoryKey{serviceID: reg.id, contextID: contextID}

	r.mu.Lock()
	if reg.unregistered {
		r.mu.Unlock()
		return nil, fmt.Errorf("service %d: %w", reg.id, ErrUnregistered)
	}
	r.acquire(reg, ctx)
	if !reg.object.isFactory() {
		r.mu.Unlock()
		r.metrics.RecordServiceUsage("get")
		return reg.object.plain, nil
	}
	if cached, ok := r.factoryObjects[key]; ok {
		r.mu.Unlock()
		r.metrics.RecordServiceUsage("get")
		return cached, nil
	}
	r.mu.Unlock()

	// The factory runs unlocked so it may use the registry itself.
	svc, err := r.produce(ctx, reg)

	r.mu.Lock()
	if err != nil || reg.unregistered {
		r.releaseOne(reg, contextID)
		r.mu.Unlock()
		if err == nil {
			reg.object.factory.UngetService(ctx, reg, svc)
			err = fmt.Errorf("service %d: %w", reg.id, ErrUnregistered)
		}
		return nil, err
	}
	if cached, ok := r.factoryObjects[key]; ok {
		// Another call from the same context won the race
		r.mu.Unlock()
		reg.object.factory.UngetService(ctx, reg, svc)
		r.metrics.RecordServiceUsage("get")
		return cached, nil
	}
	r.factoryObjects[key] = svc
	r.mu.Unlock()

	r.metrics.RecordServiceUsage("get")
	return svc, nil
}

// produce calls the factory and checks what it returns.
func (r *Registry) produce(ctx BundleContext, reg *Registration) (any, error) {
	svc, err := reg.object.factory.GetService(ctx, reg)
	if err != nil {
		r.logger.Warn("Service factory failed",
			zap.Int64("service_id", reg.id),
			zap.String("bundle", ctx.SymbolicName()),
			zap.Error(err))
		return nil, fmt.Errorf("service %d factory: %w", reg.id, err)
	}
	if isNil(svc) {
		return nil, fmt.Errorf("service %d factory: %w", reg.id, ErrNilService)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range reg.interfaces {
		if t := r.types[name]; !reflect.TypeOf(svc).Implements(t) {
			return nil, fmt.Errorf("%w: factory object %T does not implement %s", ErrNotAnInstance, svc, name)
		}
	}
	return svc, nil
}

// acquire increments the use count of ctx. Callers hold r.mu.
func (r *Registry) acquire(reg *Registration, ctx BundleContext) {
	contextID := ctx.ContextID()
	reg.usage[contextID]++
	reg.users[contextID] = ctx
	used, ok := r.inUse[contextID]
	if !ok {
		used = make(map[int64]*Registration)
		r.inUse[contextID] = used
	}
	used[reg.id] = reg
}

// releaseOne decrements the use count of contextID and reports whether it
// reached zero. Callers hold r.mu.
func (r *Registry) releaseOne(reg *Registration, contextID string) bool {
	reg.usage[contextID]--
	if reg.usage[contextID] > 0 {
		return false
	}
	r.forgetUse(reg, contextID)
	return true
}

// forgetUse drops all use bookkeeping for one context. Callers hold r.mu.
func (r *Registry) forgetUse(reg *Registration, contextID string) {
	delete(reg.usage, contextID)
	delete(reg.users, contextID)
	if used, ok := r.inUse[contextID]; ok {
		delete(used, reg.id)
		if len(used) == 0 {
			delete(r.inUse, contextID)
		}
	}
}

// UngetService releases one use of ref by ctx. It returns false when ctx was
// not using the service or the service is unregistered.
func (r *Registry) UngetService(ctx BundleContext, ref *Reference) bool {
	if ref == nil {
		return false
	}
	reg := ref.reg
	contextID := ctx.ContextID()

	r.mu.Lock()
	if reg.unregistered || reg.usage[contextID] == 0 {
		r.mu.Unlock()
		return false
	}
	var (
		release bool
		svc     any
	)
	if r.releaseOne(reg, contextID) && reg.object.isFactory() {
		key := factoryKey{serviceID: reg.id, contextID: contextID}
		svc, release = r.factoryObjects[key]
		delete(r.factoryObjects, key)
	}
	r.mu.Unlock()

	if release {
		reg.object.factory.UngetService(ctx, reg, svc)
	}
	r.metrics.RecordServiceUsage("unget")
	return true
}

// pendingRelease is a factory object to hand back once r.mu is released.
type pendingRelease struct {
	reg *Registration
	ctx BundleContext
	svc any
}

func (p pendingRelease) run() {
	p.reg.object.factory.UngetService(p.ctx, p.reg, p.svc)
}

func (r *Registry) unregister(reg *Registration) error {
	r.mu.RLock()
	done := reg.unregistered
	r.mu.RUnlock()
	if done {
		return fmt.Errorf("service %d: %w", reg.id, ErrUnregistered)
	}

	// Listeners see the service while it is still available
	r.PublishServiceEvent(Unregistering, reg.ref)

	r.mu.Lock()
	if reg.unregistered {
		r.mu.Unlock()
		return fmt.Errorf("service %d: %w", reg.id, ErrUnregistered)
	}
	reg.unregistered = true

	r.all = removeRegistration(r.all, reg)
	for _, name := range reg.interfaces {
		list := removeRegistration(r.byInterface[name], reg)
		if len(list) == 0 {
			delete(r.byInterface, name)
		} else {
			r.byInterface[name] = list
		}
	}
	ownerID := reg.owner.ContextID()
	published := removeRegistration(r.byContext[ownerID], reg)
	if len(published) == 0 {
		delete(r.byContext, ownerID)
	} else {
		r.byContext[ownerID] = published
	}

	var releases []pendingRelease
	for contextID, ctx := range reg.users {
		key := factoryKey{serviceID: reg.id, contextID: contextID}
		if svc, ok := r.factoryObjects[key]; ok {
			releases = append(releases, pendingRelease{reg: reg, ctx: ctx, svc: svc})
			delete(r.factoryObjects, key)
		}
		r.forgetUse(reg, contextID)
	}
	count := len(r.all)
	r.mu.Unlock()

	for _, rel := range releases {
		rel.run()
	}

	r.logger.Debug("Service unregistered",
		zap.Int64("service_id", reg.id),
		zap.String("bundle", reg.owner.SymbolicName()))
	r.metrics.SetServicesRegistered(count)
	return nil
}

// UnregisterServices withdraws every service published by ctx.
func (r *Registry) UnregisterServices(ctx BundleContext) {
	r.mu.RLock()
	published := append([]*Registration(nil), r.byContext[ctx.ContextID()]...)
	r.mu.RUnlock()

	for _, reg := range published {
		if err := reg.Unregister(); err != nil {
			r.logger.Debug("Service already unregistered", zap.Int64("service_id", reg.id))
		}
	}
}

// ReleaseServicesInUse drops every use ctx holds, releasing factory objects.
func (r *Registry) ReleaseServicesInUse(ctx BundleContext) {
	contextID := ctx.ContextID()

	r.mu.Lock()
	used := r.inUse[contextID]
	var releases []pendingRelease
	for _, reg := range used {
		key := factoryKey{serviceID: reg.id, contextID: contextID}
		if svc, ok := r.factoryObjects[key]; ok {
			releases = append(releases, pendingRelease{reg: reg, ctx: ctx, svc: svc})
			delete(r.factoryObjects, key)
		}
		delete(reg.usage, contextID)
		delete(reg.users, contextID)
	}
	delete(r.inUse, contextID)
	r.mu.Unlock()

	for _, rel := range releases {
		rel.run()
	}
}

// UseCount returns how many times ctx currently holds ref.
func (r *Registry) UseCount(ctx BundleContext, ref *Reference) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ref.reg.usage[ctx.ContextID()]
}

// RegisteredBy returns the references published by ctx in registration
// order.
func (r *Registry) RegisteredBy(ctx BundleContext) []*Reference {
	r.mu.RLock()
	defer r.mu.RUnlock()

	published := r.byContext[ctx.ContextID()]
	refs := make([]*Reference, len(published))
	for i, reg := range published {
		refs[i] = reg.ref
	}
	return refs
}

// InUseBy returns the references ctx currently uses, ordered by id.
func (r *Registry) InUseBy(ctx BundleContext) []*Reference {
	r.mu.RLock()
	defer r.mu.RUnlock()

	used := r.inUse[ctx.ContextID()]
	refs := make([]*Reference, 0, len(used))
	for _, reg := range used {
		refs = append(refs, reg.ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].reg.id < refs[j].reg.id })
	return refs
}

// Stats returns registry statistics
func (r *Registry) Stats() map[string]interface{} {
	r.mu.RLock()
	interfaces := make(map[string]int, len(r.byInterface))
	for name, regs := range r.byInterface {
		interfaces[name] = len(regs)
	}
	stats := map[string]interface{}{
		"total_services":  len(r.all),
		"interfaces":      interfaces,
		"declared_types":  len(r.types),
		"contexts_in_use": len(r.inUse),
		"factory_objects": len(r.factoryObjects),
	}
	r.mu.RUnlock()

	stats["listeners"] = r.ListenerCount()
	return stats
}

func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
