package framework

import (
	"io"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/extension"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/manifest"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/service"
	"github.com/GriffinCanCode/AgentOS/platform/internal/shared/id"
)

// Context is the execution context of one bundle. Activators receive it in
// Start and Stop. It gives access to services, extensions and read-only
// information about other bundles; it cannot start or stop bundles.
type Context struct {
	id     id.ContextID
	bundle *Bundle
	loader *Loader
	logger *zap.Logger
}

func newContext(l *Loader, b *Bundle) *Context {
	return &Context{
		id:     id.NewContextID(),
		bundle: b,
		loader: l,
		logger: l.logger.With(zap.String("bundle", b.SymbolicName())),
	}
}

// ContextID returns the unique id of the context.
func (c *Context) ContextID() string { return string(c.id) }

// SymbolicName returns the symbolic name of the owning bundle.
func (c *Context) SymbolicName() string { return c.bundle.SymbolicName() }

// Logger returns a logger tagged with the bundle name.
func (c *Context) Logger() *zap.Logger { return c.logger }

// Bundle describes the owning bundle.
func (c *Context) Bundle() BundleInfo { return Describe(c.bundle) }

// FindBundle describes another bundle by symbolic name.
func (c *Context) FindBundle(name string) (BundleInfo, bool) {
	b := c.loader.FindBundle(name)
	if b == nil {
		return BundleInfo{}, false
	}
	return Describe(b), true
}

// Bundles describes every loaded bundle in install order.
func (c *Context) Bundles() []BundleInfo {
	bundles := c.loader.Bundles()
	out := make([]BundleInfo, len(bundles))
	for i, b := range bundles {
		out[i] = Describe(b)
	}
	return out
}

// Property returns a framework property such as the platform instance id.
func (c *Context) Property(key string) string {
	return c.loader.properties[key]
}

// GetResource opens a resource of the owning bundle.
func (c *Context) GetResource(path string) (io.ReadCloser, error) {
	return c.bundle.GetResource(path)
}

// Services returns the service registry, for use with the generic helpers
// of the service package.
func (c *Context) Services() *service.Registry { return c.loader.registry }

// Extensions returns the extension registry.
func (c *Context) Extensions() *extension.Service { return c.loader.extensions }

// RegisterService registers svc under interfaces on behalf of the bundle.
func (c *Context) RegisterService(interfaces []string, svc any, props service.Properties) (*service.Registration, error) {
	return c.loader.registry.RegisterService(c, interfaces, svc, props)
}

// GetServiceReferences returns the references matching iface and filter.
func (c *Context) GetServiceReferences(iface, filter string) ([]*service.Reference, error) {
	return c.loader.registry.GetServiceReferences(c, iface, filter)
}

// GetServiceReference returns the best ranked reference for iface, or nil.
func (c *Context) GetServiceReference(iface string) *service.Reference {
	return c.loader.registry.GetServiceReference(c, iface)
}

// GetService returns the service object and counts a use by this bundle.
func (c *Context) GetService(ref *service.Reference) (any, error) {
	return c.loader.registry.GetService(c, ref)
}

// UngetService releases one use of the service.
func (c *Context) UngetService(ref *service.Reference) bool {
	return c.loader.registry.UngetService(c, ref)
}

// AddServiceListener registers fn for service events matching filter.
func (c *Context) AddServiceListener(fn service.Listener, filter string) (id.ListenerID, error) {
	return c.loader.registry.AddServiceListener(c, fn, filter)
}

// RemoveServiceListener removes a listener added by this bundle.
func (c *Context) RemoveServiceListener(listenerID id.ListenerID) bool {
	return c.loader.registry.RemoveServiceListener(c, listenerID)
}

// AddBundleListener registers fn for bundle events until the bundle stops.
func (c *Context) AddBundleListener(fn BundleListener) id.ListenerID {
	return c.loader.addBundleListener(c.ContextID(), fn)
}

// RemoveBundleListener removes a bundle listener added by this bundle.
func (c *Context) RemoveBundleListener(listenerID id.ListenerID) bool {
	return c.loader.removeBundleListener(c.ContextID(), listenerID)
}

// CreateInstance instantiates a class from one of the loaded bundles.
func (c *Context) CreateInstance(bundle, class string) (any, error) {
	return c.loader.CreateInstance(bundle, class)
}

// release withdraws everything the bundle registered through the context.
func (c *Context) release() {
	c.loader.registry.UnregisterServices(c)
	c.loader.registry.ReleaseServicesInUse(c)
	c.loader.registry.RemoveAllServiceListeners(c)
	c.loader.removeContextListeners(c.ContextID())
}

// BundleInfo is a read-only description of a bundle.
type BundleInfo struct {
	ID               int64           `json:"id"`
	SymbolicName     string          `json:"symbolic_name"`
	Name             string          `json:"name,omitempty"`
	Vendor           string          `json:"vendor,omitempty"`
	Location         string          `json:"location,omitempty"`
	State            string          `json:"state"`
	ActivationPolicy manifest.Policy `json:"activation_policy"`
	Activator        string          `json:"activator,omitempty"`
	Dependencies     []string        `json:"dependencies"`
	System           bool            `json:"system"`
}

// Describe snapshots a bundle.
func Describe(b *Bundle) BundleInfo {
	deps := b.Dependencies()
	if deps == nil {
		deps = []string{}
	}
	return BundleInfo{
		ID:               b.ID(),
		SymbolicName:     b.SymbolicName(),
		Name:             b.Manifest().Name(),
		Vendor:           b.Manifest().Vendor(),
		Location:         b.Location(),
		State:            b.State().String(),
		ActivationPolicy: b.ActivationPolicy(),
		Activator:        b.ActivatorClass(),
		Dependencies:     deps,
		System:           b.IsSystemBundle(),
	}
}
