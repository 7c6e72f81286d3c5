package framework

import (
	"github.com/google/uuid"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/manifest"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/service"
)

// PropFrameworkUUID names the framework property holding the instance id.
const PropFrameworkUUID = "framework.uuid"

// PlatformInfo is published by the built-in system activator.
type PlatformInfo interface {
	UUID() string
	Bundles() []BundleInfo
	FindBundle(name string) (BundleInfo, bool)
}

func newFrameworkUUID() string {
	return uuid.NewString()
}

func newSystemBundle(l *Loader) (*Bundle, error) {
	m, err := manifest.FromHeaders(map[string]any{
		manifest.SymbolicName: SystemBundleName,
		manifest.Name:         "System Bundle",
		manifest.SystemBundle: true,
	})
	if err != nil {
		return nil, err
	}
	return newBundle(l, 0, "", m, nil), nil
}

// systemActivator publishes PlatformInfo for the lifetime of the system
// bundle.
type systemActivator struct {
	registration *service.Registration
}

func (a *systemActivator) Start(ctx *Context) error {
	reg, err := service.Register[PlatformInfo](ctx.Services(), ctx, platformInfo{ctx: ctx}, service.Properties{
		PropFrameworkUUID: ctx.Property(PropFrameworkUUID),
	})
	if err != nil {
		return err
	}
	a.registration = reg
	return nil
}

func (a *systemActivator) Stop(*Context) error {
	if a.registration == nil {
		return nil
	}
	err := a.registration.Unregister()
	a.registration = nil
	return err
}

type platformInfo struct {
	ctx *Context
}

func (p platformInfo) UUID() string                              { return p.ctx.Property(PropFrameworkUUID) }
func (p platformInfo) Bundles() []BundleInfo                     { return p.ctx.Bundles() }
func (p platformInfo) FindBundle(name string) (BundleInfo, bool) { return p.ctx.FindBundle(name) }
