package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/framework"
)

func (h *Handlers) lookup(c *gin.Context) (*framework.Bundle, bool) {
	name := c.Param("name")
	b := h.platform.Loader().FindBundle(name)
	if b == nil {
		h.fail(c, fmt.Errorf("%w: %s", framework.ErrBundleNotFound, name))
		return nil, false
	}
	return b, true
}

// ListBundles lists every loaded bundle
func (h *Handlers) ListBundles(c *gin.Context) {
	bundles := h.platform.Loader().Bundles()
	infos := make([]framework.BundleInfo, len(bundles))
	for i, b := range bundles {
		infos[i] = framework.Describe(b)
	}

	c.JSON(http.StatusOK, gin.H{
		"bundles": infos,
		"states":  h.platform.Loader().StateCounts(),
	})
}

// GetBundle describes one bundle with its libraries, resources and services
func (h *Handlers) GetBundle(c *gin.Context) {
	b, ok := h.lookup(c)
	if !ok {
		return
	}
	loader := h.platform.Loader()

	libraries, err := loader.ListLibraries(b)
	if err != nil {
		h.fail(c, err)
		return
	}

	resources := []string{}
	if s := b.Storage(); s != nil {
		if resources, err = s.Walk("."); err != nil {
			h.fail(c, err)
			return
		}
	}

	registered, inUse := []serviceView{}, []serviceView{}
	if ctx := loader.GetContextForBundle(b); ctx != nil {
		for _, ref := range h.platform.Registry().RegisteredBy(ctx) {
			registered = append(registered, describeService(ref))
		}
		for _, ref := range h.platform.Registry().InUseBy(ctx) {
			inUse = append(inUse, describeService(ref))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"bundle":           framework.Describe(b),
		"headers":          b.Manifest().Headers(),
		"state_changed_at": b.StateChangedAt(),
		"libraries":        libraries,
		"resources":        resources,
		"services":         registered,
		"services_in_use":  inUse,
		"extension_points": len(h.platform.Extensions().GetExtensionPoints(b.SymbolicName())),
		"extensions":       len(h.platform.Extensions().GetExtensions(b.SymbolicName())),
	})
}

// StartBundle resolves the bundle if needed and starts it
func (h *Handlers) StartBundle(c *gin.Context) {
	b, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := b.Resolve(); err != nil {
		h.fail(c, err)
		return
	}
	if err := b.Start(); err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Bundle started via API", zap.String("bundle", b.SymbolicName()))
	c.JSON(http.StatusOK, gin.H{"success": true, "bundle": framework.Describe(b)})
}

// StopBundle stops the bundle and the bundles requiring it
func (h *Handlers) StopBundle(c *gin.Context) {
	b, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := b.Stop(); err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Bundle stopped via API", zap.String("bundle", b.SymbolicName()))
	c.JSON(http.StatusOK, gin.H{"success": true, "bundle": framework.Describe(b)})
}
