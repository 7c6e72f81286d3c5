package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/framework"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/service"
	"github.com/GriffinCanCode/AgentOS/platform/internal/platform"
)

// Version is reported by the root endpoint.
const Version = "0.1.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	platform *platform.Platform
	logger   *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(p *platform.Platform) *Handlers {
	return &Handlers{platform: p, logger: p.Logger().Named("api")}
}

// systemContext is used for registry queries made on behalf of clients.
func (h *Handlers) systemContext() *framework.Context {
	loader := h.platform.Loader()
	return loader.GetContextForBundle(loader.SystemBundle())
}

// Root handles the basic liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Bundle Platform",
		"version": Version,
		"uuid":    h.platform.Loader().Property(framework.PropFrameworkUUID),
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	system := h.platform.Loader().SystemBundle()
	status, code := "healthy", http.StatusOK
	if !system.IsActive() {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":           status,
		"system_bundle":    system.State().String(),
		"bundles":          h.platform.Loader().Stats(),
		"service_registry": h.platform.Registry().Stats(),
		"extensions":       h.platform.Extensions().Stats(),
		"uptime_seconds":   h.platform.Metrics().UptimeDuration().Seconds(),
	})
}

// Metrics returns the JSON metrics snapshot
func (h *Handlers) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.platform.Metrics().Snapshot())
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, framework.ErrBundleNotFound):
		return http.StatusNotFound
	case errors.Is(err, framework.ErrInvalidState), errors.Is(err, framework.ErrLifecycleBusy):
		return http.StatusConflict
	case errors.Is(err, framework.ErrUnresolved):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInvalidFilter):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
