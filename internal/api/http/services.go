package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/service"
)

type serviceView struct {
	ID           int64              `json:"id"`
	Interfaces   []string           `json:"interfaces"`
	Bundle       string             `json:"bundle"`
	Ranking      int                `json:"ranking"`
	Properties   service.Properties `json:"properties"`
	UsingBundles []string           `json:"using_bundles"`
}

func describeService(ref *service.Reference) serviceView {
	using := ref.UsingBundles()
	if using == nil {
		using = []string{}
	}
	return serviceView{
		ID:           ref.ID(),
		Interfaces:   ref.Interfaces(),
		Bundle:       ref.Bundle(),
		Ranking:      ref.Ranking(),
		Properties:   ref.Properties(),
		UsingBundles: using,
	}
}

// ListServices lists registered services, optionally narrowed by interface
// name and LDAP filter
func (h *Handlers) ListServices(c *gin.Context) {
	iface := c.Query("interface")
	filter := c.Query("filter")

	refs, err := h.platform.Registry().GetServiceReferences(h.systemContext(), iface, filter)
	if err != nil {
		h.fail(c, err)
		return
	}

	views := make([]serviceView, len(refs))
	for i, ref := range refs {
		views[i] = describeService(ref)
	}

	c.JSON(http.StatusOK, gin.H{
		"services": views,
		"count":    len(views),
	})
}
