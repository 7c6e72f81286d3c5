package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/extension"
)

type extensionPointView struct {
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
	Schema      string `json:"schema,omitempty"`
	Contributor string `json:"contributor"`
	Extensions  int    `json:"extensions"`
}

type elementView struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      string            `json:"value,omitempty"`
	Extension  string            `json:"extension,omitempty"`
	Children   []elementView     `json:"children,omitempty"`
}

func describeElement(e *extension.ConfigurationElement) elementView {
	view := elementView{Name: e.GetName(), Value: e.GetValue()}
	if e.Parent() == nil && e.Extension() != nil {
		view.Extension = e.Extension().UniqueID()
	}
	if names := e.AttributeNames(); len(names) > 0 {
		view.Attributes = make(map[string]string, len(names))
		for _, name := range names {
			view.Attributes[name], _ = e.GetAttribute(name)
		}
	}
	for _, child := range e.GetChildren() {
		view.Children = append(view.Children, describeElement(child))
	}
	return view
}

// ListExtensionPoints lists every declared extension point
func (h *Handlers) ListExtensionPoints(c *gin.Context) {
	ext := h.platform.Extensions()
	points := ext.AllExtensionPoints()

	views := make([]extensionPointView, 0, len(points))
	for _, p := range points {
		extensions, _ := ext.Extensions(p.UniqueID())
		views = append(views, extensionPointView{
			ID:          p.UniqueID(),
			Label:       p.Label(),
			Schema:      p.Schema(),
			Contributor: p.Contributor(),
			Extensions:  len(extensions),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"extension_points": views,
		"pending":          len(ext.PendingExtensions()),
	})
}

// GetElements returns the configuration elements contributed to a point.
// The xpath query parameter selects elements below the point instead.
func (h *Handlers) GetElements(c *gin.Context) {
	ext := h.platform.Extensions()
	pointID := c.Param("id")
	if ext.GetExtensionPoint(pointID) == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Errorf("%w: %s", extension.ErrUnknownExtensionPoint, pointID).Error(),
		})
		return
	}

	var elements []*extension.ConfigurationElement
	if expr := c.Query("xpath"); expr != "" {
		selected, err := ext.Select(pointID, expr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		elements = selected
	} else {
		elements = ext.GetConfigurationElementsFor(pointID)
	}

	views := make([]elementView, len(elements))
	for i, e := range elements {
		views[i] = describeElement(e)
	}

	c.JSON(http.StatusOK, gin.H{
		"extension_point": pointID,
		"elements":        views,
	})
}
