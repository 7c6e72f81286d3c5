package extension

import "github.com/antchfx/xmlquery"

// ExtensionPoint is a named slot declared by one bundle.
type ExtensionPoint struct {
	uniqueID    string
	simpleID    string
	label       string
	schema      string
	contributor string
	extensions  []*Extension // protected by Service.mu
}

// UniqueID returns the qualified id, e.g. "org.example.core.editors".
func (p *ExtensionPoint) UniqueID() string { return p.uniqueID }

// SimpleID returns the id as written in the contribution.
func (p *ExtensionPoint) SimpleID() string { return p.simpleID }

// Label returns the human readable name of the point.
func (p *ExtensionPoint) Label() string { return p.label }

// Schema returns the schema reference declared for the point, if any.
func (p *ExtensionPoint) Schema() string { return p.schema }

// Contributor returns the symbolic name of the declaring bundle.
func (p *ExtensionPoint) Contributor() string { return p.contributor }

// Extension is one contribution to an extension point.
type Extension struct {
	nodes       elementIndex
	uniqueID    string // empty for anonymous extensions
	simpleID    string
	label       string
	pointID     string
	contributor string
	elements    []*ConfigurationElement
	service     *Service
}

// UniqueID returns the qualified id, or "" for an anonymous extension.
func (e *Extension) UniqueID() string { return e.uniqueID }

// SimpleID returns the id as written in the contribution.
func (e *Extension) SimpleID() string { return e.simpleID }

// Label returns the human readable name of the extension.
func (e *Extension) Label() string { return e.label }

// Contributor returns the symbolic name of the contributing bundle.
func (e *Extension) Contributor() string { return e.contributor }

// ExtensionPointID returns the qualified id of the point the extension
// plugs into.
func (e *Extension) ExtensionPointID() string { return e.pointID }

// ConfigurationElements returns the top-level elements of the extension.
func (e *Extension) ConfigurationElements() []*ConfigurationElement {
	return append([]*ConfigurationElement(nil), e.elements...)
}

func (e *Extension) index(n *xmlquery.Node, elem *ConfigurationElement) {
	if e.nodes == nil {
		e.nodes = make(elementIndex)
	}
	e.nodes[n] = elem
}
