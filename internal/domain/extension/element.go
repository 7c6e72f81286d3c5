package extension

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ConfigurationElement is one element of an extension's configuration tree.
type ConfigurationElement struct {
	name      string
	attrNames []string
	attrs     map[string]string
	value     string
	children  []*ConfigurationElement
	parent    *ConfigurationElement // nil for top-level elements
	extension *Extension
	node      *xmlquery.Node
}

func newElement(n *xmlquery.Node, parent *ConfigurationElement, ext *Extension) *ConfigurationElement {
	e := &ConfigurationElement{
		name:      n.Data,
		attrs:     make(map[string]string, len(n.Attr)),
		value:     ownText(n),
		parent:    parent,
		extension: ext,
		node:      n,
	}
	for _, a := range n.Attr {
		if _, dup := e.attrs[a.Name.Local]; !dup {
			e.attrNames = append(e.attrNames, a.Name.Local)
		}
		e.attrs[a.Name.Local] = a.Value
	}
	for _, child := range childElements(n) {
		e.children = append(e.children, newElement(child, e, ext))
	}
	ext.index(n, e)
	return e
}

// GetName returns the element name.
func (e *ConfigurationElement) GetName() string {
	return e.name
}

// GetAttribute returns the value of an attribute and whether it is present.
func (e *ConfigurationElement) GetAttribute(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

// GetBoolAttribute parses an attribute as a boolean. Absent or malformed
// values report false.
func (e *ConfigurationElement) GetBoolAttribute(name string) (bool, bool) {
	raw, ok := e.attrs[name]
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, false
	}
	return b, true
}

// AttributeNames returns attribute names in document order.
func (e *ConfigurationElement) AttributeNames() []string {
	return append([]string(nil), e.attrNames...)
}

// GetValue returns the trimmed text content of the element.
func (e *ConfigurationElement) GetValue() string {
	return e.value
}

// GetChildren returns the child elements, optionally only those with the
// given name.
func (e *ConfigurationElement) GetChildren(name ...string) []*ConfigurationElement {
	if len(name) == 0 {
		return append([]*ConfigurationElement(nil), e.children...)
	}
	var out []*ConfigurationElement
	for _, child := range e.children {
		for _, n := range name {
			if child.name == n {
				out = append(out, child)
				break
			}
		}
	}
	return out
}

// Parent returns the enclosing element, or nil for a top-level element of an
// extension.
func (e *ConfigurationElement) Parent() *ConfigurationElement {
	return e.parent
}

// Extension returns the extension the element belongs to.
func (e *ConfigurationElement) Extension() *Extension {
	return e.extension
}

// Contributor returns the symbolic name of the contributing bundle.
func (e *ConfigurationElement) Contributor() string {
	return e.extension.contributor
}

// CreateExecutableExtension instantiates the class named by attribute attr
// from the contributing bundle.
func (e *ConfigurationElement) CreateExecutableExtension(attr string) (any, error) {
	class, ok := e.attrs[attr]
	if !ok || strings.TrimSpace(class) == "" {
		return nil, fmt.Errorf("%w: <%s> has no %q attribute (contributed by %s)",
			ErrMissingAttribute, e.name, attr, e.Contributor())
	}

	var loader ClassLoader
	if svc := e.extension.service; svc != nil {
		loader = svc.classLoader()
	}
	if loader == nil {
		return nil, ErrNoClassLoader
	}

	obj, err := loader.CreateInstance(e.Contributor(), strings.TrimSpace(class))
	if err != nil {
		return nil, fmt.Errorf("failed to create executable extension <%s %s=%q>: %w", e.name, attr, class, err)
	}
	return obj, nil
}

// CreateExecutableExtension instantiates the class named by attr and checks
// that it is a T.
func CreateExecutableExtension[T any](e *ConfigurationElement, attr string) (T, error) {
	var zero T

	obj, err := e.CreateExecutableExtension(attr)
	if err != nil {
		return zero, err
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T from <%s %s> is not %T", ErrIncompatibleType, obj, e.name, attr, (*T)(nil))
	}
	return typed, nil
}
