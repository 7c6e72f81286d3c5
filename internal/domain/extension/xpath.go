package extension

import (
	"fmt"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// elementIndex maps parsed nodes back to their configuration elements.
type elementIndex map[*xmlquery.Node]*ConfigurationElement

// Select evaluates an XPath expression with e as the context node and
// returns the matching elements. Absolute paths such as //editor search
// every element of the extension.
func (e *ConfigurationElement) Select(expr string) ([]*ConfigurationElement, error) {
	return selectElements(navigatorAt(e.node), e.extension.nodes, expr)
}

// Evaluate evaluates an XPath expression with e as the context node. The
// result is a float64, string or bool, or []*ConfigurationElement for node
// sets.
func (e *ConfigurationElement) Evaluate(expr string) (any, error) {
	return evaluate(navigatorAt(e.node), e.extension.nodes, expr)
}

// Select evaluates an XPath expression over all configuration elements of a
// point. The elements are children of a common document root.
func (s *Service) Select(pointID, expr string) ([]*ConfigurationElement, error) {
	if s.GetExtensionPoint(pointID) == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExtensionPoint, pointID)
	}
	doc, index := mergedDocument(s.GetConfigurationElementsFor(pointID))
	return selectElements(xmlquery.CreateXPathNavigator(doc), index, expr)
}

// mergedDocument copies elements below one document node. The copies index
// back to the originals.
func mergedDocument(elements []*ConfigurationElement) (*xmlquery.Node, elementIndex) {
	doc := &xmlquery.Node{Type: xmlquery.DocumentNode}
	index := make(elementIndex)
	for _, e := range elements {
		copyElement(doc, e, index)
	}
	return doc, index
}

func copyElement(parent *xmlquery.Node, e *ConfigurationElement, index elementIndex) {
	n := &xmlquery.Node{
		Type:   xmlquery.ElementNode,
		Data:   e.node.Data,
		Prefix: e.node.Prefix,
		Attr:   append([]xmlquery.Attr(nil), e.node.Attr...),
	}
	xmlquery.AddChild(parent, n)
	index[n] = e

	if e.value != "" {
		xmlquery.AddChild(n, &xmlquery.Node{Type: xmlquery.TextNode, Data: e.value})
	}
	for _, child := range e.children {
		copyElement(n, child, index)
	}
}

// navigatorAt returns a navigator over the whole tree of n, positioned on n.
func navigatorAt(n *xmlquery.Node) *xmlquery.NodeNavigator {
	var path []*xmlquery.Node
	root := n
	for root.Parent != nil {
		path = append(path, root)
		root = root.Parent
	}

	nav := xmlquery.CreateXPathNavigator(root)
	for i := len(path) - 1; i >= 0; i-- {
		if !nav.MoveToChild() {
			break
		}
		for nav.Current() != path[i] && nav.MoveToNext() {
		}
	}
	return nav
}

func compile(expr string) (*xpath.Expr, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidXPath, expr, err)
	}
	return compiled, nil
}

func selectElements(nav *xmlquery.NodeNavigator, index elementIndex, expr string) (out []*ConfigurationElement, err error) {
	compiled, err := compile(expr)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("%w: %q: %v", ErrInvalidXPath, expr, rec)
		}
	}()
	return collect(compiled.Select(nav), index), nil
}

func evaluate(nav *xmlquery.NodeNavigator, index elementIndex, expr string) (result any, err error) {
	compiled, err := compile(expr)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			result, err = nil, fmt.Errorf("%w: %q: %v", ErrInvalidXPath, expr, rec)
		}
	}()

	switch v := compiled.Evaluate(nav).(type) {
	case *xpath.NodeIterator:
		return collect(v, index), nil
	default:
		return v, nil
	}
}

// collect returns the distinct elements of an iterator. Attribute and text
// nodes resolve to their owning element; nodes outside the index, such as
// the document root, are dropped.
func collect(it *xpath.NodeIterator, index elementIndex) []*ConfigurationElement {
	var out []*ConfigurationElement
	seen := make(map[*ConfigurationElement]bool)
	for it.MoveNext() {
		nav, ok := it.Current().(*xmlquery.NodeNavigator)
		if !ok {
			continue
		}
		n := nav.Current()
		if n.Type != xmlquery.ElementNode {
			n = n.Parent
		}
		e, ok := index[n]
		if !ok || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
