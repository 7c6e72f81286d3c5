package extension

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
)

// parseDocument reads a whole contribution document and returns its root
// element.
func parseDocument(r io.Reader) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("malformed contribution: %w", err)
	}

	var root *xmlquery.Node
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode {
			continue
		}
		if root != nil {
			return nil, fmt.Errorf("malformed contribution: multiple root elements")
		}
		root = n
	}
	if root == nil {
		return nil, fmt.Errorf("malformed contribution: no root element")
	}
	return root, nil
}

// childElements returns the element children of n in document order.
func childElements(n *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// ownText returns the trimmed text directly inside n, ignoring the text of
// nested elements.
func ownText(n *xmlquery.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.TextNode || c.Type == xmlquery.CharDataNode {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

// adopt moves the top-level configuration elements of an extension below a
// document node of their own, so XPath queries from one element never see
// the rest of the contribution.
func adopt(elements []*xmlquery.Node) *xmlquery.Node {
	doc := &xmlquery.Node{Type: xmlquery.DocumentNode}
	for _, n := range elements {
		xmlquery.RemoveFromTree(n)
		xmlquery.AddChild(doc, n)
	}
	return doc
}

// attr returns the value of the attribute with the given local name.
func attr(n *xmlquery.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
