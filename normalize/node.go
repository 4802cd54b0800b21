package normalize

import (
	"strings"

	"golang.org/x/net/html"
)

// Node is the read-only view of a markup node that text flattening needs.
// Any tree can be flattened once it offers these capabilities.
type Node interface {
	// Text returns the character data of a text node
	Text() (string, bool)
	// Element returns the lower-case tag name of an element node
	Element() (string, bool)
	Attr(key string) string
	HasClass(class string) bool
	Children() []Node
}

type htmlNode struct {
	n *html.Node
}

// FromHTML adapts a parsed HTML node
func FromHTML(n *html.Node) Node {
	return htmlNode{n: n}
}

func (h htmlNode) Text() (string, bool) {
	if h.n.Type != html.TextNode {
		return "", false
	}
	return h.n.Data, true
}

func (h htmlNode) Element() (string, bool) {
	if h.n.Type != html.ElementNode {
		return "", false
	}
	return strings.ToLower(h.n.Data), true
}

func (h htmlNode) Attr(key string) string {
	for _, attr := range h.n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func (h htmlNode) HasClass(class string) bool {
	for _, c := range strings.Fields(h.Attr("class")) {
		if c == class {
			return true
		}
	}
	return false
}

func (h htmlNode) Children() []Node {
	var children []Node
	for c := h.n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, htmlNode{n: c})
	}
	return children
}
