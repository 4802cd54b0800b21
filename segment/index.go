package segment

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type heading struct {
	node   *html.Node
	anchor *html.Node // Outermost node standing for the heading in its parent
	level  int
}

var headingLevels = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3,
	atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// buildIndex lists every heading under container in document order
func buildIndex(container *html.Node) []heading {
	var index []heading
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if level, ok := headingLevels[c.DataAtom]; ok {
				index = append(index, heading{node: c, anchor: anchorOf(container, c), level: level})
				continue
			}
			walk(c)
		}
	}
	walk(container)
	return index
}

// anchorOf climbs from a heading through wrappers that only exist to hold it,
// such as MediaWiki's div.mw-heading
func anchorOf(container, h *html.Node) *html.Node {
	anchor := h
	for p := anchor.Parent; p != nil && p != container; p = p.Parent {
		if !hasClass(p, "mw-heading") && !onlyHolds(p, anchor) {
			break
		}
		anchor = p
	}
	return anchor
}

// onlyHolds reports whether p has no content besides child and edit links
func onlyHolds(p, child *html.Node) bool {
	if p.Type != html.ElementNode {
		return false
	}
	for c := p.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c == child:
		case c.Type == html.TextNode && strings.TrimSpace(c.Data) == "":
		case c.Type == html.CommentNode:
		case c.Type == html.ElementNode && hasClass(c, "mw-editsection"):
		default:
			return false
		}
	}
	return true
}

// between returns the maximal subtrees after start and before end, in
// document order. A nil end means the end of container.
func between(container, start, end *html.Node) []*html.Node {
	var nodes []*html.Node
	n := following(container, start)
	for n != nil && n != end {
		if end != nil && contains(n, end) {
			n = n.FirstChild
			continue
		}
		if n.Type != html.CommentNode {
			nodes = append(nodes, n)
		}
		n = following(container, n)
	}
	return nodes
}

// following returns the next node after n's subtree without leaving container
func following(container, n *html.Node) *html.Node {
	for n != nil && n != container {
		if n.NextSibling != nil {
			return n.NextSibling
		}
		n = n.Parent
	}
	return nil
}

func contains(ancestor, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// headingTitle is the visible heading text without edit links
func headingTitle(h *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
		case html.ElementNode:
			if hasClass(n, "mw-editsection") {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(h)

	title := strings.ReplaceAll(sb.String(), "[edit]", "")
	return strings.Join(strings.Fields(title), " ")
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}
