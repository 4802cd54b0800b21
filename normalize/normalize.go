// Package normalize turns the nodes of a page section into plain text,
// portable HTML and Markdown.
package normalize

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// noiseSelectors are wiki chrome that never belongs to a problem or solution
var noiseSelectors = []string{
	"script", "style", "noscript",
	"#toc", ".toc",
	".mw-editsection",
	".printfooter",
	"#catlinks",
	"table.wikitable", "table.toccolours",
	"div.print",
	".mw-jump-link",
}

// Content is a normalized section
type Content struct {
	Text     string
	HTML     string
	Markdown string
}

// Normalizer converts section nodes. It never modifies the input tree.
type Normalizer struct {
	base  *url.URL
	noise []cascadia.Sel
}

// New creates a normalizer that resolves links against base. A nil base
// leaves relative links untouched.
func New(base *url.URL) *Normalizer {
	noise := make([]cascadia.Sel, 0, len(noiseSelectors))
	for _, s := range noiseSelectors {
		sel, err := cascadia.Parse(s)
		if err != nil {
			continue
		}
		noise = append(noise, sel)
	}
	return &Normalizer{base: base, noise: noise}
}

// Normalize converts the nodes of one section
func (n *Normalizer) Normalize(nodes []*html.Node) (Content, error) {
	var text strings.Builder
	var markup bytes.Buffer

	for _, node := range nodes {
		clean := n.clone(node)
		if clean == nil {
			continue
		}
		text.WriteString(Flatten(FromHTML(clean)))
		if err := html.Render(&markup, clean); err != nil {
			return Content{}, fmt.Errorf("rendering HTML: %w", err)
		}
	}

	content := Content{
		Text: CleanText(text.String()),
		HTML: strings.TrimSpace(markup.String()),
	}
	if content.HTML == "" {
		return content, nil
	}

	markdown, err := htmltomarkdown.ConvertString(content.HTML)
	if err != nil {
		return Content{}, fmt.Errorf("converting HTML to markdown: %w", err)
	}
	content.Markdown = strings.TrimSpace(markdown)
	return content, nil
}

// Text flattens and cleans nodes without producing markup
func (n *Normalizer) Text(nodes []*html.Node) string {
	var sb strings.Builder
	for _, node := range nodes {
		if clean := n.clone(node); clean != nil {
			sb.WriteString(Flatten(FromHTML(clean)))
		}
	}
	return CleanText(sb.String())
}

// clone deep-copies a node, dropping noise and making links absolute.
// Returns nil when the node itself is noise.
func (n *Normalizer) clone(src *html.Node) *html.Node {
	if src.Type == html.CommentNode || n.isNoise(src) {
		return nil
	}

	dst := &html.Node{
		Type:      src.Type,
		DataAtom:  src.DataAtom,
		Data:      src.Data,
		Namespace: src.Namespace,
		Attr:      n.rewriteAttrs(src.Attr),
	}
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		if cc := n.clone(c); cc != nil {
			dst.AppendChild(cc)
		}
	}
	return dst
}

func (n *Normalizer) isNoise(node *html.Node) bool {
	if node.Type != html.ElementNode {
		return false
	}
	for _, sel := range n.noise {
		if sel.Match(node) {
			return true
		}
	}
	return false
}

// rewriteAttrs copies attributes, resolving protocol-relative and
// root-relative src and href values
func (n *Normalizer) rewriteAttrs(attrs []html.Attribute) []html.Attribute {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]html.Attribute, len(attrs))
	copy(out, attrs)
	if n.base == nil {
		return out
	}

	for i, attr := range out {
		if attr.Key != "src" && attr.Key != "href" {
			continue
		}
		if !strings.HasPrefix(attr.Val, "/") {
			continue
		}
		ref, err := url.Parse(attr.Val)
		if err != nil {
			continue
		}
		out[i].Val = n.base.ResolveReference(ref).String()
	}
	return out
}
