package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var inlineSpace = regexp.MustCompile(`\s+`)

var blockElements = map[string]bool{
	"p": true, "div": true, "center": true, "dl": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "tr": true,
}

// Flatten renders a node as plain text the way a reader sees it: math images
// become their TeX alt text, list items are bulleted or numbered and block
// elements sit on their own lines. Flatten does not modify the node.
func Flatten(n Node) string {
	var sb strings.Builder
	flatten(&sb, n, false)
	return sb.String()
}

func flatten(sb *strings.Builder, n Node, pre bool) {
	if text, ok := n.Text(); ok {
		if pre {
			sb.WriteString(text)
		} else {
			sb.WriteString(inlineSpace.ReplaceAllString(text, " "))
		}
		return
	}

	tag, ok := n.Element()
	if !ok {
		// Document and fragment roots
		for _, c := range n.Children() {
			flatten(sb, c, pre)
		}
		return
	}

	switch {
	case tag == "script" || tag == "style" || tag == "noscript":
		return
	case tag == "img":
		if n.HasClass("latex") || n.HasClass("latexcenter") {
			alt := n.Attr("alt")
			if n.HasClass("latexcenter") {
				sb.WriteString("\n" + alt + "\n")
			} else {
				sb.WriteString(alt)
			}
		}
		return
	case tag == "br":
		sb.WriteString("\n")
		return
	case tag == "ul" || tag == "ol":
		flattenList(sb, n, tag == "ol", pre)
		return
	case tag == "pre":
		sb.WriteString("\n" + strings.Trim(inner(n, true), "\n") + "\n")
		return
	case blockElements[tag]:
		sb.WriteString("\n" + strings.TrimSpace(inner(n, pre)) + "\n")
		return
	case tag == "td" || tag == "th":
		sb.WriteString(strings.TrimSpace(inner(n, pre)) + " ")
		return
	}

	for _, c := range n.Children() {
		flatten(sb, c, pre)
	}
}

func flattenList(sb *strings.Builder, list Node, ordered, pre bool) {
	number := 1
	if start, err := strconv.Atoi(list.Attr("start")); err == nil && ordered {
		number = start
	}

	sb.WriteString("\n")
	for _, item := range list.Children() {
		if tag, ok := item.Element(); !ok || tag != "li" {
			continue
		}
		text := strings.TrimSpace(inner(item, pre))
		if ordered {
			sb.WriteString(strconv.Itoa(number) + ". " + text + "\n")
			number++
		} else {
			sb.WriteString("• " + text + "\n")
		}
	}
}

func inner(n Node, pre bool) string {
	var sb strings.Builder
	for _, c := range n.Children() {
		flatten(&sb, c, pre)
	}
	return sb.String()
}
