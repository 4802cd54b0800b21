// Package segment splits a wiki page into titled sections.
//
// A section is everything between its heading and the next heading of the same
// or a higher level. Boundaries come from an ordered heading index built over
// the parsed tree, never from searching the page text, so a section whose title
// is a prefix of another ("Solution 1" and "Solution 10") cannot absorb it.
package segment

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Kind classifies a section by its title
type Kind string

const (
	KindProblem   Kind = "problem"
	KindSolution  Kind = "solution"
	KindVideo     Kind = "video"
	KindAnswerKey Kind = "answer_key"
	KindOther     Kind = "other"
)

// Section is one titled region of a page
type Section struct {
	Title string
	Level int
	Kind  Kind
	Nodes []*html.Node // Maximal subtrees between the heading and the section boundary
}

// Find returns the elements matching selector inside the section, including
// top-level section nodes that match themselves
func (s Section) Find(selector string) []*html.Node {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil
	}
	var matches []*html.Node
	for _, n := range s.Nodes {
		if n.Type != html.ElementNode {
			continue
		}
		if sel.Match(n) {
			matches = append(matches, n)
		}
		matches = append(matches, cascadia.QueryAll(n, sel)...)
	}
	return matches
}

// Filter returns the sections of the given kind in page order
func Filter(sections []Section, kind Kind) []Section {
	var out []Section
	for _, s := range sections {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// First returns the first section of the given kind
func First(sections []Section, kind Kind) (Section, bool) {
	for _, s := range sections {
		if s.Kind == kind {
			return s, true
		}
	}
	return Section{}, false
}

// Config contains segmenter configuration
type Config struct {
	Container string   // Selector for the content root
	Level     int      // Heading level that opens a section
	Denylist  []string // Section titles to drop, compared case-insensitively
}

// DefaultConfig returns the configuration for MediaWiki problem pages
func DefaultConfig() Config {
	return Config{
		Container: ".mw-parser-output",
		Level:     2,
		Denylist: []string{
			"see also",
			"external links",
			"references",
			"annotated solutions",
			"email sent",
			"credits",
		},
	}
}

// Segmenter splits pages into sections
type Segmenter struct {
	config    Config
	container cascadia.Sel
	denylist  map[string]bool
}

// New creates a segmenter. An invalid container selector falls back to the
// default one.
func New(config Config) *Segmenter {
	if config.Level < 1 || config.Level > 6 {
		config.Level = 2
	}
	if config.Container == "" {
		config.Container = DefaultConfig().Container
	}
	sel, err := cascadia.Parse(config.Container)
	if err != nil {
		config.Container = DefaultConfig().Container
		sel, _ = cascadia.Parse(config.Container)
	}

	deny := make(map[string]bool, len(config.Denylist))
	for _, title := range config.Denylist {
		deny[strings.ToLower(strings.TrimSpace(title))] = true
	}

	return &Segmenter{config: config, container: sel, denylist: deny}
}

// Segment splits a loaded document
func (s *Segmenter) Segment(doc *goquery.Document) ([]Section, error) {
	if doc == nil || len(doc.Nodes) == 0 {
		return nil, &ExtractionError{Reason: "empty document"}
	}
	return s.SegmentNode(doc.Nodes[0])
}

// SegmentNode splits the tree rooted at root
func (s *Segmenter) SegmentNode(root *html.Node) ([]Section, error) {
	container := cascadia.Query(root, s.container)
	if container == nil {
		return nil, &ExtractionError{Reason: "content container " + s.config.Container + " not found"}
	}

	index := buildIndex(container)
	var sections []Section
	for i, h := range index {
		if h.level != s.config.Level {
			continue
		}

		title := headingTitle(h.node)
		if s.denylist[strings.ToLower(title)] {
			continue
		}

		var end *html.Node
		for _, next := range index[i+1:] {
			if next.level <= h.level {
				end = next.anchor
				break
			}
		}

		sections = append(sections, Section{
			Title: title,
			Level: h.level,
			Kind:  Classify(title),
			Nodes: between(container, h.anchor, end),
		})
	}

	return sections, nil
}

// Classify maps a section title to its kind. Order matters: "Video Solution"
// is a video, not a written solution.
func Classify(title string) Kind {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "video"):
		return KindVideo
	case strings.Contains(lower, "solution"):
		return KindSolution
	case strings.Contains(lower, "answer key"):
		return KindAnswerKey
	case strings.Contains(lower, "problem"):
		return KindProblem
	default:
		return KindOther
	}
}
