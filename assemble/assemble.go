// Package assemble builds Problem records from the sections of a problem page.
package assemble

import (
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/docutag/mathwiki/answer"
	"github.com/docutag/mathwiki/models"
	"github.com/docutag/mathwiki/normalize"
	"github.com/docutag/mathwiki/segment"
)

// Config contains assembler configuration
type Config struct {
	VideoHosts []string // Hosts whose links count as video solutions, subdomains included
}

// DefaultConfig returns default assembler configuration
func DefaultConfig() Config {
	return Config{
		VideoHosts: []string{"youtube.com", "youtu.be", "vimeo.com"},
	}
}

// Input is everything known about one problem page
type Input struct {
	Number    int
	PageURL   string
	Sections  []segment.Section
	AnswerKey models.AnswerKey // May be nil when the exam has no key page
}

// Assembler builds problem records
type Assembler struct {
	config Config
	logger *zap.Logger
}

// New creates an assembler
func New(config Config, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(config.VideoHosts) == 0 {
		config.VideoHosts = DefaultConfig().VideoHosts
	}
	return &Assembler{config: config, logger: logger}
}

// Assemble builds the record for one problem. A page without a Problem
// section yields a *segment.ExtractionError.
func (a *Assembler) Assemble(in Input) (models.Problem, error) {
	problemSection, ok := segment.First(in.Sections, segment.KindProblem)
	if !ok {
		return models.Problem{}, &segment.ExtractionError{URL: in.PageURL, Reason: "no Problem section"}
	}

	base, err := url.Parse(in.PageURL)
	if err != nil || in.PageURL == "" {
		base = nil
	}
	normalizer := normalize.New(base)

	content, err := normalizer.Normalize(problemSection.Nodes)
	if err != nil {
		return models.Problem{}, fmt.Errorf("normalizing problem %d: %w", in.Number, err)
	}

	problem := models.Problem{
		ProblemNumber:   in.Number,
		ProblemText:     content.Text,
		ProblemHTML:     content.HTML,
		ProblemMarkdown: content.Markdown,
		SourceURL:       in.PageURL,
		Solutions:       []models.Solution{},
		VideoSolutions:  []models.VideoSolution{},
	}

	for _, section := range segment.Filter(in.Sections, segment.KindSolution) {
		solution, err := normalizer.Normalize(section.Nodes)
		if err != nil {
			return models.Problem{}, fmt.Errorf("normalizing %q of problem %d: %w", section.Title, in.Number, err)
		}
		problem.Solutions = append(problem.Solutions, models.Solution{
			Title: section.Title,
			Text:  solution.Text,
			HTML:  solution.HTML,
		})
	}

	for _, section := range segment.Filter(in.Sections, segment.KindVideo) {
		if link := a.videoLink(section, base); link != "" {
			problem.VideoSolutions = append(problem.VideoSolutions, models.VideoSolution{
				Title: section.Title,
				URL:   link,
			})
		}
	}

	problem.Choices = listChoices(problemSection, normalizer)
	if problem.Choices == nil {
		problem.Choices = ParseChoiceRow(problem.ProblemText)
	}

	var solutionText, solutionHTML string
	if len(problem.Solutions) > 0 {
		solutionText = problem.Solutions[0].Text
		solutionHTML = problem.Solutions[0].HTML
	}
	resolution := answer.Resolve(in.Number, in.AnswerKey, solutionText, solutionHTML)
	problem.CorrectAnswer = resolution.Letter
	problem.AnswerSource = string(resolution.Source)

	if !resolution.Resolved() {
		problem.Warnings = append(problem.Warnings, models.WarningAnswerUnresolved)
		a.logger.Warn("answer unresolved",
			zap.Int("problem", in.Number),
			zap.String("url", in.PageURL),
		)
	}
	if resolution.Conflict {
		problem.Warnings = append(problem.Warnings, models.WarningAnswerConflict)
		a.logger.Warn("answer key disagrees with solution",
			zap.Int("problem", in.Number),
			zap.String("key", resolution.Letter),
			zap.String("solution", resolution.Heuristic),
			zap.String("url", in.PageURL),
		)
	}
	if len(problem.Solutions) == 0 {
		problem.Warnings = append(problem.Warnings, models.WarningNoSolutions)
	}

	return models.ProjectLegacy(problem), nil
}

// videoLink returns the first link in the section that points at a video host
func (a *Assembler) videoLink(section segment.Section, base *url.URL) string {
	for _, anchor := range section.Find("a[href]") {
		href := attr(anchor, "href")
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if a.isVideoHost(ref.Hostname()) {
			return ref.String()
		}
	}
	return ""
}

func (a *Assembler) isVideoHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range a.config.VideoHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// listChoices maps the first ordered list of two to five items in the problem
// section to choice letters
func listChoices(section segment.Section, normalizer *normalize.Normalizer) map[string]string {
	for _, list := range section.Find("ol") {
		var items []*html.Node
		for li := list.FirstChild; li != nil; li = li.NextSibling {
			if li.Type == html.ElementNode && li.Data == "li" {
				items = append(items, li)
			}
		}
		if len(items) < 2 || len(items) > len(models.ChoiceLetters) {
			continue
		}

		choices := make(map[string]string, len(items))
		for i, li := range items {
			choices[models.ChoiceLetters[i]] = normalizer.Text([]*html.Node{li})
		}
		return choices
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
