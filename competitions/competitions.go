// Package competitions is the registry of contests the crawler can discover,
// loaded from an embedded YAML file.
package competitions

import (
	_ "embed"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed competitions.yaml
var registryYAML []byte

// Competition describes where a contest lives on the wiki
type Competition struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	IndexURL       string `yaml:"index_url"`
	YearLink       string `yaml:"year_link"`
	HrefContains   string `yaml:"href_contains"`
	ExamTitle      string `yaml:"exam_title"`
	AnswerKeyTitle string `yaml:"answer_key_title"`
	ProblemCount   int    `yaml:"problem_count"`
	FirstYear      int    `yaml:"first_year"`

	yearLink *regexp.Regexp
	index    *url.URL
}

// Validate checks the entry and compiles its year pattern
func (c *Competition) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("competition id is required")
	}
	if c.Name == "" {
		c.Name = c.ID
	}
	if c.ProblemCount <= 0 {
		return fmt.Errorf("competition %s: problem_count must be positive", c.ID)
	}

	u, err := url.Parse(c.IndexURL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("competition %s: index_url %q is not an absolute URL", c.ID, c.IndexURL)
	}
	c.index = u

	re, err := regexp.Compile(c.YearLink)
	if err != nil {
		return fmt.Errorf("competition %s: invalid year_link: %w", c.ID, err)
	}
	if re.NumSubexp() != 1 {
		return fmt.Errorf("competition %s: year_link must capture exactly the year", c.ID)
	}
	c.yearLink = re

	if c.ExamTitle != "" && !strings.Contains(c.ExamTitle, "{year}") {
		return fmt.Errorf("competition %s: exam_title must contain {year}", c.ID)
	}
	if c.AnswerKeyTitle != "" && !strings.Contains(c.AnswerKeyTitle, "{year}") {
		return fmt.Errorf("competition %s: answer_key_title must contain {year}", c.ID)
	}
	return nil
}

// MatchYear reports the exam year an index-page anchor points to
func (c Competition) MatchYear(text, href string) (int, bool) {
	if c.yearLink == nil {
		if err := c.Validate(); err != nil {
			return 0, false
		}
	}
	if href == "" || (c.HrefContains != "" && !strings.Contains(href, c.HrefContains)) {
		return 0, false
	}
	m := c.yearLink.FindStringSubmatch(strings.Join(strings.Fields(text), " "))
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil || (c.FirstYear > 0 && year < c.FirstYear) {
		return 0, false
	}
	return year, true
}

// ExamURL is the exam page for a year, used when the index page has no link
func (c Competition) ExamURL(year int) string {
	return c.pageURL(c.ExamTitle, year)
}

// AnswerKeyURL is the conventional answer key page for a year
func (c Competition) AnswerKeyURL(year int) string {
	return c.pageURL(c.AnswerKeyTitle, year)
}

// ProblemURL is the conventional page for problem n of a year
func (c Competition) ProblemURL(year, n int) string {
	if c.ExamTitle == "" {
		return ""
	}
	return c.pageURL(c.ExamTitle+"/Problem_"+strconv.Itoa(n), year)
}

// pageURL resolves a wiki title next to the index page
func (c Competition) pageURL(title string, year int) string {
	if title == "" {
		return ""
	}
	index := c.index
	if index == nil {
		u, err := url.Parse(c.IndexURL)
		if err != nil {
			return ""
		}
		index = u
	}
	title = strings.ReplaceAll(title, "{year}", strconv.Itoa(year))
	return index.ResolveReference(&url.URL{Path: title}).String()
}

// Registry holds competitions in file order
type Registry struct {
	order []Competition
	byID  map[string]int
}

type registryFile struct {
	Competitions []Competition `yaml:"competitions"`
}

// Parse reads a registry document
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse competition registry: %w", err)
	}
	if len(file.Competitions) == 0 {
		return nil, fmt.Errorf("competition registry is empty")
	}

	r := &Registry{byID: make(map[string]int, len(file.Competitions))}
	for _, c := range file.Competitions {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate competition id %s", c.ID)
		}
		r.byID[c.ID] = len(r.order)
		r.order = append(r.order, c)
	}
	return r, nil
}

// Lookup finds a competition by id, case-insensitively
func (r *Registry) Lookup(id string) (Competition, error) {
	i, ok := r.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Competition{}, fmt.Errorf("unknown competition %q (known: %s)", id, strings.Join(r.IDs(), ", "))
	}
	return r.order[i], nil
}

// All returns every competition in file order
func (r *Registry) All() []Competition {
	out := make([]Competition, len(r.order))
	copy(out, r.order)
	return out
}

// IDs returns the sorted competition ids
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.order))
	for _, c := range r.order {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	return ids
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the embedded registry
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = Parse(registryYAML)
	})
	return defaultRegistry, defaultErr
}

// Lookup finds a competition in the embedded registry
func Lookup(id string) (Competition, error) {
	r, err := Default()
	if err != nil {
		return Competition{}, err
	}
	return r.Lookup(id)
}

// All lists the embedded registry
func All() []Competition {
	r, err := Default()
	if err != nil {
		return nil
	}
	return r.All()
}
