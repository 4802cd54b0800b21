// Package classify assigns topic labels to problems with a generative model.
//
// Classification is best effort: any failure labels the whole batch with the
// default label and is logged, never returned.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/docutag/mathwiki/metrics"
	"github.com/docutag/mathwiki/models"
)

// Generator produces a text completion for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config contains classifier configuration
type Config struct {
	Categories   []string
	BatchSize    int
	DefaultLabel string
	Competition  string // Named in the prompt, e.g. "AMC 8"
}

// DefaultConfig returns default classifier configuration
func DefaultConfig() Config {
	return Config{
		Categories:   []string{"Arithmetic", "Algebra", "Geometry", "Number Theory", "Counting"},
		BatchSize:    10,
		DefaultLabel: "General",
	}
}

// EnrichReport summarizes a classification run
type EnrichReport struct {
	Problems  int `json:"problems"`
	Batches   int `json:"batches"`
	Fallbacks int `json:"fallbacks"` // Batches labelled with the default label after a failure
}

// Classifier labels problems in batches
type Classifier struct {
	generator Generator
	config    Config
	template  string
	known     map[string]string // lower-case category -> canonical name
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New creates a classifier
func New(generator Generator, config Config, logger *zap.Logger, m *metrics.Metrics) (*Classifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if len(config.Categories) == 0 {
		config.Categories = defaults.Categories
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.DefaultLabel == "" {
		config.DefaultLabel = defaults.DefaultLabel
	}

	template, err := loadPrompt()
	if err != nil {
		return nil, err
	}

	known := make(map[string]string, len(config.Categories))
	for _, c := range config.Categories {
		known[strings.ToLower(c)] = c
	}

	return &Classifier{
		generator: generator,
		config:    config,
		template:  template,
		known:     known,
		logger:    logger,
		metrics:   m,
	}, nil
}

// ClassifyBatch returns one label per problem, in order. It never fails: on
// any error every label is the default label.
func (c *Classifier) ClassifyBatch(ctx context.Context, problems []models.Problem) []string {
	labels, _ := c.classifyBatch(ctx, problems)
	return labels
}

// classifyBatch also reports whether the batch fell back to the default label
func (c *Classifier) classifyBatch(ctx context.Context, problems []models.Problem) ([]string, bool) {
	if len(problems) == 0 {
		return []string{}, false
	}

	labels, err := c.classify(ctx, problems)
	if err != nil {
		c.logger.Warn("classification failed, using default label",
			zap.Int("problems", len(problems)),
			zap.String("label", c.config.DefaultLabel),
			zap.Error(err),
		)
		c.metrics.ClassifierFallback()
		return c.fallback(len(problems)), true
	}
	return labels, false
}

func (c *Classifier) classify(ctx context.Context, problems []models.Problem) ([]string, error) {
	if c.generator == nil {
		return nil, &ClassificationError{Reason: "no generator configured"}
	}

	prompt := buildPrompt(c.template, c.config.Competition, c.config.Categories, problems)
	response, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, &ClassificationError{Reason: "generation failed", Err: err}
	}

	labels, err := decodeLabels(response)
	if err != nil {
		return nil, &ClassificationError{Reason: "response is not a JSON array of strings", Err: err}
	}
	if len(labels) != len(problems) {
		return nil, &ClassificationError{Reason: fmt.Sprintf("expected %d labels, got %d", len(problems), len(labels))}
	}

	for i, label := range labels {
		labels[i] = c.restrict(label)
	}
	return labels, nil
}

// restrict keeps only known categories of a comma separated label
func (c *Classifier) restrict(label string) string {
	var kept []string
	seen := map[string]bool{}
	for _, part := range strings.Split(label, ",") {
		canonical, ok := c.known[strings.ToLower(strings.TrimSpace(part))]
		if !ok || seen[canonical] {
			continue
		}
		seen[canonical] = true
		kept = append(kept, canonical)
	}
	if len(kept) == 0 {
		return c.config.DefaultLabel
	}
	return strings.Join(kept, ", ")
}

func (c *Classifier) fallback(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = c.config.DefaultLabel
	}
	return labels
}

// Enrich sets Topic on every problem of the dataset, BatchSize problems per
// request. Batches do not span exams.
func (c *Classifier) Enrich(ctx context.Context, ds *models.Dataset) EnrichReport {
	var report EnrichReport
	if ds == nil {
		return report
	}

	for e := range ds.Exams {
		problems := ds.Exams[e].Problems
		for start := 0; start < len(problems); start += c.config.BatchSize {
			if ctx.Err() != nil {
				return report
			}
			end := min(start+c.config.BatchSize, len(problems))

			labels, fellBack := c.classifyBatch(ctx, problems[start:end])
			if fellBack {
				report.Fallbacks++
			}

			for i, label := range labels {
				problems[start+i].Topic = label
			}
			report.Batches++
			report.Problems += end - start

			c.logger.Info("classified batch",
				zap.Int("year", ds.Exams[e].Year),
				zap.Int("from", problems[start].ProblemNumber),
				zap.Int("to", problems[end-1].ProblemNumber),
			)
		}
	}
	return report
}

// decodeLabels reads the first JSON array of strings in a response. Brackets
// in surrounding prose or Markdown are skipped.
func decodeLabels(response string) ([]string, error) {
	err := errors.New("no JSON array found")
	for i := strings.IndexByte(response, '['); i >= 0; {
		var labels []string
		if err = json.NewDecoder(strings.NewReader(response[i:])).Decode(&labels); err == nil {
			return labels, nil
		}
		next := strings.IndexByte(response[i+1:], '[')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, err
}
