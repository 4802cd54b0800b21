package classify

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/docutag/mathwiki/models"
)

//go:embed prompt.yaml
var promptYAML []byte

type promptTemplates struct {
	ClassifyBatch string `yaml:"classify_batch"`
}

func loadPrompt() (string, error) {
	var templates promptTemplates
	if err := yaml.Unmarshal(promptYAML, &templates); err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}
	if templates.ClassifyBatch == "" {
		return "", fmt.Errorf("prompt template classify_batch is empty")
	}
	return templates.ClassifyBatch, nil
}

// buildPrompt fills the batch template. Plain replacement keeps braces in
// TeX problem text from being read as template actions.
func buildPrompt(template, competition string, categories []string, problems []models.Problem) string {
	var list strings.Builder
	for i, p := range problems {
		if i > 0 {
			list.WriteString("\n\n")
		}
		text := p.ProblemText
		if text == "" {
			text = p.ProblemHTML
		}
		list.WriteString(strconv.Itoa(i+1) + ". " + text)
	}

	if competition == "" {
		competition = "competition"
	}
	r := strings.NewReplacer(
		"{{.Competition}}", competition,
		"{{.Categories}}", strings.Join(categories, ", "),
		"{{.Count}}", strconv.Itoa(len(problems)),
		"{{.Problems}}", list.String(),
	)
	return r.Replace(template)
}
