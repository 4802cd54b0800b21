package assemble

import (
	"regexp"
	"strings"

	"github.com/docutag/mathwiki/models"
)

var choiceLabel = regexp.MustCompile(`\\(?:textbf|mathrm|text)\s*\{\s*\(([A-E])\)(?:\s|\\ |~)*\}`)

// Spacing and delimiter tokens stripped from the ends of a choice until
// nothing changes
var (
	choicePrefixes = []string{`\qquad`, `\quad`, `\ `, `~`, `$`, `\\`}
	choiceSuffixes = []string{`\qquad`, `\quad`, `\ `, `~`, `$`, `\\`, `\`}
)

// ParseChoiceRow reads a "\textbf{(A)} 2 \qquad \textbf{(B)} 3 ..." row from
// problem text. All five letters must appear in order, otherwise nil.
func ParseChoiceRow(text string) map[string]string {
	matches := choiceLabel.FindAllStringSubmatchIndex(text, -1)

	for start := 0; start+len(models.ChoiceLetters) <= len(matches); start++ {
		run := matches[start : start+len(models.ChoiceLetters)]
		if !inOrder(text, run) {
			continue
		}

		choices := make(map[string]string, len(run))
		for i, m := range run {
			end := len(text)
			if i+1 < len(run) {
				end = run[i+1][0]
			} else if nl := strings.IndexByte(text[m[1]:], '\n'); nl >= 0 {
				end = m[1] + nl
			}
			value := trimChoice(text[m[1]:end])
			if value == "" {
				return nil
			}
			choices[models.ChoiceLetters[i]] = value
		}
		return choices
	}
	return nil
}

func inOrder(text string, run [][]int) bool {
	for i, m := range run {
		if text[m[2]:m[3]] != models.ChoiceLetters[i] {
			return false
		}
	}
	return true
}

func trimChoice(s string) string {
	for {
		before := s
		s = strings.TrimSpace(s)
		for _, token := range choicePrefixes {
			s = strings.TrimPrefix(s, token)
		}
		for _, token := range choiceSuffixes {
			s = strings.TrimSuffix(s, token)
		}
		if s == before {
			return s
		}
	}
}
