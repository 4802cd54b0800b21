// Package answer decides the correct choice letter of a problem.
//
// The exam's answer key is authoritative. Without it the letter is inferred
// from the first solution: a boxed letter, then an explicit "the answer is"
// statement, then a parenthesized letter after a concluding word.
package answer

import (
	"regexp"
	"strings"

	"github.com/docutag/mathwiki/models"
)

// Source records which rule produced a letter
type Source string

const (
	SourceNone       Source = ""
	SourceAnswerKey  Source = "answer_key"
	SourceBoxed      Source = "boxed"
	SourceStatement  Source = "statement"
	SourceConclusion Source = "conclusion"
)

// Resolution is the outcome of resolving one problem
type Resolution struct {
	Letter    string // Empty when unresolved
	Source    Source
	Heuristic string // Letter inferred from the solution, even when the key won
	Conflict  bool   // Key and solution disagree
}

// Resolved reports whether a letter was found
func (r Resolution) Resolved() bool {
	return r.Letter != ""
}

var (
	// \boxed{B}, \boxed{(B)}, \boxed{\textbf{(B)}~12}, \boxed{\mathbf{(b)}}
	boxedPattern = regexp.MustCompile(`\\boxed\s*\{\s*(?:\\(?:textbf|mathbf|text|mathrm)\s*\{\s*)?(?:\(\s*([A-Ea-e])\s*\)|([A-E])\s*\})`)

	// "The answer is (C)", "Answer: $\textbf{D}", "answer is E."
	statementPattern = regexp.MustCompile(`(?i:answer\s*(?:is|:))[\s~]*(?:\$\s*)?(?:\\textbf\s*\{\s*)?\(?([A-E])\)?(?:[^A-Za-z]|$)`)

	// "Therefore (A)", "so the answer must be $\textbf{(E)}"
	conclusionPattern = regexp.MustCompile(`(?i:\b(?:therefore|thus|so|hence)\b)[^.\n]{0,60}?\(([A-E])\)`)
)

// Resolve picks the answer for problem n. A key entry wins; the heuristic
// letter is still computed so disagreements can be reported.
func Resolve(n int, key models.AnswerKey, text, markup string) Resolution {
	letter, source := FromSolution(text, markup)
	r := Resolution{Heuristic: letter}

	if k := normalizeLetter(key[n]); k != "" {
		r.Letter = k
		r.Source = SourceAnswerKey
		r.Conflict = letter != "" && letter != k
		return r
	}

	r.Letter = letter
	r.Source = source
	return r
}

// FromSolution infers a letter from solution text and markup. Each rule is
// tried on the text first, then on the markup, before the next rule runs.
func FromSolution(text, markup string) (string, Source) {
	rules := []struct {
		pattern *regexp.Regexp
		source  Source
	}{
		{boxedPattern, SourceBoxed},
		{statementPattern, SourceStatement},
		{conclusionPattern, SourceConclusion},
	}

	for _, rule := range rules {
		for _, haystack := range []string{text, markup} {
			if haystack == "" {
				continue
			}
			if letter := firstGroup(rule.pattern.FindStringSubmatch(haystack)); letter != "" {
				return letter, rule.source
			}
		}
	}
	return "", SourceNone
}

func firstGroup(match []string) string {
	for _, g := range match[min(1, len(match)):] {
		if g != "" {
			return strings.ToUpper(g)
		}
	}
	return ""
}

func normalizeLetter(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, letter := range models.ChoiceLetters {
		if s == letter {
			return s
		}
	}
	return ""
}
