package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Choice letters in the order they appear on an exam
var ChoiceLetters = []string{"A", "B", "C", "D", "E"}

// Dataset is the intermediate checkpoint written by a crawl and read by the loader
type Dataset struct {
	CompetitionID   string     `json:"competitionId"`
	CompetitionName string     `json:"competitionName"`
	RunID           string     `json:"runId,omitempty"`     // UUID of the crawl run that produced the file
	CrawledAt       *time.Time `json:"crawledAt,omitempty"` // When the crawl finished
	Exams           []Exam     `json:"exams"`
}

// Exam groups the problems of one competition year
type Exam struct {
	Year          int       `json:"year"`
	TotalProblems int       `json:"totalProblems,omitempty"`
	SourceURL     string    `json:"sourceUrl,omitempty"`
	AnswerKeyURL  string    `json:"answerKeyUrl,omitempty"`
	Problems      []Problem `json:"problems"`
}

// Problem is the canonical record for one problem of one exam.
// ProblemNumber is the addressing key inside the exam.
type Problem struct {
	ProblemNumber   int               `json:"problemNumber"`
	ProblemText     string            `json:"problemText"`
	ProblemHTML     string            `json:"problemHtml"`
	ProblemMarkdown string            `json:"problemMarkdown,omitempty"`
	CorrectAnswer   string            `json:"correctAnswer"`
	AnswerSource    string            `json:"answerSource,omitempty"` // answer_key, boxed, statement, conclusion
	SolutionText    string            `json:"solutionText"`           // First solution, kept for older consumers
	SolutionHTML    string            `json:"solutionHtml"`           // First solution, kept for older consumers
	Solutions       []Solution        `json:"solutions"`
	VideoSolutions  []VideoSolution   `json:"videoSolutions"`
	Choices         map[string]string `json:"choices,omitempty"`
	Topic           string            `json:"topic,omitempty"`
	SourceURL       string            `json:"sourceUrl,omitempty"`
	Warnings        []string          `json:"warnings,omitempty"` // Non-fatal extraction issues
}

// Solution is one titled solution block
type Solution struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	HTML  string `json:"html"`
}

// VideoSolution points to an external video walkthrough
type VideoSolution struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// AnswerKey maps problem number to answer letter. It is scraped once per exam
// and consumed by the answer resolver; it is never stored on its own.
type AnswerKey map[int]string

// HasCompleteChoices reports whether every choice letter has text
func (p Problem) HasCompleteChoices() bool {
	if len(p.Choices) < len(ChoiceLetters) {
		return false
	}
	for _, letter := range ChoiceLetters {
		if p.Choices[letter] == "" {
			return false
		}
	}
	return true
}

// ProjectLegacy copies the first solution into the singular solution fields.
// Consumers written before multi-solution support only read those fields.
func ProjectLegacy(p Problem) Problem {
	p.SolutionText = ""
	p.SolutionHTML = ""
	if len(p.Solutions) > 0 {
		p.SolutionText = p.Solutions[0].Text
		p.SolutionHTML = p.Solutions[0].HTML
	}
	if p.Solutions == nil {
		p.Solutions = []Solution{}
	}
	if p.VideoSolutions == nil {
		p.VideoSolutions = []VideoSolution{}
	}
	return p
}

// Label identifies a problem in logs and audits, e.g. "2024 #7"
func Label(year, number int) string {
	return fmt.Sprintf("%d #%d", year, number)
}

// ToFields converts a record into the field map used for merge writes.
// Optional fields left empty are omitted, so a merge never clears them.
func ToFields(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record fields: %w", err)
	}
	return fields, nil
}

// FromFields decodes a field map read from the store into v
func FromFields(fields map[string]any, v any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal record fields: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}
