package models

import (
	"encoding/json"
	"testing"
)

// TestProblemJSONShape verifies the field names external consumers read
func TestProblemJSONShape(t *testing.T) {
	p := ProjectLegacy(Problem{
		ProblemNumber: 3,
		ProblemText:   "What is $1+1$?",
		ProblemHTML:   "<p>What is 1+1?</p>",
		CorrectAnswer: "B",
		Solutions: []Solution{
			{Title: "Solution 1", Text: "It is 2.", HTML: "<p>It is 2.</p>"},
		},
		VideoSolutions: []VideoSolution{{Title: "Video Solution", URL: "https://youtu.be/x"}},
		Choices:        map[string]string{"A": "1", "B": "2", "C": "3", "D": "4", "E": "5"},
	})

	jsonBytes, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Failed to marshal problem: %v", err)
	}

	var unmarshaled map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &unmarshaled); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	for _, key := range []string{
		"problemNumber", "problemText", "problemHtml", "correctAnswer",
		"solutionText", "solutionHtml", "solutions", "videoSolutions", "choices",
	} {
		if _, exists := unmarshaled[key]; !exists {
			t.Errorf("%s field is missing from JSON", key)
		}
	}

	// topic is optional and must be omitted when empty
	if _, exists := unmarshaled["topic"]; exists {
		t.Error("topic should be omitted when empty")
	}

	solutions := unmarshaled["solutions"].([]interface{})
	first := solutions[0].(map[string]interface{})
	for _, key := range []string{"title", "text", "html"} {
		if _, exists := first[key]; !exists {
			t.Errorf("solution field %s is missing from JSON", key)
		}
	}
}

func TestProjectLegacy(t *testing.T) {
	t.Run("first solution is projected", func(t *testing.T) {
		p := ProjectLegacy(Problem{
			Solutions: []Solution{
				{Title: "Solution 1", Text: "first", HTML: "<p>first</p>"},
				{Title: "Solution 2", Text: "second", HTML: "<p>second</p>"},
			},
		})
		if p.SolutionText != "first" || p.SolutionHTML != "<p>first</p>" {
			t.Errorf("Expected first solution in legacy fields, got %q / %q", p.SolutionText, p.SolutionHTML)
		}
		if len(p.Solutions) != 2 {
			t.Errorf("Expected solutions to be kept, got %d", len(p.Solutions))
		}
	})

	t.Run("no solutions clears legacy fields", func(t *testing.T) {
		p := ProjectLegacy(Problem{SolutionText: "stale", SolutionHTML: "stale"})
		if p.SolutionText != "" || p.SolutionHTML != "" {
			t.Errorf("Expected empty legacy fields, got %q / %q", p.SolutionText, p.SolutionHTML)
		}
		if p.Solutions == nil || p.VideoSolutions == nil {
			t.Error("Expected non-nil solution slices")
		}
	})
}

func TestToFieldsOmitsEmptyOptionalFields(t *testing.T) {
	fields, err := ToFields(Problem{ProblemNumber: 1, CorrectAnswer: ""})
	if err != nil {
		t.Fatalf("ToFields failed: %v", err)
	}

	for _, key := range []string{"topic", "choices", "warnings", "sourceUrl"} {
		if _, exists := fields[key]; exists {
			t.Errorf("Expected %s to be omitted", key)
		}
	}
	// correctAnswer is always written so a re-crawl can record an unresolved answer
	if _, exists := fields["correctAnswer"]; !exists {
		t.Error("Expected correctAnswer to be present")
	}
	if fields["problemNumber"] != float64(1) {
		t.Errorf("Expected problemNumber 1, got %v", fields["problemNumber"])
	}
}

func TestFromFieldsReadsStoredRecord(t *testing.T) {
	in := ProjectLegacy(Problem{
		ProblemNumber: 4,
		CorrectAnswer: "D",
		Solutions:     []Solution{{Title: "Solution 1", Text: "x"}},
	})
	fields, err := ToFields(in)
	if err != nil {
		t.Fatalf("ToFields failed: %v", err)
	}
	fields["topic"] = "Geometry" // set out of band

	var out Problem
	if err := FromFields(fields, &out); err != nil {
		t.Fatalf("FromFields failed: %v", err)
	}
	if out.ProblemNumber != 4 || out.CorrectAnswer != "D" || out.SolutionText != "x" || out.Topic != "Geometry" {
		t.Errorf("Unexpected record %+v", out)
	}
}

func TestSummarize(t *testing.T) {
	full := map[string]string{"A": "1", "B": "2", "C": "3", "D": "4", "E": "5"}
	ds := &Dataset{
		CompetitionID: "amc8",
		Exams: []Exam{
			{
				Year: 2024,
				Problems: []Problem{
					{ProblemNumber: 1, CorrectAnswer: "A", Choices: full, Solutions: []Solution{{Title: "Solution"}}},
					{ProblemNumber: 2, CorrectAnswer: "", Choices: map[string]string{"A": "1"}},
					{ProblemNumber: 3, CorrectAnswer: "C", Warnings: []string{WarningAnswerConflict},
						VideoSolutions: []VideoSolution{{URL: "https://youtu.be/x"}}},
				},
			},
			{Year: 2023, Problems: []Problem{{ProblemNumber: 1, CorrectAnswer: "E"}}},
		},
	}

	s := Summarize(ds)
	if s.Exams != 2 {
		t.Errorf("Expected 2 exams, got %d", s.Exams)
	}
	if s.Problems != 4 {
		t.Errorf("Expected 4 problems, got %d", s.Problems)
	}
	if s.WithAnswers != 3 {
		t.Errorf("Expected 3 answers, got %d", s.WithAnswers)
	}
	if s.WithChoices != 1 {
		t.Errorf("Expected 1 problem with complete choices, got %d", s.WithChoices)
	}
	if s.WithSolutions != 1 || s.WithVideos != 1 || s.AnswerConflicts != 1 {
		t.Errorf("Unexpected counts: %+v", s)
	}
	if len(s.Incomplete) != 1 || s.Incomplete[0] != "2024 #2" {
		t.Errorf("Expected [2024 #2] incomplete, got %v", s.Incomplete)
	}
	if s.AnswerRate() != 75 {
		t.Errorf("Expected 75%% answer rate, got %v", s.AnswerRate())
	}
}
