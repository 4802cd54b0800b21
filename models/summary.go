package models

// Summary is the completeness audit printed after crawls and loads
type Summary struct {
	Exams           int      `json:"exams"`
	Problems        int      `json:"problems"`
	WithAnswers     int      `json:"withAnswers"`
	WithChoices     int      `json:"withChoices"`
	WithSolutions   int      `json:"withSolutions"`
	WithVideos      int      `json:"withVideos"`
	AnswerConflicts int      `json:"answerConflicts"`
	Incomplete      []string `json:"incomplete,omitempty"` // Problems without a resolved answer
}

// AnswerRate is the share of problems with a resolved answer, in percent
func (s Summary) AnswerRate() float64 {
	if s.Problems == 0 {
		return 0
	}
	return float64(s.WithAnswers) / float64(s.Problems) * 100
}

// ChoiceRate is the share of problems with all five choices, in percent
func (s Summary) ChoiceRate() float64 {
	if s.Problems == 0 {
		return 0
	}
	return float64(s.WithChoices) / float64(s.Problems) * 100
}

// Add counts one problem of the given exam year
func (s *Summary) Add(year int, p Problem) {
	s.Problems++
	if p.CorrectAnswer != "" {
		s.WithAnswers++
	} else {
		s.Incomplete = append(s.Incomplete, Label(year, p.ProblemNumber))
	}
	if p.HasCompleteChoices() {
		s.WithChoices++
	}
	if len(p.Solutions) > 0 {
		s.WithSolutions++
	}
	if len(p.VideoSolutions) > 0 {
		s.WithVideos++
	}
	for _, w := range p.Warnings {
		if w == WarningAnswerConflict {
			s.AnswerConflicts++
			break
		}
	}
}

// Summarize audits a whole dataset
func Summarize(ds *Dataset) Summary {
	var s Summary
	if ds == nil {
		return s
	}
	s.Exams = len(ds.Exams)
	for _, exam := range ds.Exams {
		for _, p := range exam.Problems {
			s.Add(exam.Year, p)
		}
	}
	return s
}

// Warning codes attached to problems
const (
	WarningAnswerUnresolved = "answer_unresolved"
	WarningAnswerConflict   = "answer_conflict"
	WarningNoSolutions      = "no_solutions"
	WarningPageNotReady     = "page_not_ready"
)
