package mathwiki

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/docutag/mathwiki/models"
	"github.com/docutag/mathwiki/store"
)

// Load writes a crawled dataset through the batched writer. Every write is a
// merge, so loading the same checkpoint again changes nothing and fields set
// out of band survive.
func Load(ctx context.Context, w *store.Writer, ds *models.Dataset, logger *zap.Logger) (store.WriteReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ds == nil {
		return store.WriteReport{}, errors.New("no dataset to load")
	}

	summary := models.Summarize(ds)
	logger.Info("loading dataset",
		zap.String("competition", ds.CompetitionID),
		zap.String("run_id", ds.RunID),
		zap.Int("exams", summary.Exams),
		zap.Int("problems", summary.Problems),
	)

	report, err := w.Write(ctx, ds)
	if err != nil {
		return report, fmt.Errorf("failed to load %s: %w", ds.CompetitionID, err)
	}
	return report, nil
}

// Verify reads back one problem record
func Verify(ctx context.Context, s store.Store, competitionID string, year, number int) (*models.Problem, error) {
	path := store.ProblemPath(competitionID, year, number)
	fields, err := s.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var p models.Problem
	if err := models.FromFields(fields, &p); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &p, nil
}

// CompetitionInfo is a stored competition with its exam count
type CompetitionInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TotalExams int    `json:"totalExams"`
}

// Competitions lists the stored competitions. Exam counts come from the exam
// documents, which outlive any single load.
func Competitions(ctx context.Context, s store.Store) ([]CompetitionInfo, error) {
	docs, err := s.List(ctx, "competitions")
	if err != nil {
		return nil, fmt.Errorf("failed to list competitions: %w", err)
	}

	out := make([]CompetitionInfo, 0, len(docs))
	for _, doc := range docs {
		id := store.ID(doc.Path)
		exams, err := s.List(ctx, store.ExamsCollection(id))
		if err != nil {
			return nil, fmt.Errorf("failed to list exams of %s: %w", id, err)
		}
		name, _ := doc.Fields["name"].(string)
		out = append(out, CompetitionInfo{ID: id, Name: name, TotalExams: len(exams)})
	}
	return out, nil
}

// Completion audits what the store holds for a competition
func Completion(ctx context.Context, s store.Store, competitionID string) (models.Summary, error) {
	var summary models.Summary

	exams, err := s.List(ctx, store.ExamsCollection(competitionID))
	if err != nil {
		return summary, fmt.Errorf("failed to list exams: %w", err)
	}

	for _, exam := range exams {
		year, err := strconv.Atoi(store.ID(exam.Path))
		if err != nil {
			continue
		}
		summary.Exams++

		problems, err := s.List(ctx, store.ProblemsCollection(competitionID, year))
		if err != nil {
			return summary, fmt.Errorf("failed to list problems of %d: %w", year, err)
		}
		for _, doc := range problems {
			var p models.Problem
			if err := models.FromFields(doc.Fields, &p); err != nil {
				return summary, fmt.Errorf("failed to decode %s: %w", doc.Path, err)
			}
			summary.Add(year, p)
		}
	}

	return summary, nil
}
