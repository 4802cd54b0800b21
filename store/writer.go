package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/docutag/mathwiki/metrics"
	"github.com/docutag/mathwiki/models"
)

// WriterConfig bounds batch sizes. Batches are committed at Ceiling minus
// SafetyMargin writes so a backend limit is never reached.
type WriterConfig struct {
	Ceiling      int
	SafetyMargin int
}

// DefaultWriterConfig returns the default batch bounds
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Ceiling:      500,
		SafetyMargin: 100,
	}
}

// Limit is the number of writes per batch
func (c WriterConfig) Limit() int {
	if limit := c.Ceiling - c.SafetyMargin; limit > 0 {
		return limit
	}
	return 1
}

// WriteReport summarizes a load
type WriteReport struct {
	Docs    int   `json:"docs"`
	Batches int   `json:"batches"`
	Ops     []int `json:"ops"` // Writes per committed batch
}

// Writer loads records in ceiling-aware batches
type Writer struct {
	store   Store
	config  WriterConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewWriter creates a writer over s
func NewWriter(s Store, config WriterConfig, logger *zap.Logger, m *metrics.Metrics) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Ceiling <= 0 {
		config = DefaultWriterConfig()
	}
	return &Writer{store: s, config: config, logger: logger, metrics: m}
}

// WriteDocs merges docs into the store in order, committing whenever a batch
// reaches the limit and flushing the final partial batch. A failed commit
// returns a *WriteError; batches committed before it stay in place.
func (w *Writer) WriteDocs(ctx context.Context, docs []Document) (WriteReport, error) {
	var report WriteReport
	limit := w.config.Limit()

	var batch Batch
	for _, doc := range docs {
		if err := ValidatePath(doc.Path); err != nil {
			w.rollback(ctx, batch)
			return report, err
		}
		if err := ctx.Err(); err != nil {
			w.rollback(ctx, batch)
			return report, fmt.Errorf("load cancelled: %w", err)
		}

		if batch == nil {
			var err error
			batch, err = w.store.NewBatch(ctx)
			if err != nil {
				return report, fmt.Errorf("failed to start batch %d: %w", report.Batches+1, err)
			}
		}

		if err := batch.Set(doc.Path, doc.Fields); err != nil {
			w.rollback(ctx, batch)
			return report, &WriteError{Batch: report.Batches + 1, Ops: batch.Len(), Err: err}
		}

		if batch.Len() >= limit {
			if err := w.commit(ctx, batch, &report); err != nil {
				return report, err
			}
			batch = nil
		}
	}

	if batch != nil && batch.Len() > 0 {
		if err := w.commit(ctx, batch, &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (w *Writer) commit(ctx context.Context, batch Batch, report *WriteReport) error {
	number := report.Batches + 1
	ops := batch.Len()

	if err := batch.Commit(ctx); err != nil {
		w.rollback(ctx, batch)
		w.metrics.BatchFailed()
		w.logger.Error("batch commit failed",
			zap.Int("batch", number),
			zap.Int("ops", ops),
			zap.Error(err),
		)
		return &WriteError{Batch: number, Ops: ops, Err: err}
	}

	report.Batches++
	report.Docs += ops
	report.Ops = append(report.Ops, ops)
	w.metrics.BatchCommitted(ops)
	w.logger.Info("batch committed",
		zap.Int("batch", number),
		zap.Int("ops", ops),
		zap.Int("total", report.Docs),
	)
	return nil
}

func (w *Writer) rollback(ctx context.Context, batch Batch) {
	if batch == nil {
		return
	}
	if err := batch.Rollback(context.WithoutCancel(ctx)); err != nil {
		w.logger.Warn("batch rollback failed", zap.Error(err))
	}
}

// Write loads a dataset: the competition document, one document per exam and
// one per problem. Loading the same dataset twice leaves the store unchanged.
func (w *Writer) Write(ctx context.Context, ds *models.Dataset) (WriteReport, error) {
	docs, err := Documents(ds)
	if err != nil {
		return WriteReport{}, err
	}
	return w.WriteDocs(ctx, docs)
}

// Documents flattens a dataset into store documents, parents first
func Documents(ds *models.Dataset) ([]Document, error) {
	if ds == nil || ds.CompetitionID == "" {
		return nil, fmt.Errorf("dataset has no competition id")
	}

	name := ds.CompetitionName
	if name == "" {
		name = ds.CompetitionID
	}
	docs := []Document{{
		Path: CompetitionPath(ds.CompetitionID),
		Fields: map[string]any{
			"id":   ds.CompetitionID,
			"name": name,
		},
	}}

	for _, exam := range ds.Exams {
		total := exam.TotalProblems
		if total == 0 {
			total = len(exam.Problems)
		}
		examFields := map[string]any{
			"year":          exam.Year,
			"competitionId": ds.CompetitionID,
			"totalProblems": total,
		}
		if exam.SourceURL != "" {
			examFields["sourceUrl"] = exam.SourceURL
		}
		if exam.AnswerKeyURL != "" {
			examFields["answerKeyUrl"] = exam.AnswerKeyURL
		}
		docs = append(docs, Document{Path: ExamPath(ds.CompetitionID, exam.Year), Fields: examFields})

		for _, p := range exam.Problems {
			fields, err := models.ToFields(models.ProjectLegacy(p))
			if err != nil {
				return nil, fmt.Errorf("problem %s: %w", models.Label(exam.Year, p.ProblemNumber), err)
			}
			docs = append(docs, Document{
				Path:   ProblemPath(ds.CompetitionID, exam.Year, p.ProblemNumber),
				Fields: fields,
			})
		}
	}
	return docs, nil
}
