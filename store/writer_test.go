package store_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/docutag/mathwiki/models"
	"github.com/docutag/mathwiki/store"
	"github.com/docutag/mathwiki/store/memory"
)

func TestPaths(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{store.CompetitionPath("amc8"), "competitions/amc8"},
		{store.ExamsCollection("amc8"), "competitions/amc8/exams"},
		{store.ExamPath("amc8", 2024), "competitions/amc8/exams/2024"},
		{store.ProblemsCollection("amc8", 2024), "competitions/amc8/exams/2024/problems"},
		{store.ProblemPath("amc8", 2024, 7), "competitions/amc8/exams/2024/problems/7"},
		{store.Parent("competitions/amc8/exams/2024"), "competitions/amc8/exams"},
		{store.ID("competitions/amc8/exams/2024/problems/7"), "7"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, tt.got)
		}
	}
}

func problemDocs(n int) []store.Document {
	docs := make([]store.Document, n)
	for i := range docs {
		docs[i] = store.Document{
			Path:   fmt.Sprintf("competitions/amc8/exams/%d/problems/%d", 2000+i/25, i%25+1),
			Fields: map[string]any{"problemNumber": i%25 + 1},
		}
	}
	return docs
}

// TestWriteDocsBatching loads 1200 records with a limit of 400 writes per batch
func TestWriteDocsBatching(t *testing.T) {
	mem := memory.New(memory.Config{Ceiling: 500})
	w := store.NewWriter(mem, store.WriterConfig{Ceiling: 500, SafetyMargin: 100}, nil, nil)

	report, err := w.WriteDocs(context.Background(), problemDocs(1200))
	if err != nil {
		t.Fatalf("WriteDocs failed: %v", err)
	}

	commits := mem.Commits()
	if len(commits) != 3 {
		t.Fatalf("Expected 3 commits, got %d: %v", len(commits), commits)
	}
	for i, ops := range commits {
		if ops > 400 {
			t.Errorf("Commit %d has %d writes, expected at most 400", i+1, ops)
		}
	}
	if mem.Len() != 1200 {
		t.Errorf("Expected 1200 documents, got %d", mem.Len())
	}
	if report.Docs != 1200 || report.Batches != 3 {
		t.Errorf("Unexpected report %+v", report)
	}
}

func TestWriteDocsFlushesPartialBatch(t *testing.T) {
	mem := memory.New(memory.Config{})
	w := store.NewWriter(mem, store.DefaultWriterConfig(), nil, nil)

	if _, err := w.WriteDocs(context.Background(), problemDocs(401)); err != nil {
		t.Fatalf("WriteDocs failed: %v", err)
	}
	if got := mem.Commits(); !reflect.DeepEqual(got, []int{400, 1}) {
		t.Errorf("Expected commits [400 1], got %v", got)
	}
}

func TestWriteDocsCommitFailure(t *testing.T) {
	mem := memory.New(memory.Config{})
	mem.FailCommit(2, errors.New("deadline exceeded"))
	w := store.NewWriter(mem, store.DefaultWriterConfig(), nil, nil)

	report, err := w.WriteDocs(context.Background(), problemDocs(1000))

	var writeErr *store.WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("Expected *store.WriteError, got %v", err)
	}
	if writeErr.Batch != 2 || writeErr.Ops != 400 {
		t.Errorf("Expected batch 2 with 400 writes, got batch %d with %d", writeErr.Batch, writeErr.Ops)
	}
	if report.Batches != 1 {
		t.Errorf("Expected 1 committed batch in report, got %d", report.Batches)
	}
	// The first batch stays
	if mem.Len() != 400 {
		t.Errorf("Expected 400 documents from the first batch, got %d", mem.Len())
	}
}

func TestWriteDocsCancelled(t *testing.T) {
	mem := memory.New(memory.Config{})
	w := store.NewWriter(mem, store.DefaultWriterConfig(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := w.WriteDocs(ctx, problemDocs(10)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if mem.Len() != 0 {
		t.Errorf("Expected no documents after cancellation, got %d", mem.Len())
	}
}

func TestWriteDocsInvalidPath(t *testing.T) {
	mem := memory.New(memory.Config{})
	w := store.NewWriter(mem, store.DefaultWriterConfig(), nil, nil)

	_, err := w.WriteDocs(context.Background(), []store.Document{{Path: "competitions//exams"}})
	if err == nil {
		t.Error("Expected error for empty path segment")
	}
}

func sampleDataset() *models.Dataset {
	return &models.Dataset{
		CompetitionID:   "amc8",
		CompetitionName: "AMC 8",
		Exams: []models.Exam{{
			Year: 2024,
			Problems: []models.Problem{
				{
					ProblemNumber: 1,
					ProblemText:   "What is $1+1$?",
					CorrectAnswer: "B",
					Solutions:     []models.Solution{{Title: "Solution", Text: "2", HTML: "<p>2</p>"}},
				},
				{ProblemNumber: 2, ProblemText: "What is $2+2$?", CorrectAnswer: "D"},
			},
		}},
	}
}

func TestWriteDataset(t *testing.T) {
	mem := memory.New(memory.Config{})
	w := store.NewWriter(mem, store.DefaultWriterConfig(), nil, nil)
	ctx := context.Background()

	report, err := w.Write(ctx, sampleDataset())
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if report.Docs != 4 {
		t.Errorf("Expected 4 documents (competition, exam, 2 problems), got %d", report.Docs)
	}

	comp, err := mem.Get(ctx, "competitions/amc8")
	if err != nil {
		t.Fatalf("Get competition failed: %v", err)
	}
	if comp["name"] != "AMC 8" {
		t.Errorf("Unexpected competition document %v", comp)
	}
	// A partial load must not be able to shrink it, so it is counted on read
	if _, ok := comp["totalExams"]; ok {
		t.Errorf("Expected no stored exam count, got %v", comp["totalExams"])
	}

	exam, err := mem.Get(ctx, "competitions/amc8/exams/2024")
	if err != nil {
		t.Fatalf("Get exam failed: %v", err)
	}
	if exam["competitionId"] != "amc8" || exam["totalProblems"] != 2 || exam["year"] != 2024 {
		t.Errorf("Unexpected exam document %v", exam)
	}

	problem, err := mem.Get(ctx, "competitions/amc8/exams/2024/problems/1")
	if err != nil {
		t.Fatalf("Get problem failed: %v", err)
	}
	if problem["solutionText"] != "2" || problem["correctAnswer"] != "B" {
		t.Errorf("Expected legacy projection and answer, got %v", problem)
	}

	problems, err := mem.List(ctx, store.ProblemsCollection("amc8", 2024))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(problems) != 2 || store.ID(problems[0].Path) != "1" {
		t.Errorf("Expected problems 1 and 2 in order, got %v", problems)
	}
}

// TestWriteIsIdempotent loads the same dataset twice
func TestWriteIsIdempotent(t *testing.T) {
	mem := memory.New(memory.Config{})
	w := store.NewWriter(mem, store.DefaultWriterConfig(), nil, nil)
	ctx := context.Background()

	if _, err := w.Write(ctx, sampleDataset()); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	first := snapshot(t, mem)

	if _, err := w.Write(ctx, sampleDataset()); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}
	second := snapshot(t, mem)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Store changed after reloading the same dataset:\nfirst  %v\nsecond %v", first, second)
	}
}

// TestWriteKeepsStoreOnlyFields verifies a reload does not clear fields the
// dataset does not carry, such as topics assigned later
func TestWriteKeepsStoreOnlyFields(t *testing.T) {
	mem := memory.New(memory.Config{})
	w := store.NewWriter(mem, store.DefaultWriterConfig(), nil, nil)
	ctx := context.Background()

	if _, err := w.Write(ctx, sampleDataset()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	path := store.ProblemPath("amc8", 2024, 1)
	if _, err := w.WriteDocs(ctx, []store.Document{{Path: path, Fields: map[string]any{"topic": "Arithmetic"}}}); err != nil {
		t.Fatalf("Topic write failed: %v", err)
	}

	ds := sampleDataset()
	ds.Exams[0].Problems[0].ProblemText = "What is $1+1$ exactly?"
	if _, err := w.Write(ctx, ds); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	doc, err := mem.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["topic"] != "Arithmetic" {
		t.Errorf("Expected topic to survive reload, got %v", doc["topic"])
	}
	if doc["problemText"] != "What is $1+1$ exactly?" {
		t.Errorf("Expected updated problem text, got %v", doc["problemText"])
	}
}

func TestWriteRequiresCompetitionID(t *testing.T) {
	w := store.NewWriter(memory.New(memory.Config{}), store.DefaultWriterConfig(), nil, nil)
	if _, err := w.Write(context.Background(), &models.Dataset{}); err == nil {
		t.Error("Expected error for dataset without competition id")
	}
}

func snapshot(t *testing.T, s store.Store) map[string]map[string]any {
	t.Helper()
	ctx := context.Background()
	out := map[string]map[string]any{}

	paths := []string{store.CompetitionPath("amc8"), store.ExamPath("amc8", 2024)}
	problems, err := s.List(ctx, store.ProblemsCollection("amc8", 2024))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, p := range problems {
		paths = append(paths, p.Path)
	}
	for _, path := range paths {
		doc, err := s.Get(ctx, path)
		if err != nil {
			t.Fatalf("Get %s failed: %v", path, err)
		}
		out[path] = doc
	}
	return out
}
