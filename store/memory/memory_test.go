package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/docutag/mathwiki/store"
)

func TestBatchMergeAndGet(t *testing.T) {
	s := New(Config{})
	ctx := context.Background()
	path := store.ProblemPath("amc8", 2024, 1)

	b, _ := s.NewBatch(ctx)
	b.Set(path, map[string]any{"problemText": "old", "topic": "Geometry"})
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	b, _ = s.NewBatch(ctx)
	b.Set(path, map[string]any{"problemText": "new"})
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	doc, err := s.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["problemText"] != "new" || doc["topic"] != "Geometry" {
		t.Errorf("Expected field-wise merge, got %v", doc)
	}

	// Returned maps are copies
	doc["problemText"] = "mutated"
	again, _ := s.Get(ctx, path)
	if again["problemText"] != "new" {
		t.Error("Get returned a shared map")
	}
}

func TestGetNotFound(t *testing.T) {
	_, err := New(Config{}).Get(context.Background(), "competitions/none")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListOrdersNumerically(t *testing.T) {
	s := New(Config{})
	ctx := context.Background()

	b, _ := s.NewBatch(ctx)
	for _, n := range []int{10, 2, 1} {
		b.Set(store.ProblemPath("amc8", 2024, n), map[string]any{"problemNumber": n})
	}
	b.Set(store.ExamPath("amc8", 2024), map[string]any{"year": 2024})
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	docs, err := s.List(ctx, store.ProblemsCollection("amc8", 2024))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var ids []string
	for _, d := range docs {
		ids = append(ids, store.ID(d.Path))
	}
	if len(ids) != 3 || ids[0] != "1" || ids[1] != "2" || ids[2] != "10" {
		t.Errorf("Expected [1 2 10], got %v", ids)
	}

	exams, _ := s.List(ctx, store.ExamsCollection("amc8"))
	if len(exams) != 1 {
		t.Errorf("Expected only direct children, got %d documents", len(exams))
	}
}

func TestCeiling(t *testing.T) {
	s := New(Config{Ceiling: 2})
	b, _ := s.NewBatch(context.Background())
	b.Set("a/1", map[string]any{})
	b.Set("a/2", map[string]any{})
	if err := b.Set("a/3", map[string]any{}); err == nil {
		t.Error("Expected error beyond the ceiling")
	}
}

func TestRollbackDiscards(t *testing.T) {
	s := New(Config{})
	ctx := context.Background()
	b, _ := s.NewBatch(ctx)
	b.Set("a/1", map[string]any{"x": 1})
	b.Rollback(ctx)

	if err := b.Commit(ctx); err == nil {
		t.Error("Expected commit after rollback to fail")
	}
	if s.Len() != 0 {
		t.Errorf("Expected empty store, got %d documents", s.Len())
	}
}
