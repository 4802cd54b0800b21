package mongo

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/docutag/mathwiki/store"
)

func TestBatchBuildsFieldWiseUpserts(t *testing.T) {
	b := &batch{store: &Store{}}
	path := store.ProblemPath("amc8", 2024, 3)
	if err := b.Set(path, map[string]any{"problemText": "x", "correctAnswer": "B"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if b.Len() != 1 {
		t.Fatalf("Expected 1 write model, got %d", b.Len())
	}

	model, ok := b.models[0].(*mongo.UpdateOneModel)
	if !ok {
		t.Fatalf("Expected *mongo.UpdateOneModel, got %T", b.models[0])
	}
	if model.Upsert == nil || !*model.Upsert {
		t.Error("Expected upsert")
	}
	if !reflect.DeepEqual(model.Filter, bson.M{"_id": path}) {
		t.Errorf("Unexpected filter %v", model.Filter)
	}

	want := bson.M{"$set": bson.M{
		"parent":             store.ProblemsCollection("amc8", 2024),
		"data.problemText":   "x",
		"data.correctAnswer": "B",
	}}
	if !reflect.DeepEqual(model.Update, want) {
		t.Errorf("Expected update %v, got %v", want, model.Update)
	}
}

func TestNormalizeValue(t *testing.T) {
	in := bson.M{
		"solutions": primitive.A{primitive.D{{Key: "title", Value: "Solution"}}},
		"choices":   primitive.M{"A": "1"},
		"number":    int32(4),
	}
	got := normalizeMap(in)

	want := map[string]any{
		"solutions": []any{map[string]any{"title": "Solution"}},
		"choices":   map[string]any{"A": "1"},
		"number":    int32(4),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestStoreIntegration(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := New(ctx, Config{URI: uri, Database: "mathwiki_test", Collection: "documents", Transactions: false})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer s.Close()
	s.col.Drop(ctx)

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

	if _, err := s.Get(ctx, store.ProblemPath("amc8", 1999, 1)); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
