// Package store persists competition, exam and problem records into a
// hierarchical, path-addressed document store.
//
// Paths follow competitions/{competitionId}/exams/{year}/problems/{problemNumber}.
// Every write is a merge: top-level fields present in the write replace the
// stored ones, fields absent from the write are kept.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrNotFound is returned by Get when no document exists at a path
var ErrNotFound = errors.New("document not found")

// Store is a document store handle. A handle serves one sequential writer;
// concurrent loads use separate handles.
type Store interface {
	// NewBatch starts a group of writes committed atomically
	NewBatch(ctx context.Context) (Batch, error)
	// Get returns the fields of the document at path or ErrNotFound
	Get(ctx context.Context, path string) (map[string]any, error)
	// List returns the direct children of a collection path, ordered by id
	List(ctx context.Context, collection string) ([]Document, error)
	Close() error
}

// Batch collects merge writes until Commit or Rollback
type Batch interface {
	// Set queues a merge upsert of fields at path
	Set(path string, fields map[string]any) error
	// Len is the number of queued writes
	Len() int
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Document is a path and its fields
type Document struct {
	Path   string
	Fields map[string]any
}

// CompetitionPath returns the document path of a competition
func CompetitionPath(competitionID string) string {
	return "competitions/" + competitionID
}

// ExamsCollection returns the collection path holding a competition's exams
func ExamsCollection(competitionID string) string {
	return CompetitionPath(competitionID) + "/exams"
}

// ExamPath returns the document path of one exam year
func ExamPath(competitionID string, year int) string {
	return ExamsCollection(competitionID) + "/" + strconv.Itoa(year)
}

// ProblemsCollection returns the collection path holding an exam's problems
func ProblemsCollection(competitionID string, year int) string {
	return ExamPath(competitionID, year) + "/problems"
}

// ProblemPath returns the document path of one problem
func ProblemPath(competitionID string, year, number int) string {
	return ProblemsCollection(competitionID, year) + "/" + strconv.Itoa(number)
}

// Parent returns the collection path containing a document path
func Parent(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// ID returns the last segment of a path
func ID(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}

// ValidatePath rejects empty paths and empty segments
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("invalid path: empty")
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			return fmt.Errorf("invalid path %q: empty segment", path)
		}
	}
	return nil
}

// SortDocuments orders documents by id, numerically when both ids are numbers
func SortDocuments(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := ID(docs[i].Path), ID(docs[j].Path)
		na, errA := strconv.Atoi(a)
		nb, errB := strconv.Atoi(b)
		if errA == nil && errB == nil {
			return na < nb
		}
		return a < b
	})
}
