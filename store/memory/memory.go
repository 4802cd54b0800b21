// Package memory is a process-local document store. It keeps a log of every
// commit, which load audits and tests read back.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/docutag/mathwiki/store"
)

// Config contains memory store configuration
type Config struct {
	Ceiling int // Hard maximum of writes per batch; zero means unlimited
}

// Store is an in-memory store.Store
type Store struct {
	mu      sync.RWMutex
	config  Config
	docs    map[string]map[string]any
	commits []int
	failOn  map[int]error
	closed  bool
}

var _ store.Store = (*Store)(nil)

// New creates an empty store
func New(config Config) *Store {
	return &Store{
		config: config,
		docs:   make(map[string]map[string]any),
		failOn: make(map[int]error),
	}
}

// FailCommit makes the n-th commit (1-based) fail with err
func (s *Store) FailCommit(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[n] = err
}

// Commits returns the number of writes in each successful commit
func (s *Store) Commits() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, len(s.commits))
	copy(out, s.commits)
	return out
}

// Len returns the number of stored documents
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// NewBatch implements store.Store
func (s *Store) NewBatch(ctx context.Context) (store.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	return &batch{store: s}, nil
}

// Get implements store.Store
func (s *Store) Get(ctx context.Context, path string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[path]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneFields(doc), nil
}

// List implements store.Store
func (s *Store) List(ctx context.Context, collection string) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := collection + "/"
	var docs []store.Document
	for path, fields := range s.docs {
		if !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}
		docs = append(docs, store.Document{Path: path, Fields: cloneFields(fields)})
	}
	store.SortDocuments(docs)
	return docs, nil
}

// Close implements store.Store
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type batch struct {
	store *Store
	ops   []store.Document
	done  bool
}

func (b *batch) Set(path string, fields map[string]any) error {
	if b.done {
		return fmt.Errorf("batch already finished")
	}
	if err := store.ValidatePath(path); err != nil {
		return err
	}
	if ceiling := b.store.config.Ceiling; ceiling > 0 && len(b.ops) >= ceiling {
		return fmt.Errorf("batch exceeds %d writes", ceiling)
	}
	b.ops = append(b.ops, store.Document{Path: path, Fields: cloneFields(fields)})
	return nil
}

func (b *batch) Len() int {
	return len(b.ops)
}

func (b *batch) Commit(ctx context.Context) error {
	if b.done {
		return fmt.Errorf("batch already finished")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failOn[len(s.commits)+1]; ok {
		delete(s.failOn, len(s.commits)+1)
		return err
	}

	for _, op := range b.ops {
		existing, ok := s.docs[op.Path]
		if !ok {
			existing = make(map[string]any, len(op.Fields))
			s.docs[op.Path] = existing
		}
		for k, v := range op.Fields {
			existing[k] = v
		}
	}
	s.commits = append(s.commits, len(b.ops))
	b.done = true
	return nil
}

func (b *batch) Rollback(ctx context.Context) error {
	b.ops = nil
	b.done = true
	return nil
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneFields(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
