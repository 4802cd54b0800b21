// Package postgres stores documents in a PostgreSQL table with one JSONB
// column per document. Merges use the JSONB concatenation operator, which
// replaces top-level keys and keeps the rest.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/docutag/mathwiki/store"
)

// Config contains database configuration
type Config struct {
	DSN string // PostgreSQL connection string
}

// Store is a PostgreSQL store.Store
type Store struct {
	conn *sql.DB
}

var _ store.Store = (*Store)(nil)

const upsertQuery = `
	INSERT INTO documents (path, parent, data)
	VALUES ($1, $2, $3::jsonb)
	ON CONFLICT (path) DO UPDATE SET
		data = documents.data || EXCLUDED.data,
		updated_at = NOW()
`

// New opens the database and runs pending migrations
func New(ctx context.Context, config Config) (*Store, error) {
	conn, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{conn: conn}, nil
}

// DB returns the underlying connection
func (s *Store) DB() *sql.DB {
	return s.conn
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// NewBatch implements store.Store. Writes are buffered and sent in one
// transaction on Commit.
func (s *Store) NewBatch(ctx context.Context) (store.Batch, error) {
	return &batch{conn: s.conn}, nil
}

// Get implements store.Store
func (s *Store) Get(ctx context.Context, path string) (map[string]any, error) {
	var raw []byte
	err := s.conn.QueryRowContext(ctx, "SELECT data FROM documents WHERE path = $1", path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}

	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return fields, nil
}

// List implements store.Store
func (s *Store) List(ctx context.Context, collection string) ([]store.Document, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT path, data FROM documents WHERE parent = $1", collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		fields := map[string]any{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		docs = append(docs, store.Document{Path: path, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	// Ids are text; order them numerically where they are numbers
	store.SortDocuments(docs)
	return docs, nil
}

type op struct {
	path string
	data []byte
}

type batch struct {
	conn *sql.DB
	ops  []op
	done bool
}

func (b *batch) Set(path string, fields map[string]any) error {
	if b.done {
		return errors.New("batch already finished")
	}
	if err := store.ValidatePath(path); err != nil {
		return err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	b.ops = append(b.ops, op{path: path, data: data})
	return nil
}

func (b *batch) Len() int {
	return len(b.ops)
}

func (b *batch) Commit(ctx context.Context) error {
	if b.done {
		return errors.New("batch already finished")
	}

	tx, err := b.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, o := range b.ops {
		if _, err := stmt.ExecContext(ctx, o.path, store.Parent(o.path), string(o.data)); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", o.path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	b.done = true
	return nil
}

func (b *batch) Rollback(ctx context.Context) error {
	b.ops = nil
	b.done = true
	return nil
}
