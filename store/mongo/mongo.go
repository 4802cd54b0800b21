// Package mongo stores documents in a MongoDB collection keyed by path.
//
// Each record is {_id: path, parent: collection path, data: fields}. Merges
// $set individual data.<field> keys, so fields absent from a write are kept.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docutag/mathwiki/store"
)

// Config contains MongoDB configuration
type Config struct {
	URI          string
	Database     string
	Collection   string
	Transactions bool // Commit each batch in a session transaction; needs a replica set
}

// DefaultConfig returns default MongoDB configuration
func DefaultConfig() Config {
	return Config{
		URI:          "mongodb://localhost:27017",
		Database:     "mathwiki",
		Collection:   "documents",
		Transactions: true,
	}
}

// Store is a MongoDB store.Store
type Store struct {
	client       *mongo.Client
	col          *mongo.Collection
	transactions bool
}

var _ store.Store = (*Store)(nil)

type record struct {
	ID     string `bson:"_id"`
	Parent string `bson:"parent"`
	Data   bson.M `bson:"data"`
}

// New connects to MongoDB and ensures the parent index
func New(ctx context.Context, config Config) (*Store, error) {
	if config.URI == "" {
		return nil, errors.New("mongo URI is empty")
	}
	defaults := DefaultConfig()
	if config.Database == "" {
		config.Database = defaults.Database
	}
	if config.Collection == "" {
		config.Collection = defaults.Collection
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	col := client.Database(config.Database).Collection(config.Collection)
	if _, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parent", Value: 1}},
	}); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create parent index: %w", err)
	}

	return &Store{client: client, col: col, transactions: config.Transactions}, nil
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// NewBatch implements store.Store
func (s *Store) NewBatch(ctx context.Context) (store.Batch, error) {
	return &batch{store: s}, nil
}

// Get implements store.Store
func (s *Store) Get(ctx context.Context, path string) (map[string]any, error) {
	var rec record
	err := s.col.FindOne(ctx, bson.M{"_id": path}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}
	return normalizeMap(rec.Data), nil
}

// List implements store.Store
func (s *Store) List(ctx context.Context, collection string) ([]store.Document, error) {
	cur, err := s.col.Find(ctx, bson.M{"parent": collection})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var recs []record
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", collection, err)
	}

	docs := make([]store.Document, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, store.Document{Path: rec.ID, Fields: normalizeMap(rec.Data)})
	}
	store.SortDocuments(docs)
	return docs, nil
}

type batch struct {
	store  *Store
	models []mongo.WriteModel
	done   bool
}

func (b *batch) Set(path string, fields map[string]any) error {
	if b.done {
		return errors.New("batch already finished")
	}
	if err := store.ValidatePath(path); err != nil {
		return err
	}

	set := bson.M{"parent": store.Parent(path)}
	for k, v := range fields {
		set["data."+k] = v
	}
	b.models = append(b.models, mongo.NewUpdateOneModel().
		SetFilter(bson.M{"_id": path}).
		SetUpdate(bson.M{"$set": set}).
		SetUpsert(true))
	return nil
}

func (b *batch) Len() int {
	return len(b.models)
}

func (b *batch) Commit(ctx context.Context) error {
	if b.done {
		return errors.New("batch already finished")
	}
	if len(b.models) == 0 {
		b.done = true
		return nil
	}

	write := func(ctx context.Context) error {
		_, err := b.store.col.BulkWrite(ctx, b.models, options.BulkWrite().SetOrdered(true))
		return err
	}

	if !b.store.transactions {
		if err := write(ctx); err != nil {
			return fmt.Errorf("bulk write failed: %w", err)
		}
		b.done = true
		return nil
	}

	sess, err := b.store.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	if _, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, write(sc)
	}); err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	b.done = true
	return nil
}

func (b *batch) Rollback(ctx context.Context) error {
	b.models = nil
	b.done = true
	return nil
}

// normalizeMap converts decoded BSON containers into plain maps and slices
func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case primitive.M:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
