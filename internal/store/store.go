// Package store defines the document-store boundary used by the translation
// pipeline and the registry of configured databases.
package store

import (
	"context"
	"errors"
	"sort"

	"github.com/chatdb/chatdb/internal/document"
)

var ErrUnknownDatabase = errors.New("unknown database")

type SortKey struct {
	Field     string
	Direction int
}

type FindQuery struct {
	Filter     document.Value
	Projection document.Value
	Sort       []SortKey
	Limit      int64
	Skip       int64
}

type UpdateResult struct {
	Matched  int64
	Modified int64
}

// Database is one logical document database. All documents crossing this
// boundary are document.Values; identifiers stay native.
type Database interface {
	Name() string
	ListCollections(ctx context.Context) ([]string, error)
	// Sample returns up to limit documents in natural order.
	Sample(ctx context.Context, collection string, limit int64) ([]document.Value, error)
	IndexNames(ctx context.Context, collection string) ([]string, error)

	Find(ctx context.Context, collection string, query FindQuery) ([]document.Value, error)
	Aggregate(ctx context.Context, collection string, pipeline []document.Value) ([]document.Value, error)

	InsertOne(ctx context.Context, collection string, doc document.Value) (document.Value, error)
	InsertMany(ctx context.Context, collection string, docs []document.Value) ([]document.Value, error)
	UpdateOne(ctx context.Context, collection string, filter, update document.Value) (UpdateResult, error)
	UpdateMany(ctx context.Context, collection string, filter, update document.Value) (UpdateResult, error)
	DeleteOne(ctx context.Context, collection string, filter document.Value) (int64, error)
	DeleteMany(ctx context.Context, collection string, filter document.Value) (int64, error)
}

// Registry maps configured database names to handles. It is built once at
// startup and never mutated.
type Registry struct {
	databases map[string]Database
	names     []string
}

func NewRegistry(databases ...Database) *Registry {
	registry := &Registry{databases: make(map[string]Database, len(databases))}
	for _, db := range databases {
		if db == nil {
			continue
		}
		if _, exists := registry.databases[db.Name()]; exists {
			continue
		}
		registry.databases[db.Name()] = db
		registry.names = append(registry.names, db.Name())
	}
	sort.Strings(registry.names)
	return registry
}

func (r *Registry) Lookup(name string) (Database, bool) {
	if r == nil {
		return nil, false
	}
	db, ok := r.databases[name]
	return db, ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}
