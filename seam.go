// Package seam is a data-access orchestration layer for document stores. It
// wraps a store driver with shorthand query normalization, lifecycle hooks
// around every write and reconciliation of multi-document updates.
//
// A [DB] is obtained from a [domain.Store] with [Connect]; collection handles
// come from [DB.Collection] and initialize themselves lazily on first use.
package seam

import (
	"context"
	"io"
	"sync"

	"github.com/seamdb/seam/domain"
	"github.com/seamdb/seam/internal/adapter/collection"
	"github.com/seamdb/seam/internal/adapter/memstore"
	"github.com/seamdb/seam/pkg/doc"
)

// M is an open document mapping.
type M = doc.M

// List is an ordered sequence of documents.
type List = doc.List

// Sort is an ordered list of sort criteria.
type Sort = domain.Sort

// SortName is a single sort criterion.
type SortName = domain.SortName

// Hook is a lifecycle handler invoked before or after a CRUD action.
type Hook = domain.Hook

// Transformer resolves one shorthand query directive.
type Transformer = domain.Transformer

// SetupFunc customizes a collection handle during initialization.
type SetupFunc = domain.SetupFunc

// Hook phases and actions, re-exported for setup strategies.
const (
	Before = domain.Before
	After  = domain.After

	ActionInsert = domain.ActionInsert
	ActionUpdate = domain.ActionUpdate
	ActionUpsert = domain.ActionUpsert
	ActionRemove = domain.ActionRemove
)

// Errors returned by collection operations.
var (
	ErrNotFound           = domain.ErrNotFound
	ErrUpsertFailed       = domain.ErrUpsertFailed
	ErrNoDocuments        = domain.ErrNoDocuments
	ErrConstraintViolated = domain.ErrConstraintViolated
)

// Find options.
var (
	WithProjection = domain.WithProjection
	WithSort       = domain.WithSort
	WithSkip       = domain.WithSkip
	WithLimit      = domain.WithLimit
)

// Update options.
var (
	WithUpsert           = domain.WithUpsert
	WithUpdateProjection = domain.WithUpdateProjection
	WithUpdateSort       = domain.WithUpdateSort
)

// Collection options.
var (
	WithIDGenerator = domain.WithIDGenerator
	WithDecoder     = domain.WithDecoder
	WithSetup       = domain.WithSetup
)

// DB is the entry point of the layer: a handle over one store from which
// collection handles are built.
type DB struct {
	store       domain.Store
	mu          sync.Mutex
	collections map[string]domain.Collection
}

// Connect binds the layer to a store. A nil store is a configuration error.
func Connect(store domain.Store) (*DB, error) {
	if store == nil {
		return nil, domain.NewErrConfiguration("cannot connect to a nil store")
	}
	return &DB{
		store:       store,
		collections: make(map[string]domain.Collection),
	}, nil
}

// Collection returns the handle for the named collection, memoized per name.
// Options only apply to the first call for a given name.
func (db *DB) Collection(name string, options ...domain.CollectionOption) (domain.Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if col, ok := db.collections[name]; ok {
		return col, nil
	}
	col, err := collection.NewCollection(db.store, name, options...)
	if err != nil {
		return nil, err
	}
	db.collections[name] = col
	return col, nil
}

// MemStore is the in-process store: a [domain.Store] whose whole contents
// can be streamed out and back in as newline-delimited JSON.
type MemStore interface {
	domain.Store
	Snapshot(ctx context.Context, w io.Writer) error
	Restore(ctx context.Context, r io.Reader) error
}

// NewMemStore returns an in-process store, handy for tests and
// single-process deployments.
func NewMemStore() MemStore {
	return memstore.New()
}
