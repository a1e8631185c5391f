// Package domain contains the interfaces, entities and option types of the
// seam orchestration layer.
//
// The layer sits between application code and a remote document store. The
// store itself is an external collaborator: this package pins down the
// driver contract ([Store], [StoreCollection], [StoreCursor]) that any
// backend must satisfy, plus the orchestration surface ([Collection]) the
// layer offers on top of it.
package domain

import (
	"context"

	"github.com/seamdb/seam/pkg/doc"
)

// Store is the process-scoped handle to a document store. Construction is
// explicit; building a collection handle before a store exists is a
// configuration error.
type Store interface {
	// Collection resolves the store-side collection object for the given
	// name.
	Collection(name string) (StoreCollection, error)
	// KeyFromString converts a textual identifier into the store's native
	// primary key representation.
	KeyFromString(s string) (any, error)
}

// StoreCollection is the driver contract required from the underlying store
// for one collection.
type StoreCollection interface {
	// Insert stores the documents, assigning store primary keys in place.
	// A breached uniqueness constraint surfaces as a store error.
	Insert(ctx context.Context, docs ...doc.M) error
	// Find returns a cursor over the documents matching the filter,
	// yielding only the projected fields if a projection is given.
	Find(filter, projection doc.M) StoreCursor
	// Remove deletes the documents matching the filter and reports how
	// many matched.
	Remove(ctx context.Context, filter doc.M) (int64, error)
	// Update applies an update document to the matching documents. The
	// report carries the matched count and, for upserts, the keys of the
	// created documents; the modified documents themselves are not
	// returned.
	Update(ctx context.Context, filter, update doc.M, flags UpdateFlags) (UpdateReport, error)
	// FindAndModify atomically updates (or upserts) a single document and
	// returns it, along with whether the document was created rather than
	// modified. A nil document means nothing matched and nothing was
	// created.
	FindAndModify(ctx context.Context, filter, update doc.M, flags ModifyFlags) (doc.M, bool, error)
	// EnsureUniqueIndex enforces a uniqueness constraint on the field.
	EnsureUniqueIndex(ctx context.Context, field string) error
}

// StoreCursor is a lazy, chainable specification of a filtered read.
type StoreCursor interface {
	// Sort orders the results.
	Sort(s Sort) StoreCursor
	// Skip drops the first n results.
	Skip(n int64) StoreCursor
	// Limit caps the number of results; zero means unbounded.
	Limit(n int64) StoreCursor
	// ToArray executes the read and returns the results.
	ToArray(ctx context.Context) (doc.List, error)
	// Size reports the number of documents the cursor would yield, with
	// skip and limit applied.
	Size(ctx context.Context) (int64, error)
	// Count reports the raw match cardinality, with skip and limit not
	// applied.
	Count(ctx context.Context) (int64, error)
}

// Collection is the orchestration surface for one logical collection:
// shorthand query normalization, lifecycle hooks around every write, and
// reconciliation of multi-document updates.
type Collection interface {
	// Name returns the collection name.
	Name() string
	// Insert runs before-insert hooks over the given documents (assigning
	// application identifiers where missing), bulk-inserts them, runs
	// after-insert hooks and returns the documents with both identifiers
	// populated. Accepts doc.M, map and struct values.
	Insert(ctx context.Context, docs ...any) (doc.List, error)
	// Find returns the documents matching the (normalized) query. No
	// hooks fire for reads.
	Find(ctx context.Context, query any, options ...FindOption) (doc.List, error)
	// FindOne returns the first matching document or [ErrNotFound].
	FindOne(ctx context.Context, query any, options ...FindOption) (doc.M, error)
	// Count reports the number of documents matching the query, ignoring
	// skip and limit.
	Count(ctx context.Context, query any) (int64, error)
	// Size reports the number of documents a Find with the same options
	// would yield, with skip and limit applied.
	Size(ctx context.Context, query any, options ...FindOption) (int64, error)
	// Remove snapshots the matching documents, runs before-remove hooks
	// over the snapshot, deletes exactly the documents that survived the
	// hooks, runs after-remove hooks and returns the deleted list.
	Remove(ctx context.Context, query any, options ...FindOption) (doc.List, error)
	// UpdateOne atomically updates (or upserts) a single document and
	// returns it after the applicable after-update or after-upsert hooks.
	UpdateOne(ctx context.Context, query, update any, options ...UpdateOption) (doc.M, error)
	// UpdateAll updates every document matched by a snapshot of the query
	// and returns the affected documents re-read from the store, after
	// the applicable after-update or after-upsert hooks.
	UpdateAll(ctx context.Context, query, update any, options ...UpdateOption) (doc.List, error)
}

// IDGenerator creates application identifiers for new documents.
type IDGenerator interface {
	// Generate returns a fresh identifier, unique per collection.
	Generate() (string, error)
}

// Decoder converts between data representations, such as a caller-supplied
// sort struct and the [Sort] type.
type Decoder interface {
	// Decode converts from one data format to another.
	Decode(src any, tgt any) error
}

// Hook is a lifecycle handler invoked before or after a CRUD action. The
// document is shared and may be mutated in place; a non-nil error aborts the
// remainder of the chain.
type Hook func(ctx context.Context, d doc.M) error

// Transformer resolves one shorthand query directive. It receives the
// directive value, the filter accumulated so far and the whole directive
// object, and returns a filter fragment to merge into the accumulator.
type Transformer func(value any, acc doc.M, directive doc.M) (doc.M, error)

// HookRegistry is the registration surface handed to collection setup
// strategies.
type HookRegistry interface {
	// Register appends a handler to the (phase, action) chain. The pair
	// must be in the supported set.
	Register(phase Phase, action Action, h Hook) error
}

// TransformerTable is the shorthand-directive registration surface handed to
// collection setup strategies.
type TransformerTable interface {
	// Register binds a directive key to a transformer.
	Register(key string, t Transformer) error
}

// SetupFunc customizes a collection handle during its lazy initialization,
// typically registering hooks and query transformers. Application-specific
// collection types plug in here instead of overriding orchestrator methods.
type SetupFunc func(hooks HookRegistry, transformers TransformerTable) error
