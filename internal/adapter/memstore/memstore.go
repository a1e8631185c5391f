// Package memstore provides an in-process document store implementing
// [domain.Store]. It backs tests and single-process deployments with the
// same driver contract a remote store satisfies: filters, update operators,
// cursors and unique indexes.
package memstore

import (
	"sync"

	"github.com/seamdb/seam/domain"
	"github.com/seamdb/seam/pkg/doc"
)

// Store implements domain.Store.
type Store struct {
	mu          sync.Mutex
	collections map[string]*Collection
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{collections: make(map[string]*Collection)}
}

// Collection implements domain.Store. Handles are memoized per name.
func (s *Store) Collection(name string) (domain.StoreCollection, error) {
	if name == "" {
		return nil, domain.NewErrConfiguration("collection name cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[name]
	if !ok {
		col = newCollection(name)
		s.collections[name] = col
	}
	return col, nil
}

// KeyFromString implements domain.Store. Primary keys are plain strings
// here, so the conversion only rejects the empty identifier.
func (s *Store) KeyFromString(v string) (any, error) {
	if v == "" {
		return nil, domain.NewErrConfiguration("empty store key")
	}
	return v, nil
}

// insertRaw places a document into a named collection without touching its
// primary key. Restore uses it to rebuild state from a snapshot.
func (s *Store) insertRaw(name string, d doc.M) error {
	col, err := s.Collection(name)
	if err != nil {
		return err
	}
	mc := col.(*Collection)
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if err := mc.indexDoc(d); err != nil {
		return err
	}
	mc.docs = append(mc.docs, d)
	return nil
}
