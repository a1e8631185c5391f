package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/seamdb/seam/domain"
	"github.com/seamdb/seam/pkg/doc"
)

// Collection implements domain.StoreCollection over in-process memory.
type Collection struct {
	name    string
	mu      sync.RWMutex
	docs    doc.List
	indexes map[string]*uniqueIndex
}

func newCollection(name string) *Collection {
	return &Collection{
		name:    name,
		indexes: make(map[string]*uniqueIndex),
	}
}

// Insert implements domain.StoreCollection. Documents are stored one by one
// in order; the first constraint violation stops the batch, leaving earlier
// documents inserted, the way a remote store's ordered bulk insert behaves.
func (c *Collection) Insert(ctx context.Context, docs ...doc.M) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range docs {
		if !d.Has(doc.KeyField) {
			d.Set(doc.KeyField, uuid.NewString())
		}
		if err := c.indexDoc(d); err != nil {
			return err
		}
		c.docs = append(c.docs, d)
	}
	return nil
}

// indexDoc registers a document with every index, undoing the registrations
// already made if one of them rejects it.
func (c *Collection) indexDoc(d doc.M) error {
	done := make([]*uniqueIndex, 0, len(c.indexes))
	for _, idx := range c.indexes {
		if err := idx.insert(d); err != nil {
			for _, prev := range done {
				prev.remove(d)
			}
			return err
		}
		done = append(done, idx)
	}
	return nil
}

func (c *Collection) unindexDoc(d doc.M) {
	for _, idx := range c.indexes {
		idx.remove(d)
	}
}

// Find implements domain.StoreCollection.
func (c *Collection) Find(filter, projection doc.M) domain.StoreCursor {
	return &Cursor{col: c, filter: filter, projection: projection}
}

// Remove implements domain.StoreCollection.
func (c *Collection) Remove(ctx context.Context, filter doc.M) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var kept doc.List
	var removed int64
	for _, d := range c.docs {
		ok, err := match(d, filter)
		if err != nil {
			return 0, err
		}
		if !ok {
			kept = append(kept, d)
			continue
		}
		c.unindexDoc(d)
		removed++
	}
	c.docs = kept
	return removed, nil
}

// Update implements domain.StoreCollection.
func (c *Collection) Update(ctx context.Context, filter, update doc.M, flags domain.UpdateFlags) (domain.UpdateReport, error) {
	if err := ctx.Err(); err != nil {
		return domain.UpdateReport{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	targets, err := c.matchIndices(filter, flags.Multi)
	if err != nil {
		return domain.UpdateReport{}, err
	}

	if len(targets) == 0 {
		if !flags.Upsert {
			return domain.UpdateReport{}, nil
		}
		created, err := c.upsert(filter, update)
		if err != nil {
			return domain.UpdateReport{}, err
		}
		return domain.UpdateReport{UpsertedKeys: []any{created.ID()}}, nil
	}

	for _, n := range targets {
		if err := c.replaceAt(n, update); err != nil {
			return domain.UpdateReport{}, err
		}
	}
	return domain.UpdateReport{Matched: int64(len(targets))}, nil
}

// FindAndModify implements domain.StoreCollection.
func (c *Collection) FindAndModify(ctx context.Context, filter, update doc.M, flags domain.ModifyFlags) (doc.M, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	targets, err := c.matchIndices(filter, true)
	if err != nil {
		return nil, false, err
	}
	if len(flags.Sort) > 0 && len(targets) > 1 {
		candidates := make(doc.List, len(targets))
		for i, n := range targets {
			candidates[i] = c.docs[n]
		}
		if err := sortDocs(candidates, flags.Sort); err != nil {
			return nil, false, err
		}
		targets = []int{c.indexOf(candidates[0])}
	}

	if len(targets) == 0 {
		if !flags.Upsert {
			return nil, false, nil
		}
		created, err := c.upsert(filter, update)
		if err != nil {
			return nil, false, err
		}
		return project(created.Clone(), flags.Projection), true, nil
	}

	n := targets[0]
	before := c.docs[n].Clone()
	if err := c.replaceAt(n, update); err != nil {
		return nil, false, err
	}
	res := c.docs[n].Clone()
	if !flags.ReturnNew {
		res = before
	}
	return project(res, flags.Projection), false, nil
}

// EnsureUniqueIndex implements domain.StoreCollection. Creating an index
// over data that already violates it fails and leaves no index behind.
func (c *Collection) EnsureUniqueIndex(ctx context.Context, field string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.indexes[field]; ok {
		return nil
	}
	idx := newUniqueIndex(field)
	for _, d := range c.docs {
		if err := idx.insert(d); err != nil {
			return err
		}
	}
	c.indexes[field] = idx
	return nil
}

// matchIndices returns the positions of the matching documents, all of them
// or just the first.
func (c *Collection) matchIndices(filter doc.M, multi bool) ([]int, error) {
	var res []int
	for n, d := range c.docs {
		ok, err := match(d, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		res = append(res, n)
		if !multi {
			break
		}
	}
	return res, nil
}

func (c *Collection) indexOf(d doc.M) int {
	for n, e := range c.docs {
		if equal(e.ID(), d.ID()) {
			return n
		}
	}
	return -1
}

// replaceAt applies the update to the document at position n, keeping the
// indexes in step. Index moves are two-phase: if any index rejects the new
// key, the moves already made are reversed before the error surfaces, so a
// failed update leaves every index holding the old keys.
func (c *Collection) replaceAt(n int, update doc.M) error {
	old := c.docs[n]
	modified, err := modify(old, update)
	if err != nil {
		return err
	}
	done := make([]*uniqueIndex, 0, len(c.indexes))
	for _, idx := range c.indexes {
		if err := idx.update(old, modified); err != nil {
			for _, prev := range done {
				_ = prev.update(modified, old)
			}
			return err
		}
		done = append(done, idx)
	}
	c.docs[n] = modified
	return nil
}

// upsert synthesizes a new document from the filter's equality fields and
// the update, assigns a primary key and stores it.
func (c *Collection) upsert(filter, update doc.M) (doc.M, error) {
	base := doc.M{}
	for k, v := range filter {
		if _, isDoc := asDoc(v); isDoc {
			continue
		}
		if k == doc.KeyField || len(k) > 0 && k[0] == '$' {
			continue
		}
		base.Set(k, v)
	}
	created, err := modify(base, update)
	if err != nil {
		return nil, err
	}
	created.Unset(doc.KeyField)
	created.Set(doc.KeyField, uuid.NewString())
	if err := c.indexDoc(created); err != nil {
		return nil, err
	}
	c.docs = append(c.docs, created)
	return created, nil
}

// snapshotMatching returns clones of the matching documents in insertion
// order.
func (c *Collection) snapshotMatching(filter doc.M) (doc.List, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var res doc.List
	for _, d := range c.docs {
		ok, err := match(d, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, d.Clone())
		}
	}
	return res, nil
}
