// Package collection contains the CRUD orchestrator: the default
// [domain.Collection] implementation tying the query normalizer, the hook
// pipeline and the cursor spec builder around a store collection.
package collection

import (
	"context"
	"sync"

	"github.com/seamdb/seam/domain"
	"github.com/seamdb/seam/internal/adapter/cursorspec"
	"github.com/seamdb/seam/internal/adapter/decoder"
	"github.com/seamdb/seam/internal/adapter/hooks"
	"github.com/seamdb/seam/internal/adapter/idgenerator"
	"github.com/seamdb/seam/internal/adapter/normalizer"
	"github.com/seamdb/seam/pkg/doc"
)

// Collection implements domain.Collection.
type Collection struct {
	name  string
	store domain.Store
	idGen domain.IDGenerator
	setup domain.SetupFunc

	spec *cursorspec.Builder

	mu          sync.Mutex
	initialized bool
	col         domain.StoreCollection
	hooks       *hooks.Registry
	norm        *normalizer.Normalizer
}

// NewCollection returns a collection handle bound to a store. The store-side
// collection is resolved lazily on first use.
func NewCollection(store domain.Store, name string, options ...domain.CollectionOption) (*Collection, error) {
	if store == nil {
		return nil, domain.NewErrConfiguration("collection %q requires a store", name)
	}
	if name == "" {
		return nil, domain.NewErrConfiguration("collection name cannot be empty")
	}
	o := domain.CollectionOptions{
		IDGenerator: idgenerator.NewIDGenerator(),
		Decoder:     decoder.NewDecoder(),
	}
	for _, opt := range options {
		opt(&o)
	}
	return &Collection{
		name:  name,
		store: store,
		idGen: o.IDGenerator,
		setup: o.Setup,
		spec:  cursorspec.NewBuilder(cursorspec.WithDecoder(o.Decoder)),
	}, nil
}

// init resolves the store collection, enforces the application identifier
// index, registers the default hooks and runs the setup strategy. It runs at
// most once; a failed attempt leaves the handle untouched so the next call
// starts over.
func (c *Collection) init(ctx context.Context) (domain.StoreCollection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return c.col, nil
	}
	col, err := c.store.Collection(c.name)
	if err != nil {
		return nil, err
	}
	if err := col.EnsureUniqueIndex(ctx, doc.AppIDField); err != nil {
		return nil, err
	}
	registry := hooks.NewRegistry()
	norm := normalizer.NewNormalizer(c.store)
	if err := registry.Register(domain.Before, domain.ActionInsert, c.assignID); err != nil {
		return nil, err
	}
	if c.setup != nil {
		if err := c.setup(registry, norm); err != nil {
			return nil, err
		}
	}
	c.col = col
	c.hooks = registry
	c.norm = norm
	c.initialized = true
	return col, nil
}

// assignID is the default before-insert hook: it gives every new document an
// application identifier unless the caller supplied one.
func (c *Collection) assignID(_ context.Context, d doc.M) error {
	if d.Has(doc.AppIDField) {
		return nil
	}
	id, err := c.idGen.Generate()
	if err != nil {
		return err
	}
	d.Set(doc.AppIDField, id)
	return nil
}

// Name implements domain.Collection.
func (c *Collection) Name() string {
	return c.name
}

// Insert implements domain.Collection.
func (c *Collection) Insert(ctx context.Context, docs ...any) (doc.List, error) {
	if len(docs) == 0 {
		return nil, domain.ErrNoDocuments
	}
	col, err := c.init(ctx)
	if err != nil {
		return nil, err
	}
	list := make(doc.List, len(docs))
	for n, in := range docs {
		d, err := doc.FromAny(in)
		if err != nil {
			return nil, err
		}
		list[n] = d
	}
	if err := c.hooks.RunEach(ctx, domain.Before, domain.ActionInsert, list); err != nil {
		return nil, err
	}
	if err := col.Insert(ctx, list...); err != nil {
		return nil, err
	}
	if err := c.hooks.RunEach(ctx, domain.After, domain.ActionInsert, list); err != nil {
		return nil, err
	}
	return list, nil
}

// Find implements domain.Collection.
func (c *Collection) Find(ctx context.Context, query any, options ...domain.FindOption) (doc.List, error) {
	col, filter, err := c.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	cur, err := c.spec.Build(col, filter, findOptions(options))
	if err != nil {
		return nil, err
	}
	return cur.ToArray(ctx)
}

// FindOne implements domain.Collection.
func (c *Collection) FindOne(ctx context.Context, query any, options ...domain.FindOption) (doc.M, error) {
	docs, err := c.Find(ctx, query, append(options, domain.WithLimit(1))...)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	return docs[0], nil
}

// Count implements domain.Collection.
func (c *Collection) Count(ctx context.Context, query any) (int64, error) {
	col, filter, err := c.prepare(ctx, query)
	if err != nil {
		return 0, err
	}
	return c.spec.Count(ctx, col, filter)
}

// Size implements domain.Collection.
func (c *Collection) Size(ctx context.Context, query any, options ...domain.FindOption) (int64, error) {
	col, filter, err := c.prepare(ctx, query)
	if err != nil {
		return 0, err
	}
	return c.spec.Size(ctx, col, filter, findOptions(options))
}

// Remove implements domain.Collection. The matching documents are snapshotted
// first; before-remove hooks run over the snapshot and may drop a document
// from the deletion by unsetting its primary key. Only the surviving
// documents are deleted.
func (c *Collection) Remove(ctx context.Context, query any, options ...domain.FindOption) (doc.List, error) {
	col, filter, err := c.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	cur, err := c.spec.Build(col, filter, findOptions(options))
	if err != nil {
		return nil, err
	}
	snapshot, err := cur.ToArray(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.hooks.RunEach(ctx, domain.Before, domain.ActionRemove, snapshot); err != nil {
		return nil, err
	}
	kept := make(doc.List, 0, len(snapshot))
	for _, d := range snapshot {
		if d.Has(doc.KeyField) {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		return kept, nil
	}
	if _, err := col.Remove(ctx, byKeys(kept.IDs())); err != nil {
		return nil, err
	}
	if err := c.hooks.RunEach(ctx, domain.After, domain.ActionRemove, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

// UpdateOne implements domain.Collection.
func (c *Collection) UpdateOne(ctx context.Context, query, update any, options ...domain.UpdateOption) (doc.M, error) {
	col, filter, err := c.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	o := updateOptions(options)
	upd, err := doc.FromAny(update)
	if err != nil {
		return nil, err
	}
	sort, err := c.spec.Sort(o.Sort)
	if err != nil {
		return nil, err
	}
	proj, err := c.spec.Projection(o.Projection)
	if err != nil {
		return nil, err
	}
	flags := domain.ModifyFlags{
		Upsert:     o.Upsert,
		ReturnNew:  true,
		Sort:       sort,
		Projection: proj,
	}
	res, upserted, err := col.FindAndModify(ctx, filter, upd, flags)
	if err != nil {
		return nil, err
	}
	if res == nil {
		if o.Upsert {
			return nil, domain.ErrUpsertFailed
		}
		return nil, domain.ErrNotFound
	}
	action := domain.ActionUpdate
	if upserted {
		action = domain.ActionUpsert
	}
	if err := c.hooks.Run(ctx, domain.After, action, res); err != nil {
		return nil, err
	}
	return res, nil
}

// UpdateAll implements domain.Collection. The matching documents' primary
// keys are snapshotted first, the update is written against exactly those
// keys, and the affected documents are re-read by the same keys with the
// caller's projection and sort. Documents whose match status changes between
// snapshot and write are updated anyway; ones appearing after the snapshot
// are not.
func (c *Collection) UpdateAll(ctx context.Context, query, update any, options ...domain.UpdateOption) (doc.List, error) {
	col, filter, err := c.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	o := updateOptions(options)
	upd, err := doc.FromAny(update)
	if err != nil {
		return nil, err
	}

	cur, err := c.spec.Build(col, filter, domain.FindOptions{
		Projection: doc.M{doc.KeyField: 1},
		Sort:       o.Sort,
	})
	if err != nil {
		return nil, err
	}
	snapshot, err := cur.ToArray(ctx)
	if err != nil {
		return nil, err
	}
	keys := snapshot.IDs()

	upserted := false
	if len(keys) == 0 {
		if !o.Upsert {
			return doc.List{}, nil
		}
		report, err := col.Update(ctx, filter, upd, domain.UpdateFlags{Multi: true, Upsert: true})
		if err != nil {
			return nil, err
		}
		keys = report.UpsertedKeys
		upserted = true
		if len(keys) == 0 {
			return doc.List{}, nil
		}
	} else {
		if _, err := col.Update(ctx, byKeys(keys), upd, domain.UpdateFlags{Multi: true}); err != nil {
			return nil, err
		}
	}

	cur, err = c.spec.Build(col, byKeys(keys), domain.FindOptions{
		Projection: o.Projection,
		Sort:       o.Sort,
	})
	if err != nil {
		return nil, err
	}
	res, err := cur.ToArray(ctx)
	if err != nil {
		return nil, err
	}
	action := domain.ActionUpdate
	if upserted {
		action = domain.ActionUpsert
	}
	if err := c.hooks.RunEach(ctx, domain.After, action, res); err != nil {
		return nil, err
	}
	return res, nil
}

// prepare initializes the handle and normalizes the query in one step.
func (c *Collection) prepare(ctx context.Context, query any) (domain.StoreCollection, doc.M, error) {
	col, err := c.init(ctx)
	if err != nil {
		return nil, nil, err
	}
	q, err := doc.FromAny(query)
	if err != nil {
		return nil, nil, err
	}
	filter, err := c.norm.Normalize(q)
	if err != nil {
		return nil, nil, err
	}
	return col, filter, nil
}

func byKeys(keys []any) doc.M {
	return doc.M{doc.KeyField: doc.M{"$in": keys}}
}

func findOptions(options []domain.FindOption) domain.FindOptions {
	var o domain.FindOptions
	for _, opt := range options {
		opt(&o)
	}
	return o
}

func updateOptions(options []domain.UpdateOption) domain.UpdateOptions {
	var o domain.UpdateOptions
	for _, opt := range options {
		opt(&o)
	}
	return o
}
