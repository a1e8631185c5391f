// Package cursorspec assembles store cursor requests from normalized
// filters and find options.
//
// Callers hand projection and sort in whatever shape is convenient (doc.M,
// plain maps, structs or the native [domain.Sort]); the builder decodes them
// before chaining them onto the driver cursor.
package cursorspec

import (
	"context"
	"maps"
	"slices"

	"github.com/seamdb/seam/domain"
	"github.com/seamdb/seam/internal/adapter/decoder"
	"github.com/seamdb/seam/pkg/doc"
)

// Builder implements cursor spec assembly.
type Builder struct {
	dec domain.Decoder
}

// Option configures the builder.
type Option func(*Builder)

// WithDecoder sets the decoder used for projection and sort shapes.
func WithDecoder(d domain.Decoder) Option {
	return func(b *Builder) { b.dec = d }
}

// NewBuilder returns a new Builder.
func NewBuilder(opts ...Option) *Builder {
	b := Builder{dec: decoder.NewDecoder()}
	for _, opt := range opts {
		opt(&b)
	}
	return &b
}

// Build chains the decoded options onto a find cursor for the filter. A zero
// limit leaves the cursor unbounded.
func (b *Builder) Build(col domain.StoreCollection, filter doc.M, opts domain.FindOptions) (domain.StoreCursor, error) {
	proj, err := b.Projection(opts.Projection)
	if err != nil {
		return nil, err
	}
	sort, err := b.Sort(opts.Sort)
	if err != nil {
		return nil, err
	}
	cur := col.Find(filter, proj)
	if len(sort) > 0 {
		cur = cur.Sort(sort)
	}
	if opts.Skip > 0 {
		cur = cur.Skip(opts.Skip)
	}
	if opts.Limit > 0 {
		cur = cur.Limit(opts.Limit)
	}
	return cur, nil
}

// Count reports the raw match cardinality of the filter. Skip and limit
// deliberately play no part.
func (b *Builder) Count(ctx context.Context, col domain.StoreCollection, filter doc.M) (int64, error) {
	return col.Find(filter, nil).Count(ctx)
}

// Size reports how many documents a cursor built from the same options
// would yield, with skip and limit applied.
func (b *Builder) Size(ctx context.Context, col domain.StoreCollection, filter doc.M, opts domain.FindOptions) (int64, error) {
	cur, err := b.Build(col, filter, opts)
	if err != nil {
		return 0, err
	}
	return cur.Size(ctx)
}

// Projection decodes a caller-supplied projection shape into a projection
// document.
func (b *Builder) Projection(v any) (doc.M, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case doc.M:
		return t, nil
	case map[string]any:
		return doc.M(t), nil
	}
	var m map[string]int
	if err := b.dec.Decode(v, &m); err != nil {
		return nil, err
	}
	res := make(doc.M, len(m))
	for k, inc := range m {
		res[k] = inc
	}
	return res, nil
}

// Sort decodes a caller-supplied sort shape into a [domain.Sort]. Map shapes
// sort their criteria by field key so the result is deterministic.
func (b *Builder) Sort(v any) (domain.Sort, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case domain.Sort:
		return t, nil
	case []domain.SortName:
		return t, nil
	}
	var m map[string]int
	if err := b.dec.Decode(v, &m); err != nil {
		return nil, err
	}
	res := make(domain.Sort, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		res = append(res, domain.SortName{Key: k, Order: m[k]})
	}
	return res, nil
}
