package memstore

import (
	"context"
	"sort"

	"github.com/seamdb/seam/domain"
	"github.com/seamdb/seam/pkg/doc"
)

// Cursor implements domain.StoreCursor. It holds the query settings and
// evaluates them lazily against a snapshot of the collection.
type Cursor struct {
	col        *Collection
	filter     doc.M
	projection doc.M
	sort       domain.Sort
	skip       int64
	limit      int64
}

// Sort implements domain.StoreCursor.
func (c *Cursor) Sort(s domain.Sort) domain.StoreCursor {
	c.sort = s
	return c
}

// Skip implements domain.StoreCursor.
func (c *Cursor) Skip(n int64) domain.StoreCursor {
	c.skip = n
	return c
}

// Limit implements domain.StoreCursor. A zero limit means unbounded.
func (c *Cursor) Limit(n int64) domain.StoreCursor {
	c.limit = n
	return c
}

// ToArray implements domain.StoreCursor. It materializes the matching
// documents after sorting, skipping, limiting and projecting.
func (c *Cursor) ToArray(ctx context.Context) (doc.List, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, err := c.window()
	if err != nil {
		return nil, err
	}
	for n, d := range docs {
		docs[n] = project(d, c.projection)
	}
	return docs, nil
}

// Count implements domain.StoreCursor. It reports how many documents match
// the filter, regardless of skip and limit.
func (c *Cursor) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	docs, err := c.col.snapshotMatching(c.filter)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// Size implements domain.StoreCursor. It reports how many documents the
// cursor yields once skip and limit are applied.
func (c *Cursor) Size(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	docs, err := c.window()
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// window returns the sorted, skipped and limited slice of matching clones.
func (c *Cursor) window() (doc.List, error) {
	docs, err := c.col.snapshotMatching(c.filter)
	if err != nil {
		return nil, err
	}
	if len(c.sort) > 0 {
		if err := sortDocs(docs, c.sort); err != nil {
			return nil, err
		}
	}
	if c.skip > 0 {
		if c.skip >= int64(len(docs)) {
			return doc.List{}, nil
		}
		docs = docs[c.skip:]
	}
	if c.limit > 0 && c.limit < int64(len(docs)) {
		docs = docs[:c.limit]
	}
	return docs, nil
}

// sortDocs orders documents by the given keys. Undefined fields sort first,
// and a negative order inverts the comparison.
func sortDocs(docs doc.List, s domain.Sort) error {
	var sortErr error
	sort.SliceStable(docs, func(i, j int) bool {
		for _, name := range s {
			av, _ := lookup(docs[i], name.Key)
			bv, _ := lookup(docs[j], name.Key)
			c, err := compare(av, bv)
			if err != nil {
				if sortErr == nil {
					sortErr = err
				}
				return false
			}
			if name.Order < 0 {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	return sortErr
}

// project applies a projection document. Any positive value switches the
// projection to inclusion mode, keeping the listed fields plus the primary
// key unless it is explicitly excluded; an all-zero projection drops the
// listed fields instead.
func project(d doc.M, projection doc.M) doc.M {
	if len(projection) == 0 {
		return d
	}
	inclusion := false
	for _, v := range projection {
		if f, ok := asFloat(v); ok && f > 0 {
			inclusion = true
			break
		}
	}
	if !inclusion {
		res := d.Clone()
		for k := range projection {
			unsetPath(res, k)
		}
		return res
	}
	res := doc.M{}
	if d.Has(doc.KeyField) {
		res.Set(doc.KeyField, d.ID())
	}
	for k, v := range projection {
		f, ok := asFloat(v)
		if !ok || f <= 0 {
			if k == doc.KeyField {
				res.Unset(doc.KeyField)
			}
			continue
		}
		if value, defined := lookup(d, k); defined {
			if err := setPath(res, k, value); err != nil {
				res.Set(k, value)
			}
		}
	}
	return res
}
