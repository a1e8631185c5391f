package memstore

import (
	"errors"
	"fmt"

	"github.com/seamdb/seam/domain"
	"github.com/seamdb/seam/pkg/doc"
	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/bst/adapter/avl"
)

// treeComparer adapts the package ordering to bst.Comparer. Keys are the
// indexed field values, tree values are document primary keys.
type treeComparer struct{}

func newTreeComparer() bst.Comparer[any, any] {
	return treeComparer{}
}

// CompareKeys implements bst.Comparer.
func (treeComparer) CompareKeys(a any, b any) (int, error) {
	return compare(a, b)
}

// CompareValues implements bst.Comparer.
func (treeComparer) CompareValues(a any, b any) (bool, error) {
	return equal(a, b), nil
}

// uniqueIndex enforces a uniqueness constraint on one field. Documents
// missing the field are skipped, so absent application identifiers never
// collide.
type uniqueIndex struct {
	field string
	tree  bst.BST[any, any]
}

func newUniqueIndex(field string) *uniqueIndex {
	return &uniqueIndex{
		field: field,
		tree:  avl.NewBST(true, 8, newTreeComparer()),
	}
}

// insert registers the document's key. A duplicate key surfaces as
// [domain.ErrConstraintViolated].
func (i *uniqueIndex) insert(d doc.M) error {
	key, defined := lookup(d, i.field)
	if !defined || key == nil {
		return nil
	}
	if err := i.tree.Insert(key, d.ID()); err != nil {
		if e := new(bst.ErrUniqueViolated); errors.As(err, e) {
			return fmt.Errorf("%w: duplicate value %v for field %q",
				domain.ErrConstraintViolated, key, i.field)
		}
		return err
	}
	return nil
}

func (i *uniqueIndex) remove(d doc.M) {
	key, defined := lookup(d, i.field)
	if !defined || key == nil {
		return
	}
	id := d.ID()
	_ = i.tree.Delete(key, &id)
}

// update swaps a document's key, reverting on conflict.
func (i *uniqueIndex) update(old, new doc.M) error {
	i.remove(old)
	if err := i.insert(new); err != nil {
		// restore the old entry so the index stays consistent
		_ = i.insert(old)
		return err
	}
	return nil
}
