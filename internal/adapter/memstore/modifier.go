package memstore

import (
	"fmt"
	"strings"

	"github.com/seamdb/seam/pkg/doc"
)

// modify applies an update document to a copy of old and returns the result.
// Update documents are either a full replacement (no $ operators) or a set
// of $set/$unset/$inc/$push operators; mixing the two is an error, and the
// primary key can never change.
func modify(old doc.M, update doc.M) (doc.M, error) {
	operators := 0
	for k := range update {
		if strings.HasPrefix(k, "$") {
			operators++
		}
	}
	if operators > 0 && operators != len(update) {
		return nil, fmt.Errorf("cannot mix operators and plain fields in an update")
	}

	if operators == 0 {
		return replace(old, update)
	}

	res := old.Clone()
	for op, arg := range update {
		fields, ok := asDoc(arg)
		if !ok {
			return nil, fmt.Errorf("%s expects a field document, got %T", op, arg)
		}
		for path, v := range fields {
			if err := applyOperator(res, op, path, v); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

func replace(old doc.M, update doc.M) (doc.M, error) {
	if update.Has(doc.KeyField) && !equal(update.ID(), old.ID()) {
		return nil, fmt.Errorf("cannot change a document's %s", doc.KeyField)
	}
	res := update.Clone()
	res.Set(doc.KeyField, old.ID())
	return res, nil
}

func applyOperator(d doc.M, op string, path string, v any) error {
	if path == doc.KeyField {
		return fmt.Errorf("cannot change a document's %s", doc.KeyField)
	}
	switch op {
	case "$set":
		return setPath(d, path, v)
	case "$unset":
		unsetPath(d, path)
		return nil
	case "$inc":
		return incPath(d, path, v)
	case "$push":
		return pushPath(d, path, v)
	default:
		return fmt.Errorf("unknown update operator %q", op)
	}
}

// navigate walks to the parent of a dotted path, creating intermediate
// documents when create is set.
func navigate(d doc.M, path string, create bool) (doc.M, string, bool) {
	parts := strings.Split(path, ".")
	cur := d
	for _, p := range parts[:len(parts)-1] {
		next, ok := asDoc(cur.Get(p))
		if !ok {
			if !create || cur.Has(p) {
				return nil, "", false
			}
			next = doc.M{}
			cur.Set(p, next)
		}
		cur = next
	}
	return cur, parts[len(parts)-1], true
}

func setPath(d doc.M, path string, v any) error {
	parent, key, ok := navigate(d, path, true)
	if !ok {
		return fmt.Errorf("cannot set %q through a non-document field", path)
	}
	parent.Set(key, v)
	return nil
}

func unsetPath(d doc.M, path string) {
	if parent, key, ok := navigate(d, path, false); ok {
		parent.Unset(key)
	}
}

func incPath(d doc.M, path string, v any) error {
	delta, ok := asFloat(v)
	if !ok {
		return fmt.Errorf("$inc expects a numeric value, got %T", v)
	}
	parent, key, ok := navigate(d, path, true)
	if !ok {
		return fmt.Errorf("cannot increment %q through a non-document field", path)
	}
	cur := parent.Get(key)
	if cur == nil {
		parent.Set(key, delta)
		return nil
	}
	base, ok := asFloat(cur)
	if !ok {
		return fmt.Errorf("$inc target %q holds non-numeric %T", path, cur)
	}
	parent.Set(key, base+delta)
	return nil
}

func pushPath(d doc.M, path string, v any) error {
	parent, key, ok := navigate(d, path, true)
	if !ok {
		return fmt.Errorf("cannot push to %q through a non-document field", path)
	}
	cur := parent.Get(key)
	if cur == nil {
		parent.Set(key, []any{v})
		return nil
	}
	list, ok := cur.([]any)
	if !ok {
		return fmt.Errorf("$push target %q holds non-array %T", path, cur)
	}
	parent.Set(key, append(list, v))
	return nil
}
