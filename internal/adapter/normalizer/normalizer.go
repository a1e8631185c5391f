// Package normalizer expands shorthand query directives into native filter
// fragments.
//
// A query may carry a reserved "$$" sub-object. Each of its entries is
// resolved by a transformer registered under the entry's key; the returned
// fragments merge into the plain part of the query with last-write-wins
// semantics, and the "$$" sub-object itself never survives into the output.
package normalizer

import (
	"fmt"
	"maps"
	"slices"

	"github.com/seamdb/seam/domain"
	"github.com/seamdb/seam/pkg/doc"
)

// Marker is the reserved key introducing a shorthand directive object.
const Marker = "$$"

// Normalizer implements query normalization and the extensible transformer
// table. It implements domain.TransformerTable.
type Normalizer struct {
	store        domain.Store
	transformers map[string]domain.Transformer
}

// NewNormalizer returns a normalizer with the built-in transformers
// registered: "id", "ids", "storeId" and "storeIds". The store handle is
// needed by the storeId variants to build native key values.
func NewNormalizer(store domain.Store) *Normalizer {
	n := &Normalizer{
		store:        store,
		transformers: make(map[string]domain.Transformer),
	}
	n.transformers["id"] = n.byAppID
	n.transformers["ids"] = n.byAppIDs
	n.transformers["storeId"] = n.byStoreKey
	n.transformers["storeIds"] = n.byStoreKeys
	return n
}

// Register implements domain.TransformerTable. Unknown keys are rejected at
// resolution time, not here; registration only validates its inputs.
func (n *Normalizer) Register(key string, t domain.Transformer) error {
	if key == "" {
		return domain.NewErrConfiguration("transformer key must not be empty")
	}
	if t == nil {
		return domain.NewErrConfiguration("transformer %q must not be nil", key)
	}
	n.transformers[key] = t
	return nil
}

// Normalize resolves the "$$" directive of the query, if any, and returns
// the resulting filter. The input document is never mutated. Resolving an
// unregistered directive key fails with a configuration error.
func (n *Normalizer) Normalize(query doc.M) (doc.M, error) {
	res := make(doc.M, len(query))
	for k, v := range query {
		if k != Marker {
			res[k] = v
		}
	}

	directive := query.D(Marker)
	if directive == nil {
		return res, nil
	}

	// Deterministic resolution order so last-write-wins is reproducible.
	keys := slices.Sorted(maps.Keys(directive))
	for _, k := range keys {
		t, ok := n.transformers[k]
		if !ok {
			return nil, domain.NewErrConfiguration("unknown query transformer %q", k)
		}
		fragment, err := t(directive[k], res, directive)
		if err != nil {
			return nil, err
		}
		for fk, fv := range fragment {
			res[fk] = fv
		}
	}
	return res, nil
}

func (n *Normalizer) byAppID(value any, _ doc.M, _ doc.M) (doc.M, error) {
	return doc.M{doc.AppIDField: value}, nil
}

func (n *Normalizer) byAppIDs(value any, _ doc.M, _ doc.M) (doc.M, error) {
	ids, err := compact(value)
	if err != nil {
		return nil, err
	}
	return doc.M{doc.AppIDField: doc.M{"$in": ids}}, nil
}

func (n *Normalizer) byStoreKey(value any, _ doc.M, _ doc.M) (doc.M, error) {
	key, err := n.storeKey(value)
	if err != nil {
		return nil, err
	}
	return doc.M{doc.KeyField: key}, nil
}

func (n *Normalizer) byStoreKeys(value any, _ doc.M, _ doc.M) (doc.M, error) {
	ids, err := compact(value)
	if err != nil {
		return nil, err
	}
	keys := make([]any, len(ids))
	for i, id := range ids {
		key, err := n.storeKey(id)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}
	return doc.M{doc.KeyField: doc.M{"$in": keys}}, nil
}

func (n *Normalizer) storeKey(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected textual identifier, got %T", value)
	}
	return n.store.KeyFromString(s)
}

// compact flattens the value into a slice with nil and empty-string entries
// dropped.
func compact(value any) ([]any, error) {
	var in []any
	switch t := value.(type) {
	case nil:
		return nil, nil
	case []any:
		in = t
	case []string:
		in = make([]any, len(t))
		for i, s := range t {
			in[i] = s
		}
	default:
		return nil, fmt.Errorf("expected identifier list, got %T", value)
	}
	res := make([]any, 0, len(in))
	for _, v := range in {
		if v == nil || v == "" {
			continue
		}
		res = append(res, v)
	}
	return res, nil
}
