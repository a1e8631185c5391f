package memstore

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/seamdb/seam/pkg/doc"
)

// compare orders two scalar values: nil first, then booleans, numbers,
// strings and times. Mixed numeric kinds compare by magnitude.
func compare(a, b any) (int, error) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, nil
		case a == nil:
			return -1, nil
		default:
			return 1, nil
		}
	}

	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		if !bok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}

	switch at := a.(type) {
	case string:
		bt, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		return strings.Compare(at, bt), nil
	case bool:
		bt, ok := b.(bool)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		switch {
		case at == bt:
			return 0, nil
		case bt:
			return -1, nil
		default:
			return 1, nil
		}
	case time.Time:
		bt, ok := b.(time.Time)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		return at.Compare(bt), nil
	default:
		return 0, fmt.Errorf("cannot compare %T with %T", a, b)
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case time.Duration:
		return float64(t), true
	default:
		return 0, false
	}
}

// equal is equality for match purposes: comparable scalars through compare,
// everything else through deep equality.
func equal(a, b any) bool {
	if c, err := compare(a, b); err == nil {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// lookup resolves a possibly dotted field path against a document.
func lookup(d doc.M, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = d
	for _, p := range parts {
		m, ok := asDoc(cur)
		if !ok {
			return nil, false
		}
		if !m.Has(p) {
			return nil, false
		}
		cur = m.Get(p)
	}
	return cur, true
}

func asDoc(v any) (doc.M, bool) {
	switch t := v.(type) {
	case doc.M:
		return t, true
	case map[string]any:
		return doc.M(t), true
	default:
		return nil, false
	}
}
