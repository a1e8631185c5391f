// Package doc defines the open document mapping exchanged between the
// orchestration layer and a store driver, plus conversion helpers for
// caller-supplied maps and structs.
package doc

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	goreflect "github.com/goccy/go-reflect"
)

// TagName is the struct tag honored by [FromAny].
const TagName = "seam"

const (
	// KeyField holds the store-assigned primary key.
	KeyField = "_id"
	// AppIDField holds the application identifier managed by the
	// orchestration layer.
	AppIDField = "id"
)

var timeTyp = goreflect.TypeOf(*new(time.Time))

// M is an open mapping of field names to values. Mutations are visible to
// every holder of the same reference; the hook pipeline relies on that.
type M map[string]any

// ID returns the store primary key, or nil if the document was never
// inserted.
func (d M) ID() any {
	return d[KeyField]
}

// AppID returns the application identifier, or an empty string if none was
// assigned yet.
func (d M) AppID() string {
	s, _ := d[AppIDField].(string)
	return s
}

// Has reports whether a value is set under the given key.
func (d M) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Get returns the value under the given key, or nil if unset.
func (d M) Get(key string) any {
	return d[key]
}

// Set sets the value under the given key.
func (d M) Set(key string, value any) {
	d[key] = value
}

// Unset removes the value under the given key.
func (d M) Unset(key string) {
	delete(d, key)
}

// D returns the sub-document under the given key, or nil if the value is not
// a document.
func (d M) D(key string) M {
	switch t := d[key].(type) {
	case M:
		return t
	case map[string]any:
		return M(t)
	default:
		return nil
	}
}

// Clone returns a deep copy of the document. Sub-documents and slices are
// copied; scalar values are shared.
func (d M) Clone() M {
	res := make(M, len(d))
	for k, v := range d {
		res[k] = cloneValue(v)
	}
	return res
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case M:
		return t.Clone()
	case map[string]any:
		return M(t).Clone()
	case []any:
		res := make([]any, len(t))
		for n, e := range t {
			res[n] = cloneValue(e)
		}
		return res
	default:
		return t
	}
}

// List is an ordered sequence of documents.
type List []M

// IDs returns the store primary keys of the documents that carry one.
func (l List) IDs() []any {
	res := make([]any, 0, len(l))
	for _, d := range l {
		if id := d.ID(); id != nil {
			res = append(res, id)
		}
	}
	return res
}

// AppIDs returns the application identifiers of the documents that carry one.
func (l List) AppIDs() []string {
	res := make([]string, 0, len(l))
	for _, d := range l {
		if id := d.AppID(); id != "" {
			res = append(res, id)
		}
	}
	return res
}

// Clone returns a deep copy of the list.
func (l List) Clone() List {
	res := make(List, len(l))
	for n, d := range l {
		res[n] = d.Clone()
	}
	return res
}

// FromAny converts a caller-supplied value into an [M]. Values that already
// are documents (or map[string]any) are returned sharing storage, so
// in-place mutations flow back to the caller. Structs are converted field by
// field honoring the "seam" tag ("-" skips a field, ",omitempty" drops nil
// values, ",omitzero" drops zero values). A nil input yields an empty
// document.
func FromAny(in any) (M, error) {
	switch t := in.(type) {
	case nil:
		return M{}, nil
	case M:
		return t, nil
	case map[string]any:
		return M(t), nil
	}

	r := goreflect.ValueNoEscapeOf(in)
	k := r.Kind()
	for k == goreflect.Interface || k == goreflect.Ptr {
		if r.IsNil() {
			return M{}, nil
		}
		r = r.Elem()
		k = r.Kind()
	}
	if k != goreflect.Struct && k != goreflect.Map {
		return nil, fmt.Errorf("expected map or struct, got %s", r.Type().String())
	}
	v, err := fromReflect(r)
	if err != nil {
		return nil, err
	}
	return v.(M), nil
}

func fromReflect(r goreflect.Value) (any, error) {
	for r.Kind() == goreflect.Ptr || r.Kind() == goreflect.Interface {
		if r.IsNil() {
			return nil, nil
		}
		r = r.Elem()
	}
	switch r.Kind() {
	case goreflect.Invalid:
		return nil, nil
	case goreflect.Slice:
		if r.IsNil() {
			return nil, nil
		}
		fallthrough
	case goreflect.Array:
		res := make([]any, r.Len())
		for n := range res {
			v, err := fromReflect(r.Index(n))
			if err != nil {
				return nil, err
			}
			res[n] = v
		}
		return res, nil
	case goreflect.Struct:
		if r.Type() == timeTyp {
			return r.Interface(), nil
		}
		return fromStruct(r)
	case goreflect.Map:
		if r.IsNil() {
			return nil, nil
		}
		res := make(M, r.Len())
		for _, k := range r.MapKeys() {
			v, err := fromReflect(r.MapIndex(k))
			if err != nil {
				return nil, err
			}
			res[k.String()] = v
		}
		return res, nil
	default:
		return r.Interface(), nil
	}
}

func fromStruct(r goreflect.Value) (any, error) {
	typ := r.Type()
	res := make(M, r.NumField())
	for n := range r.NumField() {
		field := typ.Field(n)
		if field.PkgPath != "" {
			continue
		}
		name := field.Name
		var segments []string
		if tag, ok := field.Tag.Lookup(TagName); ok {
			if tag == "-" {
				continue
			}
			segments = strings.Split(tag, ",")
			if segments[0] != "" {
				name = segments[0]
			}
			segments = segments[1:]
		}
		fv := r.Field(n)
		if slices.Contains(segments, "omitempty") && isNullable(field.Type) && fv.IsNil() {
			continue
		}
		if slices.Contains(segments, "omitzero") && fv.IsZero() {
			continue
		}
		v, err := fromReflect(fv)
		if err != nil {
			return nil, err
		}
		res[name] = v
	}
	return res, nil
}

func isNullable(t goreflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface,
		reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}
