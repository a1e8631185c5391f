package memstore

import (
	"fmt"
	"strings"

	"github.com/seamdb/seam/pkg/doc"
)

// match evaluates a filter against a document. Supported shapes: top-level
// $and/$or/$not, field equality (deep), and per-field operator documents
// with $in, $nin, $ne, $exists, $lt, $lte, $gt and $gte.
func match(d doc.M, filter doc.M) (bool, error) {
	for k, cond := range filter {
		var ok bool
		var err error
		switch k {
		case "$and":
			ok, err = matchAll(d, cond, true)
		case "$or":
			ok, err = matchAll(d, cond, false)
		case "$not":
			sub, isDoc := asDoc(cond)
			if !isDoc {
				return false, fmt.Errorf("$not expects a filter document, got %T", cond)
			}
			ok, err = match(d, sub)
			ok = !ok
		default:
			ok, err = matchField(d, k, cond)
		}
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchAll(d doc.M, cond any, all bool) (bool, error) {
	list, ok := cond.([]any)
	if !ok {
		return false, fmt.Errorf("logical operator expects a list, got %T", cond)
	}
	for _, sub := range list {
		subDoc, isDoc := asDoc(sub)
		if !isDoc {
			return false, fmt.Errorf("logical operator expects filter documents, got %T", sub)
		}
		ok, err := match(d, subDoc)
		if err != nil {
			return false, err
		}
		if ok != all {
			return !all, nil
		}
	}
	return all, nil
}

func matchField(d doc.M, field string, cond any) (bool, error) {
	value, defined := lookup(d, field)

	if ops, isDoc := asDoc(cond); isDoc && isOperatorDoc(ops) {
		for op, arg := range ops {
			ok, err := matchOperator(value, defined, op, arg)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}

	if !defined {
		return cond == nil, nil
	}
	return equal(value, cond), nil
}

func isOperatorDoc(m doc.M) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func matchOperator(value any, defined bool, op string, arg any) (bool, error) {
	switch op {
	case "$exists":
		want, _ := arg.(bool)
		return defined == want, nil
	case "$ne":
		return !defined || !equal(value, arg), nil
	case "$in":
		return inList(value, arg)
	case "$nin":
		ok, err := inList(value, arg)
		return !ok, err
	case "$lt", "$lte", "$gt", "$gte":
		if !defined {
			return false, nil
		}
		c, err := compare(value, arg)
		if err != nil {
			// Incomparable values simply do not match range operators.
			return false, nil
		}
		switch op {
		case "$lt":
			return c < 0, nil
		case "$lte":
			return c <= 0, nil
		case "$gt":
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	default:
		return false, fmt.Errorf("unknown match operator %q", op)
	}
}

func inList(value any, arg any) (bool, error) {
	list, ok := arg.([]any)
	if !ok {
		return false, fmt.Errorf("$in expects a list, got %T", arg)
	}
	for _, e := range list {
		if equal(value, e) {
			return true, nil
		}
	}
	return false, nil
}
