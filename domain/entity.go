package domain

import "github.com/seamdb/seam/pkg/doc"

// Phase is the lifecycle side of a hook chain.
type Phase string

const (
	// Before hooks run ahead of the store call and can abort it.
	Before Phase = "before"
	// After hooks run on the store call's result.
	After Phase = "after"
)

// Action is the CRUD action a hook chain is bound to.
type Action string

const (
	// ActionInsert covers document creation through Insert.
	ActionInsert Action = "insert"
	// ActionUpdate covers modifications of existing documents.
	ActionUpdate Action = "update"
	// ActionUpsert covers documents created by an upserting update.
	ActionUpsert Action = "upsert"
	// ActionRemove covers document deletion.
	ActionRemove Action = "remove"
)

// Supported reports whether a hook chain exists for the phase/action pair.
// Before-update is deliberately absent: a multi-update's targets are unknown
// until after the write, so a before chain could not see them.
func Supported(phase Phase, action Action) bool {
	switch phase {
	case Before:
		return action == ActionInsert || action == ActionRemove
	case After:
		return action == ActionInsert || action == ActionUpdate ||
			action == ActionUpsert || action == ActionRemove
	default:
		return false
	}
}

// SortName is a single sort criterion: a field key and an order, positive
// for ascending and negative for descending.
type SortName struct {
	Key   string `seam:"key" mapstructure:"key"`
	Order int    `seam:"order" mapstructure:"order"`
}

// Sort is an ordered list of sort criteria.
type Sort []SortName

// UpdateFlags select the multi-document and upsert behaviors of a store
// update.
type UpdateFlags struct {
	Multi  bool
	Upsert bool
}

// UpdateReport is what a store update returns: a matched count and, when an
// upsert created documents, their primary keys. The modified documents are
// not part of the report; reconciling them is the orchestrator's job.
type UpdateReport struct {
	Matched      int64
	UpsertedKeys []any
}

// ModifyFlags configure a single-document find-and-modify.
type ModifyFlags struct {
	Upsert     bool
	ReturnNew  bool
	Sort       Sort
	Projection doc.M
}
