package domain

import (
	"errors"
	"fmt"

	"github.com/seamdb/seam/pkg/doc"
)

var (
	// ErrNotFound is returned when [Collection.FindOne] matches nothing,
	// or when [Collection.UpdateOne] matches nothing and upsert was not
	// requested.
	ErrNotFound = errors.New("no document matched the query")
	// ErrUpsertFailed is returned when an upsert was requested but the
	// store reported no resulting document.
	ErrUpsertFailed = errors.New("upsert reported no resulting document")
	// ErrNoDocuments is returned when [Collection.Insert] is called with
	// nothing to insert.
	ErrNoDocuments = errors.New("insert requires at least one document")
	// ErrConstraintViolated is surfaced by store drivers when a
	// uniqueness constraint is breached.
	ErrConstraintViolated = errors.New("unique constraint violated")
)

// ErrConfiguration represents a fatal setup mistake: a missing collection
// name, an uninitialized store handle, an unknown query-transformer key or
// an unsupported hook action. It is raised before any store call.
type ErrConfiguration struct {
	Reason string
}

func (e *ErrConfiguration) Error() string {
	return "configuration error: " + e.Reason
}

// NewErrConfiguration builds an [ErrConfiguration] from a format string.
func NewErrConfiguration(format string, args ...any) *ErrConfiguration {
	return &ErrConfiguration{Reason: fmt.Sprintf(format, args...)}
}

// HookError reports a handler failure in a hook chain. Payload carries the
// document as mutated up to and including the failing handler, so partial
// results stay visible for diagnostics.
type HookError struct {
	Phase   Phase
	Action  Action
	Err     error
	Payload doc.M
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s-%s hook failed: %v", e.Phase, e.Action, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}
