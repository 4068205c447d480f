// Package apperr defines the error taxonomy shared across layers.
package apperr

import "errors"

var (
	// ErrValidation marks malformed input rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a lookup for a note that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInconsistentState marks a write where the content store and the
	// metadata index disagree (e.g. artifact written, index insert failed).
	// The orphaned artifact is left in place for reconciliation.
	ErrInconsistentState = errors.New("persistence inconsistency")
	// ErrCorruptState marks an index row whose artifact is missing or
	// unreadable at read time.
	ErrCorruptState = errors.New("corrupt state")
)
