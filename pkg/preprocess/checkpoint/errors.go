package checkpoint

import (
	"errors"
	"fmt"
)

// Sentinel errors for store lookups.
var (
	// ErrNotFound indicates the requested key or blob doesn't exist.
	ErrNotFound = errors.New("checkpoint object not found")
)

// BatchSizeError indicates a save call's candidate count exceeded the
// configured maximum. The whole call is rejected with no partial write.
type BatchSizeError struct {
	// Count is the number of candidates in the rejected call.
	Count int
	// Max is the configured per-save limit.
	Max int
}

// Error implements the error interface.
func (e *BatchSizeError) Error() string {
	return fmt.Sprintf("cannot save %d objects: batch limit is %d", e.Count, e.Max)
}

// SchemaError indicates a candidate could not be constructed into, or does
// not satisfy, the configured object shape. The whole save call is rejected
// with no partial write.
type SchemaError struct {
	// Key is the candidate's key, when known.
	Key string
	// Message describes the violation.
	Message string
	// Err is the underlying constructor error, if any.
	Err error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("object %q does not satisfy the store schema: %s", e.Key, e.Message)
	}
	return fmt.Sprintf("object does not satisfy the store schema: %s", e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// CorruptStateError indicates a persisted artifact exists but is not
// parseable in its expected format. The store never repairs state silently;
// corruption is surfaced to the caller.
type CorruptStateError struct {
	// Path is the unparseable file.
	Path string
	// Err is the underlying parse error.
	Err error
}

// Error implements the error interface.
func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt checkpoint state at %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CorruptStateError) Unwrap() error {
	return e.Err
}
