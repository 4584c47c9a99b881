package preprocess

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline construction and execution.
var (
	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrNoStages indicates Run() was called on an empty pipeline.
	ErrNoStages = errors.New("pipeline has no stages")

	// ErrStageName indicates a stage was added without a name.
	ErrStageName = errors.New("stage name cannot be empty")

	// ErrNilStageFunc indicates a stage was added without a function.
	ErrNilStageFunc = errors.New("stage function cannot be nil")
)

// StageError wraps an error with stage context.
// It identifies which stage failed.
type StageError struct {
	// Stage is the name of the stage that failed.
	Stage string
	// Err is the underlying error from the stage.
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StageError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from stage execution.
// It includes the stack trace for debugging.
type PanicError struct {
	// Stage is the name of the stage that panicked.
	Stage string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("stage %s panicked: %v", e.Stage, e.Value)
}

// CancellationError reports where execution was cancelled.
type CancellationError struct {
	// Stage is the stage that was about to execute or was executing.
	Stage string
	// Cause is the underlying cancellation cause (context.Canceled or
	// context.DeadlineExceeded).
	Cause error
	// WasExecuting is true if cancellation occurred during stage execution.
	WasExecuting bool
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.WasExecuting {
		return fmt.Sprintf("cancelled during stage %s: %v", e.Stage, e.Cause)
	}
	return fmt.Sprintf("cancelled before stage %s: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}
