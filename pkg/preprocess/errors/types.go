package errors

import "fmt"

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("HTTP %d at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// CasJobsError indicates a failed CasJobs operation.
type CasJobsError struct {
	Op      string
	JobID   int64
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CasJobsError) Error() string {
	if e.JobID != 0 {
		return fmt.Sprintf("casjobs %s (job %d): %s", e.Op, e.JobID, e.Message)
	}
	return fmt.Sprintf("casjobs %s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *CasJobsError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates an operation timed out.
type TimeoutError struct {
	Operation string
	Duration  string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}
