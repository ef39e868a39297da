package collection

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a collection does not exist on disk.
var ErrNotFound = errors.New("collection not found")

// ErrResourceBusy is returned when the per-collection lock could not be
// acquired within the bounded wait.
var ErrResourceBusy = errors.New("collection is locked by another invocation")

var errEmptyJobName = errors.New("job name is required")

// UnknownJobError reports a job name or identifier that is not present in a
// collection. Non-retryable.
type UnknownJobError struct {
	Name string
}

func (e *UnknownJobError) Error() string {
	return fmt.Sprintf("unknown job: %s", e.Name)
}

// DuplicateJobError reports an attempt to add a job name that already exists.
type DuplicateJobError struct {
	Name string
}

func (e *DuplicateJobError) Error() string {
	return fmt.Sprintf("job already exists: %s", e.Name)
}
