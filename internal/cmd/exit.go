package cmd

import (
	"errors"

	"github.com/fleetworks/goherd/pkg/collection"
)

// codedError carries an explicit process exit code through cobra's error
// return path.
type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

// notFoundErr marks an error as a resolution failure (exit code 2).
func notFoundErr(err error) error {
	return &codedError{err: err, code: 2}
}

// exitCode maps a command error to the process exit code. Resolution
// failures exit 2, everything else exits 1.
func exitCode(err error) int {
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	if errors.Is(err, collection.ErrNotFound) {
		return 2
	}
	var unknown *collection.UnknownJobError
	if errors.As(err, &unknown) {
		return 2
	}
	return 1
}
