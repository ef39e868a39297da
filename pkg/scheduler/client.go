// Package scheduler is the narrow interface to the external batch scheduler.
// The engine only ever asks one question: what is the current state of these
// job identifiers. Submission, templating, and scheduler-specific wire
// protocols live outside this module.
package scheduler

import (
	"context"
	"fmt"
	"time"
)

// JobInfo is the raw state reported by the scheduler for one identifier.
type JobInfo struct {
	ID          string
	State       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Client queries current scheduler state for a set of job identifiers.
// Identifiers unknown to the scheduler are simply absent from the result
// map; that absence is meaningful (purged history) and must not be an error.
type Client interface {
	QueryStates(ctx context.Context, ids []string) (map[string]JobInfo, error)
}

// QueryError wraps a transport or command failure from the scheduler
// client. A refresh seeing this aborts and the caller falls back to the
// last persisted state with a warning.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("scheduler query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
