// Package finality decides whether a collection has reached a terminal
// outcome worth reporting, and fingerprints terminal snapshots so repeat
// notifications can be suppressed.
package finality

import (
	"fmt"

	"github.com/fleetworks/goherd/pkg/collection"
	"github.com/fleetworks/goherd/pkg/lineage"
)

// Kind is the outcome of a finality evaluation.
type Kind string

const (
	NotTerminal       Kind = "not_terminal"
	TerminalCompleted Kind = "terminal_completed"
	TerminalFailed    Kind = "terminal_failed"
)

// Input carries the trigger context for one evaluation.
type Input struct {
	// TriggerJobID is the scheduler id of the job whose completion hook
	// invoked the evaluation. It enables the single-active-trigger fallback.
	TriggerJobID string

	// TriggerExitCode, when present, lets the fallback infer the trigger
	// job's outcome: 0 means completed, anything else failed.
	TriggerExitCode *int
}

// Result is a finality decision over one collection snapshot.
type Result struct {
	Kind Kind

	// Rows are the effective attempts the decision was made on, with any
	// trigger-fallback inference applied.
	Rows []lineage.Effective

	Counts collection.Summary

	// Ambiguous is set when the trigger fallback fired without an exit
	// code, so the trigger job's outcome had to be recorded as unknown and
	// the classification is conservative rather than observed.
	Ambiguous bool

	Warnings []string
}

// Terminal reports whether the collection has settled.
func (r Result) Terminal() bool { return r.Kind != NotTerminal }

// Evaluate runs the finality state machine over a collection snapshot.
//
// Resolution always uses latest-attempt semantics: a job whose resubmission
// succeeded is settled even if its original submission failed. The caller is
// responsible for refreshing scheduler state first (or deliberately skipping
// the refresh), so results may be stale by design when requested.
func Evaluate(c *collection.Collection, in Input) Result {
	rows := lineage.ResolveAll(c, lineage.ModeLatest, "")

	active := make([]int, 0, len(rows))
	for i, r := range rows {
		if !r.State.Terminal() {
			active = append(active, i)
		}
	}

	res := Result{Rows: rows}

	switch {
	case len(active) == 0:
		// Every job settled on its own.

	case len(active) == 1 && in.TriggerJobID != "" && ownsTrigger(c.Jobs[active[0]], in.TriggerJobID):
		// The only unsettled job is the one whose exit hook is running
		// right now; the scheduler just has not caught up. Infer its
		// outcome from the trigger exit code.
		row := &res.Rows[active[0]]
		switch {
		case in.TriggerExitCode == nil:
			row.State = collection.StateUnknown
			res.Ambiguous = true
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"trigger job %s has no settled scheduler state and no --trigger-exit-code was given; recording it as unknown and classifying conservatively",
				in.TriggerJobID))
		case *in.TriggerExitCode == 0:
			row.State = collection.StateCompleted
		default:
			row.State = collection.StateFailed
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"trigger job %s inferred failed from exit code %d",
				in.TriggerJobID, *in.TriggerExitCode))
		}

	default:
		res.Kind = NotTerminal
		res.Counts = lineage.Summarize(rows)
		return res
	}

	res.Counts = lineage.Summarize(res.Rows)
	res.Kind = classify(res.Rows)
	return res
}

// classify picks the terminal kind. In the ambiguous fallback the trigger
// row is unknown, so the decision rests on the other, observed rows: any
// settled failure classifies the collection as failed, otherwise completed.
func classify(rows []lineage.Effective) Kind {
	for _, r := range rows {
		if r.State == collection.StateFailed {
			return TerminalFailed
		}
	}
	return TerminalCompleted
}

func ownsTrigger(job *collection.LogicalJob, triggerID string) bool {
	if job.Primary.ID == triggerID {
		return true
	}
	return job.AttemptByID(triggerID) != nil
}
