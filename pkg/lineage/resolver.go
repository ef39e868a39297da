// Package lineage derives the effective view of a collection: one
// representative attempt per logical job, plus submission-group summaries.
// Everything here is pure computation over loaded collection records; no I/O.
package lineage

import (
	"time"

	"github.com/fleetworks/goherd/pkg/collection"
)

// Mode selects which attempt represents a logical job.
type Mode string

const (
	// ModePrimary always reports the original submission.
	ModePrimary Mode = "primary"
	// ModeLatest reports the most recently submitted attempt, falling back
	// to the primary when no attempt qualifies.
	ModeLatest Mode = "latest"
)

// ValidMode reports whether m is a supported attempt mode.
func ValidMode(m Mode) bool {
	return m == ModePrimary || m == ModeLatest
}

// LegacyGroup is the read-time bucket for attempts recorded before
// submission groups existed. It is computed, never persisted.
const LegacyGroup = "ungrouped"

// Source tells which record an effective attempt came from.
type Source string

const (
	SourcePrimary Source = "primary"
	SourceAttempt Source = "attempt"
)

// Effective is the resolved representative attempt for one logical job.
type Effective struct {
	JobName         string           `json:"job_name"`
	ID              string           `json:"id"`
	State           collection.State `json:"state"`
	RawState        string           `json:"raw_state,omitempty"`
	SubmittedAt     *time.Time       `json:"submitted_at,omitempty"`
	Source          Source           `json:"source"`
	SubmissionGroup string           `json:"submission_group,omitempty"`

	// AttemptIndex is the position in the job's attempt sequence, or -1
	// when the primary submission was selected.
	AttemptIndex int `json:"attempt_index"`

	// NoAttemptInGroup marks an empty result for a group-scoped latest
	// resolution. It is a signal, not an error: the job simply has no data
	// for the requested group.
	NoAttemptInGroup bool `json:"no_attempt_in_group,omitempty"`
}

// Resolve computes the effective attempt of a logical job under the given
// mode and optional submission-group scope.
//
// Ties on submitted_at are broken by append order, last appended wins.
// Attempts share coarse timestamps often enough that this must be
// deterministic.
func Resolve(job *collection.LogicalJob, mode Mode, group string) Effective {
	if mode == ModePrimary {
		return fromPrimary(job)
	}

	best := -1
	for i, a := range job.Attempts {
		if group != "" && !inGroup(a, group) {
			continue
		}
		if best < 0 || !submittedBefore(a.SubmittedAt, job.Attempts[best].SubmittedAt) {
			best = i
		}
	}

	if best < 0 {
		if group != "" {
			return Effective{
				JobName:          job.Name,
				State:            collection.StateUnknown,
				AttemptIndex:     -1,
				NoAttemptInGroup: true,
			}
		}
		return fromPrimary(job)
	}

	a := job.Attempts[best]
	return Effective{
		JobName:         job.Name,
		ID:              a.ID,
		State:           collection.NormalizeState(a.State),
		RawState:        a.State,
		SubmittedAt:     a.SubmittedAt,
		Source:          SourceAttempt,
		SubmissionGroup: groupLabel(a),
		AttemptIndex:    best,
	}
}

// ResolveAll resolves every logical job in the collection, preserving the
// collection's display order.
func ResolveAll(c *collection.Collection, mode Mode, group string) []Effective {
	out := make([]Effective, 0, len(c.Jobs))
	for _, j := range c.Jobs {
		out = append(out, Resolve(j, mode, group))
	}
	return out
}

// Summarize counts resolved jobs per normalized state. Jobs with no data for
// the requested group count as unknown.
func Summarize(rows []Effective) collection.Summary {
	var s collection.Summary
	for _, r := range rows {
		s.Count(r.State)
	}
	return s
}

func fromPrimary(job *collection.LogicalJob) Effective {
	return Effective{
		JobName:      job.Name,
		ID:           job.Primary.ID,
		State:        collection.NormalizeState(job.Primary.State),
		RawState:     job.Primary.State,
		SubmittedAt:  job.Primary.SubmittedAt,
		Source:       SourcePrimary,
		AttemptIndex: -1,
	}
}

func groupLabel(a collection.Attempt) string {
	if a.SubmissionGroup == "" {
		return LegacyGroup
	}
	return a.SubmissionGroup
}

func inGroup(a collection.Attempt, group string) bool {
	return groupLabel(a) == group
}

// submittedBefore reports whether a strictly precedes b. A nil timestamp
// sorts before any concrete one, so labeled-but-undated attempts lose to
// dated ones and equal timestamps fall through to append order.
func submittedBefore(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.Before(*b)
}
