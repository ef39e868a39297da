package lineage

import (
	"sort"
	"time"

	"github.com/fleetworks/goherd/pkg/collection"
)

// GroupSummary aggregates the attempts sharing one submission-group label.
type GroupSummary struct {
	Label            string     `json:"submission_group" yaml:"submission_group"`
	AttemptCount     int        `json:"attempt_count" yaml:"attempt_count"`
	JobCount         int        `json:"job_count" yaml:"job_count"`
	FirstSubmittedAt *time.Time `json:"first_submitted_at,omitempty" yaml:"first_submitted_at,omitempty"`
	LastSubmittedAt  *time.Time `json:"last_submitted_at,omitempty" yaml:"last_submitted_at,omitempty"`
}

// Groups partitions every attempt in the collection by submission-group
// label. The partition is exhaustive and disjoint: unlabeled attempts join
// the legacy bucket at read time, persisted records are never rewritten.
//
// Output is ordered by last submission descending for predictable display,
// with the legacy bucket pinned last regardless of its timestamps.
func Groups(c *collection.Collection) []GroupSummary {
	byLabel := make(map[string]*GroupSummary)
	jobsSeen := make(map[string]map[string]struct{})

	for _, job := range c.Jobs {
		for _, a := range job.Attempts {
			label := groupLabel(a)
			g := byLabel[label]
			if g == nil {
				g = &GroupSummary{Label: label}
				byLabel[label] = g
				jobsSeen[label] = make(map[string]struct{})
			}
			g.AttemptCount++
			if _, ok := jobsSeen[label][job.Name]; !ok {
				jobsSeen[label][job.Name] = struct{}{}
				g.JobCount++
			}
			if a.SubmittedAt != nil {
				if g.FirstSubmittedAt == nil || a.SubmittedAt.Before(*g.FirstSubmittedAt) {
					g.FirstSubmittedAt = a.SubmittedAt
				}
				if g.LastSubmittedAt == nil || a.SubmittedAt.After(*g.LastSubmittedAt) {
					g.LastSubmittedAt = a.SubmittedAt
				}
			}
		}
	}

	out := make([]GroupSummary, 0, len(byLabel))
	for _, g := range byLabel {
		out = append(out, *g)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if (out[i].Label == LegacyGroup) != (out[j].Label == LegacyGroup) {
			return out[j].Label == LegacyGroup
		}
		li, lj := out[i].LastSubmittedAt, out[j].LastSubmittedAt
		switch {
		case li == nil && lj == nil:
			return out[i].Label < out[j].Label
		case li == nil:
			return false
		case lj == nil:
			return true
		case !li.Equal(*lj):
			return li.After(*lj)
		default:
			return out[i].Label < out[j].Label
		}
	})

	return out
}
