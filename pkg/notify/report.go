package notify

import (
	"fmt"
	"os"
	"strings"

	"github.com/fleetworks/goherd/pkg/analysis"
	"github.com/fleetworks/goherd/pkg/collection"
	"github.com/fleetworks/goherd/pkg/finality"
	"github.com/fleetworks/goherd/pkg/lineage"
)

// FailedJob is one failed logical job in a terminal report.
type FailedJob struct {
	JobName    string `json:"job_name"`
	ID         string `json:"id,omitempty"`
	RawState   string `json:"raw_state,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	OutputTail string `json:"output_tail,omitempty"`
}

// Report is the terminal-collection summary embedded in collection-final
// payloads.
type Report struct {
	Terminal        bool                  `json:"terminal"`
	Kind            finality.Kind         `json:"kind"`
	Counts          collection.Summary    `json:"counts"`
	TriggerJobID    string                `json:"trigger_job_id,omitempty"`
	FailedJobs      []FailedJob           `json:"failed_jobs,omitempty"`
	TopRisky        []analysis.ValueStats `json:"top_risky_values"`
	TopStable       []analysis.ValueStats `json:"top_stable_values"`
	Recommendations []string              `json:"recommendations,omitempty"`
}

// ReportOptions carry the collection-final report knobs from config.
type ReportOptions struct {
	MinSupport int
	TopK       int

	// FailedTailLines is how many trailing output lines to attach per
	// failed job. Zero disables tails.
	FailedTailLines int
}

// BuildReport assembles the terminal report from an already-computed
// finality result. Analysis always runs in latest mode to match the
// finality decision.
func BuildReport(c *collection.Collection, res finality.Result, triggerJobID string, opts ReportOptions) (*Report, error) {
	ar, err := analysis.Analyze(c, analysis.Options{
		Mode:       lineage.ModeLatest,
		MinSupport: opts.MinSupport,
		TopK:       opts.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze collection: %w", err)
	}

	report := &Report{
		Terminal:     res.Terminal(),
		Kind:         res.Kind,
		Counts:       res.Counts,
		TriggerJobID: triggerJobID,
		TopRisky:     ar.TopRisky,
		TopStable:    ar.TopStable,
	}

	for _, row := range res.Rows {
		if row.State != collection.StateFailed {
			continue
		}
		job := c.Job(row.JobName)
		fj := FailedJob{
			JobName:  row.JobName,
			ID:       row.ID,
			RawState: row.RawState,
		}
		if job != nil && job.Primary.OutputPath != "" {
			fj.OutputPath = job.Primary.OutputPath
			if opts.FailedTailLines > 0 {
				fj.OutputTail = ReadOutputTail(job.Primary.OutputPath, opts.FailedTailLines)
			}
		}
		report.FailedJobs = append(report.FailedJobs, fj)
	}

	report.Recommendations = recommendations(report, ar)
	return report, nil
}

func recommendations(r *Report, ar *analysis.Report) []string {
	var recs []string

	if n := len(r.FailedJobs); n > 0 {
		recs = append(recs, fmt.Sprintf("%d job(s) failed; inspect their output tails before resubmitting", n))
	}
	if len(ar.TopRisky) > 0 && ar.TopRisky[0].FailureRate > 0 {
		v := ar.TopRisky[0]
		recs = append(recs, fmt.Sprintf(
			"parameter %s=%s shows the highest failure rate (%.0f%% of %d settled job(s))",
			v.Param, v.Value, v.FailureRate*100, v.Completed+v.Failed))
	}
	if r.Counts.Unknown > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d job(s) could not be resolved to a scheduler state; their outcome is unconfirmed", r.Counts.Unknown))
	}
	if len(recs) == 0 {
		recs = append(recs, "all jobs completed; no follow-up needed")
	}
	return recs
}

// ReadOutputTail returns the trailing lines of an output file, best effort.
// Missing or unreadable files yield an empty tail, never an error: a
// notification must not fail because a log was cleaned up.
func ReadOutputTail(path string, lines int) string {
	if lines <= 0 {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	all := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(all) > lines {
		all = all[len(all)-lines:]
	}
	return strings.Join(all, "\n")
}
