package notify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/goherd/pkg/collection"
	"github.com/fleetworks/goherd/pkg/finality"
)

func reportFixture(t *testing.T, failedOutput string) *collection.Collection {
	t.Helper()
	c := collection.New("exp1", "lr sweep")
	require.NoError(t, c.AddJob(&collection.LogicalJob{
		Name:       "train_a",
		Parameters: map[string]any{"algo": "a"},
		Primary:    collection.Submission{ID: "1", State: "FAILED", OutputPath: failedOutput},
	}))
	require.NoError(t, c.AddJob(&collection.LogicalJob{
		Name:       "train_b",
		Parameters: map[string]any{"algo": "b"},
		Primary:    collection.Submission{ID: "2", State: "COMPLETED"},
	}))
	return c
}

func TestBuildReportFailedJobsWithOutputTail(t *testing.T) {
	out := filepath.Join(t.TempDir(), "train_a.log")
	require.NoError(t, os.WriteFile(out, []byte("line1\nline2\nline3\n"), 0644))

	c := reportFixture(t, out)
	res := finality.Evaluate(c, finality.Input{})

	report, err := BuildReport(c, res, "2", ReportOptions{MinSupport: 1, TopK: 5, FailedTailLines: 2})
	require.NoError(t, err)

	assert.True(t, report.Terminal)
	assert.Equal(t, finality.TerminalFailed, report.Kind)
	assert.Equal(t, "2", report.TriggerJobID)

	require.Len(t, report.FailedJobs, 1)
	fj := report.FailedJobs[0]
	assert.Equal(t, "train_a", fj.JobName)
	assert.Equal(t, out, fj.OutputPath)
	assert.Equal(t, "line2\nline3", fj.OutputTail)

	assert.NotEmpty(t, report.Recommendations)
}

func TestBuildReportMissingOutputFile(t *testing.T) {
	c := reportFixture(t, "/nonexistent/path/train_a.log")
	res := finality.Evaluate(c, finality.Input{})

	report, err := BuildReport(c, res, "", ReportOptions{MinSupport: 1, TopK: 5, FailedTailLines: 10})
	require.NoError(t, err)

	require.Len(t, report.FailedJobs, 1)
	assert.Empty(t, report.FailedJobs[0].OutputTail)
}

func TestBuildReportAllCompleted(t *testing.T) {
	c := collection.New("clean", "")
	require.NoError(t, c.AddJob(&collection.LogicalJob{
		Name:    "a",
		Primary: collection.Submission{ID: "1", State: "COMPLETED"},
	}))
	res := finality.Evaluate(c, finality.Input{})

	report, err := BuildReport(c, res, "1", ReportOptions{MinSupport: 1, TopK: 5})
	require.NoError(t, err)

	assert.Equal(t, finality.TerminalCompleted, report.Kind)
	assert.Empty(t, report.FailedJobs)
	require.NotEmpty(t, report.Recommendations)
	assert.Contains(t, report.Recommendations[0], "no follow-up")
}

func TestBuildReportRiskSections(t *testing.T) {
	c := collection.New("risk", "")
	states := map[string]string{"a1": "FAILED", "a2": "FAILED", "b1": "COMPLETED", "b2": "COMPLETED"}
	algos := map[string]string{"a1": "x", "a2": "x", "b1": "y", "b2": "y"}
	for _, name := range []string{"a1", "a2", "b1", "b2"} {
		require.NoError(t, c.AddJob(&collection.LogicalJob{
			Name:       name,
			Parameters: map[string]any{"algo": algos[name]},
			Primary:    collection.Submission{ID: name + "-id", State: states[name]},
		}))
	}
	res := finality.Evaluate(c, finality.Input{})

	report, err := BuildReport(c, res, "", ReportOptions{MinSupport: 2, TopK: 5, FailedTailLines: 0})
	require.NoError(t, err)

	require.NotEmpty(t, report.TopRisky)
	assert.Equal(t, "x", report.TopRisky[0].Value)
	assert.Equal(t, 1.0, report.TopRisky[0].FailureRate)
	require.NotEmpty(t, report.TopStable)
	assert.Equal(t, "y", report.TopStable[0].Value)
}

func TestReadOutputTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\nd\n"), 0644))

	assert.Equal(t, "c\nd", ReadOutputTail(path, 2))
	assert.Equal(t, "a\nb\nc\nd", ReadOutputTail(path, 10))
	assert.Equal(t, "", ReadOutputTail(path, 0))
	assert.Equal(t, "", ReadOutputTail("/nope", 5))
}
