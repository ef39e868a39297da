package analysis

import (
	"testing"

	"github.com/fleetworks/goherd/pkg/collection"
	"github.com/fleetworks/goherd/pkg/lineage"
)

func addJob(t *testing.T, c *collection.Collection, name, state string, params map[string]any) {
	t.Helper()
	err := c.AddJob(&collection.LogicalJob{
		Name:       name,
		Parameters: params,
		Primary:    collection.Submission{ID: name + "-id", State: state},
	})
	if err != nil {
		t.Fatalf("AddJob %s: %v", name, err)
	}
}

// Three jobs with algo=a (1 completed, 2 failed), three with algo=b
// (all completed), plus one still running.
func sweepFixture(t *testing.T) *collection.Collection {
	c := collection.New("sweep", "")
	addJob(t, c, "a1", "COMPLETED", map[string]any{"algo": "a", "lr": "0.1"})
	addJob(t, c, "a2", "FAILED", map[string]any{"algo": "a", "lr": "0.2"})
	addJob(t, c, "a3", "TIMEOUT", map[string]any{"algo": "a", "lr": "0.3"})
	addJob(t, c, "b1", "COMPLETED", map[string]any{"algo": "b", "lr": "0.1"})
	addJob(t, c, "b2", "COMPLETED", map[string]any{"algo": "b", "lr": "0.2"})
	addJob(t, c, "b3", "COMPLETED", map[string]any{"algo": "b", "lr": "0.3"})
	addJob(t, c, "c1", "RUNNING", map[string]any{"algo": "c"})
	return c
}

func findValue(r *Report, param, value string) *ValueStats {
	for _, p := range r.Parameters {
		if p.Param != param {
			continue
		}
		for i := range p.Values {
			if p.Values[i].Value == value {
				return &p.Values[i]
			}
		}
	}
	return nil
}

func TestAnalyzeFailureRates(t *testing.T) {
	c := sweepFixture(t)

	r, err := Analyze(c, Options{MinSupport: 3})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	a := findValue(r, "algo", "a")
	if a == nil {
		t.Fatal("algo=a missing from report")
	}
	if a.Total != 3 || a.Failed != 2 || a.Completed != 1 {
		t.Fatalf("algo=a counts wrong: %+v", a)
	}
	if a.LowSupport {
		t.Fatal("algo=a has 3 settled jobs, must not be low support")
	}
	if got, want := a.FailureRate, 2.0/3.0; got != want {
		t.Fatalf("algo=a failure rate = %v, want %v", got, want)
	}

	b := findValue(r, "algo", "b")
	if b == nil || b.FailureRate != 0 || b.CompletionRate != 1 {
		t.Fatalf("algo=b rates wrong: %+v", b)
	}
}

func TestAnalyzeLowSupportExcludedFromRanking(t *testing.T) {
	c := collection.New("small", "")
	addJob(t, c, "j1", "COMPLETED", map[string]any{"algo": "a"})
	addJob(t, c, "j2", "COMPLETED", map[string]any{"algo": "a"})
	addJob(t, c, "j3", "FAILED", map[string]any{"algo": "a"})

	// Default min support is 3: the value settles exactly 3 jobs and ranks.
	r, err := Analyze(c, Options{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if v := findValue(r, "algo", "a"); v == nil || v.LowSupport {
		t.Fatalf("3 settled jobs must rank at min support 3: %+v", v)
	}
	if len(r.TopRisky) != 1 {
		t.Fatalf("expected 1 ranked value, got %d", len(r.TopRisky))
	}

	// Raising min support pushes it below the threshold.
	r, err = Analyze(c, Options{MinSupport: 4})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	v := findValue(r, "algo", "a")
	if v == nil || !v.LowSupport {
		t.Fatalf("expected low support at threshold 4: %+v", v)
	}
	if len(r.TopRisky) != 0 || len(r.TopStable) != 0 {
		t.Fatal("low-support values must not rank")
	}
}

func TestAnalyzeActiveJobsNotSettled(t *testing.T) {
	c := collection.New("active", "")
	addJob(t, c, "j1", "COMPLETED", map[string]any{"algo": "a"})
	addJob(t, c, "j2", "FAILED", map[string]any{"algo": "a"})
	addJob(t, c, "j3", "RUNNING", map[string]any{"algo": "a"})
	addJob(t, c, "j4", "PENDING", map[string]any{"algo": "a"})

	r, err := Analyze(c, Options{MinSupport: 2})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	v := findValue(r, "algo", "a")
	if v == nil {
		t.Fatal("algo=a missing")
	}
	if v.Total != 4 || v.Running != 1 || v.Pending != 1 {
		t.Fatalf("state counts wrong: %+v", v)
	}
	if v.FailureRate != 0.5 {
		t.Fatalf("failure rate must cover settled jobs only, got %v", v.FailureRate)
	}
}

func TestAnalyzeRespectsAttemptMode(t *testing.T) {
	c := collection.New("lineage", "")
	addJob(t, c, "j1", "FAILED", map[string]any{"algo": "a"})
	addJob(t, c, "j2", "FAILED", map[string]any{"algo": "a"})
	if err := c.AddAttempt("j1", collection.Attempt{ID: "r1", State: "COMPLETED"}); err != nil {
		t.Fatalf("AddAttempt: %v", err)
	}
	if err := c.AddAttempt("j2", collection.Attempt{ID: "r2", State: "COMPLETED"}); err != nil {
		t.Fatalf("AddAttempt: %v", err)
	}

	latest, err := Analyze(c, Options{Mode: lineage.ModeLatest, MinSupport: 2})
	if err != nil {
		t.Fatalf("Analyze latest: %v", err)
	}
	if v := findValue(latest, "algo", "a"); v.FailureRate != 0 {
		t.Fatalf("latest mode must see resubmission outcomes: %+v", v)
	}

	primary, err := Analyze(c, Options{Mode: lineage.ModePrimary, MinSupport: 2})
	if err != nil {
		t.Fatalf("Analyze primary: %v", err)
	}
	if v := findValue(primary, "algo", "a"); v.FailureRate != 1 {
		t.Fatalf("primary mode must see original outcomes: %+v", v)
	}
}

func TestAnalyzeRankingDeterministic(t *testing.T) {
	c := collection.New("ties", "")
	// Both values fail at 100% over 2 settled jobs; value order breaks the tie.
	addJob(t, c, "x1", "FAILED", map[string]any{"algo": "x"})
	addJob(t, c, "x2", "FAILED", map[string]any{"algo": "x"})
	addJob(t, c, "y1", "FAILED", map[string]any{"algo": "y"})
	addJob(t, c, "y2", "FAILED", map[string]any{"algo": "y"})

	r, err := Analyze(c, Options{MinSupport: 2})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(r.TopRisky) != 2 {
		t.Fatalf("expected 2 ranked values, got %d", len(r.TopRisky))
	}
	if r.TopRisky[0].Value != "x" || r.TopRisky[1].Value != "y" {
		t.Fatalf("ties must break by value order: %s, %s", r.TopRisky[0].Value, r.TopRisky[1].Value)
	}
}

func TestAnalyzeParamFilterAndSkipped(t *testing.T) {
	c := sweepFixture(t)

	r, err := Analyze(c, Options{Params: []string{"algo", "nope"}, MinSupport: 3})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(r.Parameters) != 1 || r.Parameters[0].Param != "algo" {
		t.Fatalf("param filter not applied: %+v", r.Parameters)
	}
	if len(r.SkippedParams) != 1 || r.SkippedParams[0] != "nope" {
		t.Fatalf("absent param not reported as skipped: %v", r.SkippedParams)
	}
}

func TestAnalyzeTopKTruncation(t *testing.T) {
	c := sweepFixture(t)

	r, err := Analyze(c, Options{MinSupport: 1, TopK: 1})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(r.TopRisky) != 1 || len(r.TopStable) != 1 {
		t.Fatalf("top-k not applied: risky=%d stable=%d", len(r.TopRisky), len(r.TopStable))
	}
}

func TestAnalyzeInvalidOptions(t *testing.T) {
	c := sweepFixture(t)

	if _, err := Analyze(c, Options{Mode: "newest"}); err == nil {
		t.Fatal("expected error for invalid mode")
	}
	if _, err := Analyze(c, Options{MinSupport: -1}); err == nil {
		t.Fatal("expected error for negative min support")
	}
	if _, err := Analyze(c, Options{TopK: -1}); err == nil {
		t.Fatal("expected error for negative top k")
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{"sgd", "sgd"},
		{true, "true"},
		{42, "42"},
		{0.25, "0.25"},
		{[]any{"a", "b"}, `["a","b"]`},
		{map[string]any{"k": 1}, `{"k":1}`},
	}
	for _, tc := range cases {
		if got := FormatValue(tc.in); got != tc.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
