package finality

import (
	"strings"
	"testing"

	"github.com/fleetworks/goherd/pkg/collection"
)

func addJob(t *testing.T, c *collection.Collection, name, id, state string) {
	t.Helper()
	err := c.AddJob(&collection.LogicalJob{
		Name:    name,
		Primary: collection.Submission{ID: id, State: state},
	})
	if err != nil {
		t.Fatalf("AddJob %s: %v", name, err)
	}
}

func intp(v int) *int { return &v }

func TestEvaluateAllSettledCompleted(t *testing.T) {
	c := collection.New("c", "")
	addJob(t, c, "a", "1", "COMPLETED")
	addJob(t, c, "b", "2", "COMPLETED")

	res := Evaluate(c, Input{})
	if res.Kind != TerminalCompleted {
		t.Fatalf("expected terminal_completed, got %s", res.Kind)
	}
	if !res.Terminal() || res.Ambiguous {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestEvaluateAnyFailedClassifiesFailed(t *testing.T) {
	c := collection.New("c", "")
	addJob(t, c, "a", "1", "COMPLETED")
	addJob(t, c, "b", "2", "TIMEOUT")

	res := Evaluate(c, Input{})
	if res.Kind != TerminalFailed {
		t.Fatalf("expected terminal_failed, got %s", res.Kind)
	}
	if res.Counts.Failed != 1 || res.Counts.Completed != 1 {
		t.Fatalf("counts wrong: %+v", res.Counts)
	}
}

func TestEvaluateActiveJobsNotTerminal(t *testing.T) {
	c := collection.New("c", "")
	addJob(t, c, "a", "1", "COMPLETED")
	addJob(t, c, "b", "2", "RUNNING")

	res := Evaluate(c, Input{})
	if res.Kind != NotTerminal || res.Terminal() {
		t.Fatalf("expected not terminal, got %s", res.Kind)
	}
}

func TestEvaluateUnknownStateIsActive(t *testing.T) {
	c := collection.New("c", "")
	addJob(t, c, "a", "1", "COMPLETED")
	addJob(t, c, "b", "2", "")

	res := Evaluate(c, Input{})
	if res.Kind != NotTerminal {
		t.Fatalf("unknown state must block terminality, got %s", res.Kind)
	}
	if res.Counts.Unknown != 1 {
		t.Fatalf("counts wrong: %+v", res.Counts)
	}
}

func TestEvaluateResubmissionSettlesJob(t *testing.T) {
	c := collection.New("c", "")
	addJob(t, c, "a", "1", "FAILED")
	addJob(t, c, "b", "2", "COMPLETED")
	if err := c.AddAttempt("a", collection.Attempt{ID: "10", State: "COMPLETED", SubmissionGroup: "g1"}); err != nil {
		t.Fatalf("AddAttempt: %v", err)
	}

	res := Evaluate(c, Input{TriggerJobID: "2"})
	if res.Kind != TerminalCompleted {
		t.Fatalf("resubmission outcome must settle the job: %s", res.Kind)
	}
}

func TestEvaluateTriggerFallbackExitZero(t *testing.T) {
	c := collection.New("c", "")
	addJob(t, c, "a", "1", "PENDING")
	addJob(t, c, "b", "2", "COMPLETED")

	res := Evaluate(c, Input{TriggerJobID: "1", TriggerExitCode: intp(0)})
	if res.Kind != TerminalCompleted {
		t.Fatalf("exit 0 must infer completed, got %s", res.Kind)
	}
	if res.Ambiguous {
		t.Fatal("exit code supplied, must not be ambiguous")
	}
}

func TestEvaluateTriggerFallbackNonzeroExit(t *testing.T) {
	c := collection.New("c", "")
	addJob(t, c, "a", "1", "PENDING")
	addJob(t, c, "b", "2", "COMPLETED")

	res := Evaluate(c, Input{TriggerJobID: "1", TriggerExitCode: intp(17)})
	if res.Kind != TerminalFailed {
		t.Fatalf("exit 17 must infer failed, got %s", res.Kind)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("inferred failure must carry a warning")
	}
}

func TestEvaluateTriggerFallbackNoExitCodeAmbiguous(t *testing.T) {
	c := collection.New("c", "")
	addJob(t, c, "a", "1", "PENDING")
	addJob(t, c, "b", "2", "COMPLETED")

	res := Evaluate(c, Input{TriggerJobID: "1"})
	if !res.Ambiguous {
		t.Fatal("missing exit code must flag the result ambiguous")
	}
	if res.Kind != TerminalCompleted {
		t.Fatalf("no other failure: conservative classification must be completed, got %s", res.Kind)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "trigger-exit-code") {
			found = true
		}
	}
	if !found {
		t.Fatalf("warning must name the missing flag: %v", res.Warnings)
	}
}

func TestEvaluateAmbiguousWithOtherFailure(t *testing.T) {
	c := collection.New("c", "")
	addJob(t, c, "a", "1", "PENDING")
	addJob(t, c, "b", "2", "FAILED")

	res := Evaluate(c, Input{TriggerJobID: "1"})
	if !res.Ambiguous || res.Kind != TerminalFailed {
		t.Fatalf("another settled failure must classify failed: %+v", res)
	}
}

func TestEvaluateFallbackNeedsTriggerOwnership(t *testing.T) {
	c := collection.New("c", "")
	addJob(t, c, "a", "1", "PENDING")
	addJob(t, c, "b", "2", "COMPLETED")

	// Trigger id belongs to no job in the collection: no fallback.
	res := Evaluate(c, Input{TriggerJobID: "999", TriggerExitCode: intp(0)})
	if res.Kind != NotTerminal {
		t.Fatalf("fallback must not fire for foreign trigger ids, got %s", res.Kind)
	}
}

func TestEvaluateFallbackMatchesAttemptID(t *testing.T) {
	c := collection.New("c", "")
	addJob(t, c, "a", "1", "FAILED")
	addJob(t, c, "b", "2", "COMPLETED")
	if err := c.AddAttempt("a", collection.Attempt{ID: "10", State: "PENDING", SubmissionGroup: "g1"}); err != nil {
		t.Fatalf("AddAttempt: %v", err)
	}

	res := Evaluate(c, Input{TriggerJobID: "10", TriggerExitCode: intp(0)})
	if res.Kind != TerminalCompleted {
		t.Fatalf("fallback must match resubmission ids, got %s", res.Kind)
	}
}

func TestEvaluateTwoActiveJobsNoFallback(t *testing.T) {
	c := collection.New("c", "")
	addJob(t, c, "a", "1", "PENDING")
	addJob(t, c, "b", "2", "RUNNING")

	res := Evaluate(c, Input{TriggerJobID: "1", TriggerExitCode: intp(0)})
	if res.Kind != NotTerminal {
		t.Fatalf("fallback requires exactly one active job, got %s", res.Kind)
	}
}

func TestEvaluateEmptyCollectionIsCompleted(t *testing.T) {
	c := collection.New("empty", "")
	res := Evaluate(c, Input{})
	if res.Kind != TerminalCompleted {
		t.Fatalf("empty collection settles as completed, got %s", res.Kind)
	}
}
