package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fleetworks/goherd/pkg/collection"
)

// fakeClient serves canned states and records the batches it was asked for.
type fakeClient struct {
	mu      sync.Mutex
	states  map[string]JobInfo
	batches [][]string
	err     error
}

func (f *fakeClient) QueryStates(_ context.Context, ids []string) (map[string]JobInfo, error) {
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), ids...))
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]JobInfo, len(ids))
	for _, id := range ids {
		if info, ok := f.states[id]; ok {
			out[id] = info
		}
	}
	return out, nil
}

func refreshFixture(t *testing.T, n int) *collection.Collection {
	t.Helper()
	c := collection.New("c", "")
	for i := 0; i < n; i++ {
		name := string(rune('a' + i%26))
		if i >= 26 {
			name = name + string(rune('0'+i/26))
		}
		err := c.AddJob(&collection.LogicalJob{
			Name:    name,
			Primary: collection.Submission{ID: jobID(i), State: "RUNNING"},
		})
		if err != nil {
			t.Fatalf("AddJob: %v", err)
		}
	}
	return c
}

func jobID(i int) string {
	return "10" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}

func TestRefreshAppliesStates(t *testing.T) {
	c := refreshFixture(t, 2)
	client := &fakeClient{states: map[string]JobInfo{
		jobID(0): {ID: jobID(0), State: "COMPLETED"},
		jobID(1): {ID: jobID(1), State: "FAILED"},
	}}

	res, err := Refresh(context.Background(), client, c, RefreshOptions{})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Queried != 2 || res.Changed != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if c.Jobs[0].Primary.State != "COMPLETED" || c.Jobs[1].Primary.State != "FAILED" {
		t.Fatalf("states not applied: %s, %s", c.Jobs[0].Primary.State, c.Jobs[1].Primary.State)
	}
}

func TestRefreshBatches(t *testing.T) {
	c := refreshFixture(t, 7)
	client := &fakeClient{states: map[string]JobInfo{}}

	_, err := Refresh(context.Background(), client, c, RefreshOptions{BatchSize: 3, Concurrency: 2})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.batches) != 3 {
		t.Fatalf("expected 3 batches for 7 ids at size 3, got %d", len(client.batches))
	}
	total := 0
	for _, b := range client.batches {
		if len(b) > 3 {
			t.Fatalf("batch exceeds size: %v", b)
		}
		total += len(b)
	}
	if total != 7 {
		t.Fatalf("batches lost ids: %d of 7", total)
	}
}

func TestRefreshQueryFailureLeavesCollectionUntouched(t *testing.T) {
	c := refreshFixture(t, 4)
	client := &fakeClient{err: &QueryError{Err: errors.New("sacct unreachable")}}

	_, err := Refresh(context.Background(), client, c, RefreshOptions{BatchSize: 2})
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryError, got %v", err)
	}
	for _, j := range c.Jobs {
		if j.Primary.State != "RUNNING" {
			t.Fatalf("failed refresh mutated the collection: %s", j.Primary.State)
		}
	}
}

func TestRefreshAbsentIdsAreUnchanged(t *testing.T) {
	c := refreshFixture(t, 2)
	// Scheduler only resolves the first id; the second stays as persisted.
	client := &fakeClient{states: map[string]JobInfo{
		jobID(0): {ID: jobID(0), State: "COMPLETED"},
	}}

	res, err := Refresh(context.Background(), client, c, RefreshOptions{})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Changed != 1 {
		t.Fatalf("expected 1 change, got %d", res.Changed)
	}
	if c.Jobs[1].Primary.State != "RUNNING" {
		t.Fatalf("absent id must keep persisted state, got %s", c.Jobs[1].Primary.State)
	}
	if len(res.Unmatched) != 1 || res.Unmatched[0] != jobID(1) {
		t.Fatalf("absent id must be reported unmatched: %v", res.Unmatched)
	}
}

func TestRefreshCoversAttemptIDs(t *testing.T) {
	c := refreshFixture(t, 1)
	if err := c.AddAttempt(c.Jobs[0].Name, collection.Attempt{ID: "2001", State: "PENDING", SubmissionGroup: "g1"}); err != nil {
		t.Fatalf("AddAttempt: %v", err)
	}
	client := &fakeClient{states: map[string]JobInfo{
		"2001": {ID: "2001", State: "COMPLETED"},
	}}

	res, err := Refresh(context.Background(), client, c, RefreshOptions{})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Queried != 2 {
		t.Fatalf("attempt ids must be queried too, queried=%d", res.Queried)
	}
	if c.Jobs[0].Attempts[0].State != "COMPLETED" {
		t.Fatalf("attempt state not applied: %s", c.Jobs[0].Attempts[0].State)
	}
}

func TestRefreshEmptyCollection(t *testing.T) {
	c := collection.New("empty", "")
	client := &fakeClient{}

	res, err := Refresh(context.Background(), client, c, RefreshOptions{})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Queried != 0 || len(client.batches) != 0 {
		t.Fatalf("empty collection must not query: %+v", res)
	}
}

func TestParseStates(t *testing.T) {
	out := "1001 COMPLETED 2026-03-14T09:00:00Z 2026-03-14T10:00:00Z\n" +
		"1002 RUNNING 2026-03-14T09:30:00 -\n" +
		"1003 FAILED unknown unknown\n" +
		"garbage\n"

	states := parseStates(out)
	if len(states) != 3 {
		t.Fatalf("expected 3 parsed lines, got %d", len(states))
	}
	if states["1001"].StartedAt == nil || states["1001"].CompletedAt == nil {
		t.Fatal("RFC3339 stamps not parsed")
	}
	if states["1002"].StartedAt == nil {
		t.Fatal("second-precision stamp not parsed")
	}
	if states["1002"].CompletedAt != nil {
		t.Fatal("dash placeholder must parse as absent")
	}
	if states["1003"].StartedAt != nil {
		t.Fatal("unknown placeholder must parse as absent")
	}
}
