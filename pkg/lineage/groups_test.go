package lineage

import (
	"strings"
	"testing"

	"github.com/fleetworks/goherd/pkg/collection"
)

func groupsFixture(t *testing.T) *collection.Collection {
	t.Helper()
	c := collection.New("groups", "")
	jobs := []*collection.LogicalJob{
		{
			Name:    "a",
			Primary: collection.Submission{ID: "1", State: "FAILED"},
			Attempts: []collection.Attempt{
				{ID: "10", SubmittedAt: ts(10), SubmissionGroup: "g1"},
				{ID: "11", SubmittedAt: ts(40), SubmissionGroup: "g2"},
			},
		},
		{
			Name:    "b",
			Primary: collection.Submission{ID: "2", State: "FAILED"},
			Attempts: []collection.Attempt{
				{ID: "20", SubmittedAt: ts(15), SubmissionGroup: "g1"},
				{ID: "21", SubmittedAt: ts(5)},
			},
		},
	}
	for _, j := range jobs {
		if err := c.AddJob(j); err != nil {
			t.Fatalf("AddJob: %v", err)
		}
	}
	return c
}

func TestGroupsPartitionIsExhaustiveAndDisjoint(t *testing.T) {
	c := groupsFixture(t)

	groups := Groups(c)

	total := 0
	seen := make(map[string]bool)
	for _, g := range groups {
		if seen[g.Label] {
			t.Fatalf("duplicate group label %s", g.Label)
		}
		seen[g.Label] = true
		total += g.AttemptCount
	}
	if total != 4 {
		t.Fatalf("partition lost attempts: counted %d of 4", total)
	}
	if !seen[LegacyGroup] {
		t.Fatal("unlabeled attempt did not land in the legacy group")
	}
}

func TestGroupsOrderNewestFirstLegacyLast(t *testing.T) {
	c := groupsFixture(t)

	groups := Groups(c)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if groups[0].Label != "g2" || groups[1].Label != "g1" {
		t.Fatalf("labeled groups not ordered by last submission desc: %s, %s", groups[0].Label, groups[1].Label)
	}
	if groups[len(groups)-1].Label != LegacyGroup {
		t.Fatalf("legacy group must sort last, got %s", groups[len(groups)-1].Label)
	}
}

func TestGroupsAggregates(t *testing.T) {
	c := groupsFixture(t)

	var g1 GroupSummary
	for _, g := range Groups(c) {
		if g.Label == "g1" {
			g1 = g
			break
		}
	}
	if g1.Label == "" {
		t.Fatal("g1 missing")
	}
	if g1.AttemptCount != 2 || g1.JobCount != 2 {
		t.Fatalf("unexpected aggregates: %+v", g1)
	}
	if g1.FirstSubmittedAt == nil || !g1.FirstSubmittedAt.Equal(*ts(10)) {
		t.Fatalf("wrong first submission: %v", g1.FirstSubmittedAt)
	}
	if g1.LastSubmittedAt == nil || !g1.LastSubmittedAt.Equal(*ts(15)) {
		t.Fatalf("wrong last submission: %v", g1.LastSubmittedAt)
	}
}

func TestGroupsFreshAttemptNotInLegacyBucket(t *testing.T) {
	c := collection.New("fresh", "")
	if err := c.AddJob(&collection.LogicalJob{Name: "a", Primary: collection.Submission{ID: "1", State: "FAILED"}}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := c.AddAttempt("a", collection.Attempt{ID: "10", State: "PENDING"}); err != nil {
		t.Fatalf("AddAttempt: %v", err)
	}

	groups := Groups(c)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].Label == LegacyGroup {
		t.Fatal("attempt recorded without an explicit group fell into the legacy bucket")
	}
	if !strings.HasPrefix(groups[0].Label, "resubmit_") {
		t.Fatalf("expected generated label, got %q", groups[0].Label)
	}
}

func TestGroupsEmptyCollection(t *testing.T) {
	c := collection.New("empty", "")
	if got := Groups(c); len(got) != 0 {
		t.Fatalf("expected no groups, got %d", len(got))
	}
}
