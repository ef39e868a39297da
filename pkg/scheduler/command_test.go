package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCommandClientRunsConfiguredCommand(t *testing.T) {
	// The trailing comma-joined id list lands in $0, the script ignores it.
	client := &CommandClient{
		Argv: []string{"sh", "-c", `printf '1001 COMPLETED\n1002 RUNNING\n'`},
	}

	states, err := client.QueryStates(context.Background(), []string{"1001", "1002", "1003"})
	if err != nil {
		t.Fatalf("QueryStates: %v", err)
	}
	if states["1001"].State != "COMPLETED" || states["1002"].State != "RUNNING" {
		t.Fatalf("unexpected states: %+v", states)
	}
	if _, ok := states["1003"]; ok {
		t.Fatal("unreported id must be absent, not present")
	}
}

func TestCommandClientCommandFailure(t *testing.T) {
	client := &CommandClient{Argv: []string{"sh", "-c", "exit 3"}}

	_, err := client.QueryStates(context.Background(), []string{"1001"})
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryError, got %v", err)
	}
}

func TestCommandClientTimeout(t *testing.T) {
	client := &CommandClient{
		Argv:    []string{"sh", "-c", "sleep 5"},
		Timeout: 50 * time.Millisecond,
	}

	start := time.Now()
	_, err := client.QueryStates(context.Background(), []string{"1001"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout not enforced")
	}
}

func TestCommandClientUnconfigured(t *testing.T) {
	client := &CommandClient{}
	_, err := client.QueryStates(context.Background(), []string{"1001"})
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryError, got %v", err)
	}
}

func TestCommandClientNoIDs(t *testing.T) {
	client := &CommandClient{Argv: []string{"sh", "-c", "exit 1"}}
	states, err := client.QueryStates(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty id list must not run the command: %v", err)
	}
	if len(states) != 0 {
		t.Fatalf("expected empty result, got %v", states)
	}
}
