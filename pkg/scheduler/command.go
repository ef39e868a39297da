package scheduler

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandClient queries scheduler state by running a configured command.
//
// The command receives the queried identifiers as one comma-separated
// trailing argument and must print one line per resolved identifier:
//
//	<id> <state> [<started_at>] [<completed_at>]
//
// Timestamps are RFC3339; "Unknown" or "-" placeholders are skipped.
// Identifiers the command does not print are treated as unresolvable.
// This keeps the engine scheduler-agnostic: a site wraps its own sacct,
// qstat, or bkill equivalent behind whatever printing shim it likes.
type CommandClient struct {
	// Argv is the command and its fixed arguments.
	Argv []string

	// Timeout bounds one command invocation. Zero means no extra bound
	// beyond the caller's context.
	Timeout time.Duration
}

func (c *CommandClient) QueryStates(ctx context.Context, ids []string) (map[string]JobInfo, error) {
	if len(c.Argv) == 0 {
		return nil, &QueryError{Err: fmt.Errorf("scheduler query command is not configured")}
	}
	if len(ids) == 0 {
		return map[string]JobInfo{}, nil
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := append(append([]string(nil), c.Argv[1:]...), strings.Join(ids, ","))
	cmd := exec.CommandContext(ctx, c.Argv[0], args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, &QueryError{Err: fmt.Errorf("%s: %w", c.Argv[0], err)}
	}

	return parseStates(string(out)), nil
}

func parseStates(out string) map[string]JobInfo {
	result := make(map[string]JobInfo)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		info := JobInfo{ID: fields[0], State: fields[1]}
		if len(fields) > 2 {
			info.StartedAt = parseStamp(fields[2])
		}
		if len(fields) > 3 {
			info.CompletedAt = parseStamp(fields[3])
		}
		result[info.ID] = info
	}
	return result
}

func parseStamp(s string) *time.Time {
	if s == "" || s == "-" || strings.EqualFold(s, "unknown") {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
