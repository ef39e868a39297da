package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Summary status values attached to collection-final payloads.
const (
	SummaryAvailable   = "available"
	SummaryUnavailable = "unavailable"
	SummaryDisabled    = "disabled"
)

// Summarizer turns a payload into a short human summary for chat routes.
// Implementations must treat failure as advisory: a broken summarizer
// never blocks delivery.
type Summarizer interface {
	Summarize(ctx context.Context, p *Payload) (string, error)
}

// CommandSummarizer shells out to a configured command, writing the
// payload as JSON on stdin and reading the summary from stdout.
type CommandSummarizer struct {
	Argv    []string
	Timeout time.Duration
}

func (s *CommandSummarizer) Summarize(ctx context.Context, p *Payload) (string, error) {
	if len(s.Argv) == 0 {
		return "", fmt.Errorf("summary command not configured")
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.Argv[0], s.Argv[1:]...)
	cmd.Stdin = bytes.NewReader(body)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("summary command: %w: %s", err, msg)
		}
		return "", fmt.Errorf("summary command: %w", err)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", fmt.Errorf("summary command produced no output")
	}
	return out, nil
}

// ApplySummary runs the summarizer, if any, and stamps the payload with
// the result. A nil summarizer marks the summary disabled. Errors are
// reduced to a warning string so callers can log and continue.
func ApplySummary(ctx context.Context, s Summarizer, p *Payload) (warning string) {
	if s == nil {
		p.SummaryStatus = SummaryDisabled
		return ""
	}
	out, err := s.Summarize(ctx, p)
	if err != nil {
		p.SummaryStatus = SummaryUnavailable
		return fmt.Sprintf("summary unavailable: %v", err)
	}
	p.Summary = out
	p.SummaryStatus = SummaryAvailable
	return ""
}
