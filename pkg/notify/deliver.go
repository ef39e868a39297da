package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DeliveryResult is the outcome for a single route.
type DeliveryResult struct {
	Route      string    `json:"route"`
	Type       RouteType `json:"type"`
	Success    bool      `json:"success"`
	Attempts   int       `json:"attempts"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	DryRun     bool      `json:"dry_run,omitempty"`
}

// Deliverer posts JSON payloads to routes.
type Deliverer struct {
	// HTTPClient overrides the transport, mainly for tests. Per-route
	// timeouts come from the route, not from here.
	HTTPClient *http.Client

	Logger *zap.Logger

	// sleep is swapped out by tests to avoid real backoff waits.
	sleep func(time.Duration)
}

func NewDeliverer(logger *zap.Logger) *Deliverer {
	return &Deliverer{
		HTTPClient: &http.Client{},
		Logger:     logger,
		sleep:      time.Sleep,
	}
}

// Dispatch fans the payload out to every route concurrently and waits for
// all of them. Results are positionally aligned with routes. A failing
// route never cancels or delays the others, so this does not use a shared
// error-propagating context beyond the caller's.
func (d *Deliverer) Dispatch(ctx context.Context, p *Payload, routes []Route, dryRun bool) []DeliveryResult {
	results := make([]DeliveryResult, len(routes))

	var g errgroup.Group
	for i, route := range routes {
		i, route := i, route
		g.Go(func() error {
			results[i] = d.deliver(ctx, route, p, dryRun)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Deliverer) deliver(ctx context.Context, route Route, p *Payload, dryRun bool) DeliveryResult {
	if dryRun {
		return DeliveryResult{Route: route.Name, Type: route.Type, Success: true, DryRun: true}
	}

	body, err := routeBody(route, p)
	if err != nil {
		return DeliveryResult{Route: route.Name, Type: route.Type, Error: err.Error()}
	}

	res := DeliveryResult{Route: route.Name, Type: route.Type}
	for attempt := 1; attempt <= route.MaxAttempts; attempt++ {
		res.Attempts = attempt

		status, err := d.post(ctx, route, body)
		res.StatusCode = status

		if err == nil && status >= 200 && status < 300 {
			res.Success = true
			res.Error = ""
			return res
		}
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Error = fmt.Sprintf("HTTP %d", status)
		}

		// Client errors are not retryable: the request will not get
		// better on its own.
		if status >= 400 && status < 500 {
			break
		}
		if attempt < route.MaxAttempts {
			wait := route.Backoff * time.Duration(1<<(attempt-1))
			if d.Logger != nil {
				d.Logger.Debug("Retrying route delivery",
					zap.String("route", route.Name),
					zap.Int("attempt", attempt),
					zap.Duration("backoff", wait))
			}
			d.sleep(wait)
		}
	}

	return res
}

func (d *Deliverer) post(ctx context.Context, route Route, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, route.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, route.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range route.Headers {
		req.Header.Set(k, v)
	}

	client := d.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode, nil
}

// routeBody builds the adapter-specific request body. Webhook routes get
// the canonical payload; chat routes get a rendered human summary.
func routeBody(route Route, p *Payload) ([]byte, error) {
	switch route.Type {
	case RouteWebhook:
		stamped := *p
		stamped.Meta = Meta{RouteName: route.Name, RouteType: route.Type}
		return json.Marshal(&stamped)
	case RouteSlack:
		return json.Marshal(map[string]string{"text": p.HumanMessage()})
	case RouteDiscord:
		return json.Marshal(map[string]string{"content": p.HumanMessage()})
	default:
		return nil, fmt.Errorf("unsupported route type %q", route.Type)
	}
}

// ExitCode aggregates per-route outcomes into the command exit code.
// Config errors count as attempted-and-failed. With strict set, every
// attempted route must have succeeded; otherwise one success is enough.
// Nothing attempted is a no-op by design.
func ExitCode(results []DeliveryResult, configErrors int, strict bool) int {
	attempted := len(results) + configErrors
	if attempted == 0 {
		return 0
	}
	successes := 0
	for _, r := range results {
		if r.Success {
			successes++
		}
	}
	if strict {
		if successes == attempted {
			return 0
		}
		return 1
	}
	if successes > 0 {
		return 0
	}
	return 1
}

// SummarizeResults renders one line per route for command output.
func SummarizeResults(results []DeliveryResult) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		switch {
		case r.DryRun:
			lines = append(lines, fmt.Sprintf("[ok] %s (%s) - dry-run, no request sent", r.Route, r.Type))
		case r.Success:
			lines = append(lines, fmt.Sprintf("[ok] %s (%s) - sent, %d attempt(s)", r.Route, r.Type, r.Attempts))
		default:
			detail := r.Error
			if detail == "" {
				detail = "unknown error"
			}
			lines = append(lines, fmt.Sprintf("[failed] %s (%s) - %s", r.Route, r.Type, strings.TrimSpace(detail)))
		}
	}
	return lines
}
