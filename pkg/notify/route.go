// Package notify builds notification payloads and delivers them to
// configured routes with bounded retries. Route fan-out is concurrent; one
// slow or failing route never blocks another.
package notify

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

// RouteType selects the payload adapter for a route.
type RouteType string

const (
	RouteWebhook RouteType = "webhook"
	RouteSlack   RouteType = "slack"
	RouteDiscord RouteType = "discord"
)

// Event names carried in payloads and matched against route filters.
const (
	EventJobCompleted        = "job_completed"
	EventJobFailed           = "job_failed"
	EventCollectionCompleted = "collection_completed"
	EventCollectionFailed    = "collection_failed"
	EventTest                = "test_notification"
)

// Defaults are the route-level fallbacks from configuration.
type Defaults struct {
	Events          []string `mapstructure:"events"`
	TimeoutSeconds  float64  `mapstructure:"timeout_seconds"`
	MaxAttempts     int      `mapstructure:"max_attempts"`
	BackoffSeconds  float64  `mapstructure:"backoff_seconds"`
	OutputTailLines int      `mapstructure:"output_tail_lines"`
}

// Normalize fills zero values with built-in defaults.
func (d Defaults) Normalize() Defaults {
	if len(d.Events) == 0 {
		d.Events = []string{EventJobFailed}
	}
	if d.TimeoutSeconds <= 0 {
		d.TimeoutSeconds = 5
	}
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = 3
	}
	if d.BackoffSeconds <= 0 {
		d.BackoffSeconds = 0.5
	}
	if d.OutputTailLines <= 0 {
		d.OutputTailLines = 40
	}
	return d
}

// RouteSpec is one raw route entry as decoded from configuration.
type RouteSpec struct {
	Name           string            `mapstructure:"name"`
	Type           string            `mapstructure:"type"`
	URL            string            `mapstructure:"url"`
	Enabled        *bool             `mapstructure:"enabled"`
	Events         []string          `mapstructure:"events"`
	Headers        map[string]string `mapstructure:"headers"`
	TimeoutSeconds float64           `mapstructure:"timeout_seconds"`
	MaxAttempts    int               `mapstructure:"max_attempts"`
	BackoffSeconds float64           `mapstructure:"backoff_seconds"`
}

// Route is a validated, normalized delivery target.
type Route struct {
	Name        string
	Type        RouteType
	URL         string
	Events      []string
	Headers     map[string]string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

func (r Route) wantsEvent(event string) bool {
	// Test notifications go to every enabled route so operators can
	// verify connectivity without editing event filters.
	if event == EventTest {
		return true
	}
	for _, e := range r.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Resolution is the outcome of route selection for an event.
type Resolution struct {
	Routes []Route

	// Errors are per-route configuration problems. They count as failed
	// deliveries for exit-code purposes so a typo cannot silently drop a
	// notification.
	Errors []string

	// Skipped names routes excluded by filters (disabled, wrong event,
	// not in the requested allow-list).
	Skipped []string
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnv resolves ${VAR} placeholders from the environment. A
// missing variable is a route configuration error, not an empty string:
// webhook URLs with half-expanded secrets must never go on the wire.
func interpolateEnv(s string) (string, error) {
	var missing []string
	out := envPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := envPattern.FindStringSubmatch(m)[1]
		v, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variable %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func parseRoute(spec RouteSpec, defaults Defaults) (Route, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return Route{}, fmt.Errorf("route is missing required field name")
	}

	rt := RouteType(strings.ToLower(strings.TrimSpace(spec.Type)))
	if rt == "" {
		rt = RouteWebhook
	}
	switch rt {
	case RouteWebhook, RouteSlack, RouteDiscord:
	default:
		return Route{}, fmt.Errorf("route %q has unsupported type %q", name, spec.Type)
	}

	if strings.TrimSpace(spec.URL) == "" {
		return Route{}, fmt.Errorf("route %q is missing required field url", name)
	}
	url, err := interpolateEnv(spec.URL)
	if err != nil {
		return Route{}, fmt.Errorf("route %q url: %w", name, err)
	}

	headers := make(map[string]string, len(spec.Headers))
	for k, v := range spec.Headers {
		hv, err := interpolateEnv(v)
		if err != nil {
			return Route{}, fmt.Errorf("route %q header %s: %w", name, k, err)
		}
		headers[k] = hv
	}

	events := spec.Events
	if len(events) == 0 {
		events = defaults.Events
	}

	timeout := spec.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaults.TimeoutSeconds
	}
	attempts := spec.MaxAttempts
	if attempts <= 0 {
		attempts = defaults.MaxAttempts
	}
	backoff := spec.BackoffSeconds
	if backoff <= 0 {
		backoff = defaults.BackoffSeconds
	}

	return Route{
		Name:        name,
		Type:        rt,
		URL:         url,
		Events:      events,
		Headers:     headers,
		Timeout:     time.Duration(timeout * float64(time.Second)),
		MaxAttempts: attempts,
		Backoff:     time.Duration(backoff * float64(time.Second)),
	}, nil
}

// ResolveRoutes validates every configured route and selects the ones that
// should receive the given event. An empty event selects regardless of event
// filters (used by notify test). names, when non-empty, is an allow-list;
// unknown names in it are reported as errors.
func ResolveRoutes(specs []RouteSpec, defaults Defaults, event string, names []string) Resolution {
	defaults = defaults.Normalize()

	selected := make(map[string]struct{}, len(names))
	for _, n := range names {
		selected[n] = struct{}{}
	}
	known := make(map[string]struct{}, len(specs))

	var res Resolution
	for i, spec := range specs {
		if n := strings.TrimSpace(spec.Name); n != "" {
			known[n] = struct{}{}
		}

		route, err := parseRoute(spec, defaults)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("route entry %d: %v", i, err))
			continue
		}

		if len(selected) > 0 {
			if _, ok := selected[route.Name]; !ok {
				res.Skipped = append(res.Skipped, route.Name)
				continue
			}
		}
		if spec.Enabled != nil && !*spec.Enabled {
			res.Skipped = append(res.Skipped, route.Name)
			continue
		}
		if event != "" && !route.wantsEvent(event) {
			res.Skipped = append(res.Skipped, route.Name)
			continue
		}

		res.Routes = append(res.Routes, route)
	}

	if len(selected) > 0 {
		unknown := make([]string, 0, len(selected))
		for n := range selected {
			if _, ok := known[n]; !ok {
				unknown = append(unknown, n)
			}
		}
		sort.Strings(unknown)
		for _, n := range unknown {
			res.Errors = append(res.Errors, fmt.Sprintf("unknown notification route %q", n))
		}
	}

	return res
}
