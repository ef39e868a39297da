package notify

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

const schemaVersion = "v1"

// Meta identifies the route a payload copy was rendered for.
type Meta struct {
	RouteName string    `json:"route_name,omitempty"`
	RouteType RouteType `json:"route_type,omitempty"`
}

// JobContext is the job section of a payload.
type JobContext struct {
	JobID       string `json:"job_id"`
	JobName     string `json:"job_name,omitempty"`
	ExitCode    *int   `json:"exit_code"`
	State       string `json:"state,omitempty"`
	SubmittedAt string `json:"submitted_at,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	OutputPath  string `json:"output_path,omitempty"`
	OutputTail  string `json:"output_tail,omitempty"`
}

// CollectionContext is the collection section of a payload.
type CollectionContext struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Payload is the canonical notification body. Webhook routes receive it
// as-is; chat routes receive a rendered human summary instead.
type Payload struct {
	SchemaVersion string             `json:"schema_version"`
	Event         string             `json:"event"`
	GeneratedAt   string             `json:"generated_at"`
	DeliveryID    string             `json:"delivery_id"`
	Job           *JobContext        `json:"job,omitempty"`
	Collection    *CollectionContext `json:"collection,omitempty"`
	Report        *Report            `json:"report,omitempty"`
	Hostname      string             `json:"hostname,omitempty"`
	SummaryStatus string             `json:"summary_status,omitempty"`
	Summary       string             `json:"summary,omitempty"`
	Meta          Meta               `json:"meta"`
}

func newPayload(event string) *Payload {
	host, _ := os.Hostname()
	return &Payload{
		SchemaVersion: schemaVersion,
		Event:         event,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		DeliveryID:    uuid.New().String(),
		Hostname:      host,
	}
}

// NewJobPayload builds the payload for a single-job lifecycle event.
func NewJobPayload(event string, job JobContext, col *CollectionContext) *Payload {
	p := newPayload(event)
	p.Job = &job
	p.Collection = col
	return p
}

// NewCollectionFinalPayload builds the payload for a terminal collection.
func NewCollectionFinalPayload(event string, col CollectionContext, triggerJobID string, report *Report) *Payload {
	p := newPayload(event)
	p.Collection = &col
	p.Report = report
	if triggerJobID != "" {
		p.Job = &JobContext{JobID: triggerJobID}
	}
	return p
}

// NewTestPayload builds a synthetic payload for route testing.
func NewTestPayload() *Payload {
	return newPayload(EventTest)
}

// HumanMessage renders the payload as chat-friendly text.
func (p *Payload) HumanMessage() string {
	var b strings.Builder

	switch p.Event {
	case EventJobFailed:
		b.WriteString("GOHERD ALERT: Job failed\n")
	case EventJobCompleted:
		b.WriteString("GOHERD: Job completed\n")
	case EventCollectionFailed:
		b.WriteString("GOHERD ALERT: Collection finished with failures\n")
	case EventCollectionCompleted:
		b.WriteString("GOHERD: Collection completed\n")
	default:
		b.WriteString("GOHERD: Test notification\n")
	}
	fmt.Fprintf(&b, "Event: %s\n", p.Event)

	if p.Collection != nil {
		fmt.Fprintf(&b, "Collection: %s\n", p.Collection.Name)
	}
	if p.Job != nil {
		if p.Job.JobName != "" {
			fmt.Fprintf(&b, "Job: %s\n", p.Job.JobName)
		}
		if p.Job.JobID != "" {
			fmt.Fprintf(&b, "Job ID: %s\n", p.Job.JobID)
		}
		if p.Job.ExitCode != nil {
			fmt.Fprintf(&b, "Exit code: %d\n", *p.Job.ExitCode)
		}
		if p.Job.State != "" {
			fmt.Fprintf(&b, "State: %s\n", p.Job.State)
		}
	}
	if p.Report != nil {
		c := p.Report.Counts
		fmt.Fprintf(&b, "Jobs: %d total, %d completed, %d failed\n", c.Total, c.Completed, c.Failed)
		for _, rec := range p.Report.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}
	fmt.Fprintf(&b, "Host: %s", p.Hostname)

	if p.Summary != "" {
		b.WriteString("\n\n")
		b.WriteString(p.Summary)
	}
	if p.Job != nil && p.Job.OutputTail != "" {
		b.WriteString("\nOutput tail:\n")
		b.WriteString(p.Job.OutputTail)
	}

	return b.String()
}
