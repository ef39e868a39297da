package collection

import (
	"os"
	"strings"
	"time"
)

// State is the normalized lifecycle state of a logical job.
//
// NOTE: These values are persisted in collection YAML files and are part of
// the stable on-disk contract. Raw scheduler states are kept verbatim on the
// attempt records; normalization happens at read time.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateUnknown   State = "unknown"
)

// Terminal reports whether the state is a settled outcome.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// NormalizeState maps a raw scheduler state string to a State category.
//
// Unknown covers both empty states (job never queried) and states the
// scheduler no longer resolves (purged history). It is a fallback, not a
// transient phase.
func NormalizeState(raw string) State {
	up := strings.ToUpper(strings.TrimSpace(raw))
	// Slurm reports cancellations as "CANCELLED by <uid>".
	if strings.HasPrefix(up, "CANCELLED") {
		return StateFailed
	}
	switch up {
	case "PENDING", "REQUEUED", "SUSPENDED":
		return StatePending
	case "RUNNING", "COMPLETING":
		return StateRunning
	case "COMPLETED":
		return StateCompleted
	case "FAILED", "TIMEOUT", "NODE_FAIL", "PREEMPTED", "OUT_OF_MEMORY":
		return StateFailed
	default:
		return StateUnknown
	}
}

// Submission is the original submission record of a logical job.
type Submission struct {
	ID          string     `yaml:"id"`
	State       string     `yaml:"state,omitempty"`
	SubmittedAt *time.Time `yaml:"submitted_at,omitempty"`
	StartedAt   *time.Time `yaml:"started_at,omitempty"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
	OutputPath  string     `yaml:"output_path,omitempty"`
	Hostname    string     `yaml:"hostname,omitempty"`
}

// Attempt is one resubmission record.
//
// Attempts are append-only and ordered by submission time. New information
// about an existing attempt is a state-field update keyed by ID, never a new
// record and never a reorder.
type Attempt struct {
	ID              string         `yaml:"id"`
	State           string         `yaml:"state,omitempty"`
	SubmittedAt     *time.Time     `yaml:"submitted_at,omitempty"`
	Hostname        string         `yaml:"hostname,omitempty"`
	SubmissionGroup string         `yaml:"submission_group,omitempty"`
	ExtraParams     map[string]any `yaml:"extra_params,omitempty"`
}

// LogicalJob is one named unit of work, independent of how many times it was
// (re)submitted.
type LogicalJob struct {
	Name       string         `yaml:"job_name"`
	Parameters map[string]any `yaml:"parameters,omitempty"`
	Primary    Submission     `yaml:"primary"`
	Attempts   []Attempt      `yaml:"resubmissions,omitempty"`
}

// AttemptByID returns the resubmission attempt with the given scheduler id.
func (j *LogicalJob) AttemptByID(id string) *Attempt {
	for i := range j.Attempts {
		if j.Attempts[i].ID == id {
			return &j.Attempts[i]
		}
	}
	return nil
}

// Collection is a named group of logical jobs plus metadata.
type Collection struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	CreatedAt   time.Time  `yaml:"created_at"`
	UpdatedAt   time.Time  `yaml:"updated_at"`
	Hostname    string     `yaml:"hostname,omitempty"`
	Jobs        []*LogicalJob `yaml:"jobs"`

	// NotificationFingerprint is the fingerprint of the last terminal
	// snapshot for which a collection-final notification was sent.
	NotificationFingerprint string `yaml:"notification_fingerprint,omitempty"`
}

// New creates an empty collection stamped with the current host and time.
func New(name, description string) *Collection {
	now := time.Now().UTC().Truncate(time.Second)
	host, _ := os.Hostname()
	return &Collection{
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Hostname:    host,
	}
}

// Job returns the logical job with the given name, or nil.
func (c *Collection) Job(name string) *LogicalJob {
	for _, j := range c.Jobs {
		if j.Name == name {
			return j
		}
	}
	return nil
}

// JobByAnyID finds the logical job owning the given scheduler id, matching
// either the primary submission or any attempt. The returned attempt is nil
// when the primary matched.
func (c *Collection) JobByAnyID(id string) (*LogicalJob, *Attempt) {
	for _, j := range c.Jobs {
		if j.Primary.ID == id {
			return j, nil
		}
		if a := j.AttemptByID(id); a != nil {
			return j, a
		}
	}
	return nil, nil
}

// AllIDs returns every scheduler id known to the collection, primaries first.
func (c *Collection) AllIDs() []string {
	ids := make([]string, 0, len(c.Jobs))
	for _, j := range c.Jobs {
		if j.Primary.ID != "" {
			ids = append(ids, j.Primary.ID)
		}
		for _, a := range j.Attempts {
			if a.ID != "" {
				ids = append(ids, a.ID)
			}
		}
	}
	return ids
}

// AddJob appends a new logical job. Job names are unique within a collection.
func (c *Collection) AddJob(job *LogicalJob) error {
	if strings.TrimSpace(job.Name) == "" {
		return errEmptyJobName
	}
	if c.Job(job.Name) != nil {
		return &DuplicateJobError{Name: job.Name}
	}
	if job.Primary.SubmittedAt == nil {
		now := time.Now().UTC().Truncate(time.Second)
		job.Primary.SubmittedAt = &now
	}
	if job.Primary.Hostname == "" {
		job.Primary.Hostname, _ = os.Hostname()
	}
	c.Jobs = append(c.Jobs, job)
	c.Touch()
	return nil
}

// NewSubmissionGroup returns the generated label for an attempt recorded
// without an explicit submission group. Empty labels only occur in records
// written before group labels existed; those resolve to the legacy bucket.
func NewSubmissionGroup(t time.Time) string {
	return "resubmit_" + t.UTC().Format("20060102_150405")
}

// AddAttempt appends a resubmission record to the named job. Attempts
// without a submission group get a generated timestamped label.
func (c *Collection) AddAttempt(jobName string, attempt Attempt) error {
	j := c.Job(jobName)
	if j == nil {
		return &UnknownJobError{Name: jobName}
	}
	if attempt.SubmittedAt == nil {
		now := time.Now().UTC().Truncate(time.Second)
		attempt.SubmittedAt = &now
	}
	if attempt.Hostname == "" {
		attempt.Hostname, _ = os.Hostname()
	}
	if attempt.SubmissionGroup == "" {
		attempt.SubmissionGroup = NewSubmissionGroup(*attempt.SubmittedAt)
	}
	j.Attempts = append(j.Attempts, attempt)
	c.Touch()
	return nil
}

// RemoveJob deletes a logical job by name. Returns false when absent.
func (c *Collection) RemoveJob(name string) bool {
	for i, j := range c.Jobs {
		if j.Name == name {
			c.Jobs = append(c.Jobs[:i], c.Jobs[i+1:]...)
			c.Touch()
			return true
		}
	}
	return false
}

// Touch advances updated_at. The timestamp only moves forward.
func (c *Collection) Touch() {
	now := time.Now().UTC().Truncate(time.Second)
	if now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
}

// Summary counts jobs per normalized primary-submission state. Display-level
// summaries that need attempt resolution live in pkg/lineage.
type Summary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Unknown   int `json:"unknown"`
}

func (s *Summary) Count(st State) {
	s.Total++
	switch st {
	case StatePending:
		s.Pending++
	case StateRunning:
		s.Running++
	case StateCompleted:
		s.Completed++
	case StateFailed:
		s.Failed++
	default:
		s.Unknown++
	}
}
