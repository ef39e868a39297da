package collection

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store persists and loads collections from an on-disk directory.
//
// Directory layout:
//
//	<root>/<collection_name>.yaml
//	<root>/<collection_name>.lock   (transient, see lock.go)
//
// One YAML file per collection is the unit of consistency: every mutation is
// read-modify-write of the whole record, and writes go through a temp file
// followed by an atomic rename so an interrupted invocation leaves the last
// fully-written record in place.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root)}
}

func (s *Store) RootDir() string {
	return s.root
}

func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name+".yaml")
}

func (s *Store) ensureRoot() error {
	if strings.TrimSpace(s.root) == "" {
		return fmt.Errorf("collections root dir is empty")
	}
	return os.MkdirAll(s.root, 0755)
}

// Exists reports whether a collection record is present.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Get loads a collection by name.
func (s *Store) Get(name string) (*Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	b, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read collection file: %w", err)
	}

	var c Collection
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse collection %s: %w", name, err)
	}

	if err := validate(&c, name); err != nil {
		return nil, err
	}
	return &c, nil
}

// validate applies load-time defaults and rejects records that cannot be
// worked with. Unknown optional fields are dropped by the YAML decoder;
// missing optional fields resolve to zero values rather than load failures.
func validate(c *Collection, name string) error {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = name
	}
	seen := make(map[string]struct{}, len(c.Jobs))
	for _, j := range c.Jobs {
		if strings.TrimSpace(j.Name) == "" {
			return fmt.Errorf("collection %s: job with empty job_name", name)
		}
		if _, dup := seen[j.Name]; dup {
			return fmt.Errorf("collection %s: duplicate job_name %q", name, j.Name)
		}
		seen[j.Name] = struct{}{}
	}
	return nil
}

// Save writes the collection record atomically.
func (s *Store) Save(c *Collection) error {
	if c == nil {
		return fmt.Errorf("collection is nil")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("collection name is required")
	}
	if err := s.ensureRoot(); err != nil {
		return err
	}

	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, c.Name+".yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp collection file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp collection file: %w", err)
	}

	if err := os.Rename(tmpName, s.Path(c.Name)); err != nil {
		return fmt.Errorf("rename collection file: %w", err)
	}
	return nil
}

// Delete removes a collection record. Returns ErrNotFound when absent.
func (s *Store) Delete(name string) error {
	err := os.Remove(s.Path(name))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}

// List returns the names of all stored collections, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read collections root: %w", err)
	}

	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		n := entry.Name()
		if !strings.HasSuffix(n, ".yaml") || strings.Contains(n, ".yaml.tmp.") {
			continue
		}
		out = append(out, strings.TrimSuffix(n, ".yaml"))
	}
	sort.Strings(out)
	return out, nil
}

// StateUpdate is one scheduler-refresh result for a single scheduler id.
type StateUpdate struct {
	ID          string
	State       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// UpsertStates applies refreshed scheduler states to the collection,
// matching each id against either a primary submission or a resubmission
// attempt. Identifiers that match nothing are returned, not silently
// dropped. Returns the unmatched ids and the number of records changed.
func UpsertStates(c *Collection, updates []StateUpdate) (unmatched []string, changed int) {
	for _, u := range updates {
		job, attempt := c.JobByAnyID(u.ID)
		if job == nil {
			unmatched = append(unmatched, u.ID)
			continue
		}
		if attempt != nil {
			if u.State != "" && attempt.State != u.State {
				attempt.State = u.State
				changed++
			}
			continue
		}
		if u.State != "" && job.Primary.State != u.State {
			job.Primary.State = u.State
			changed++
		}
		if u.StartedAt != nil {
			job.Primary.StartedAt = u.StartedAt
		}
		if u.CompletedAt != nil {
			job.Primary.CompletedAt = u.CompletedAt
		}
	}
	if changed > 0 {
		c.Touch()
	}
	return unmatched, changed
}
