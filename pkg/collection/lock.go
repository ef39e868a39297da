package collection

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Lock is a held per-collection advisory lock. Release it on every exit
// path; Unlock is safe to call more than once.
type Lock struct {
	path     string
	released bool
}

const (
	lockPollInterval = 50 * time.Millisecond

	// staleLockAge guards against locks orphaned by a killed process.
	// A lock file older than this is taken over.
	staleLockAge = 10 * time.Minute
)

// Acquire takes the exclusive lock for a collection, waiting up to timeout.
// Contention past the deadline surfaces ErrResourceBusy rather than blocking
// indefinitely; the caller may simply re-invoke.
//
// The lock file is created with O_EXCL so exactly one invocation wins; its
// content records the holder pid for diagnostics.
func (s *Store) Acquire(name string, timeout time.Duration) (*Lock, error) {
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	path := s.Path(name) + ".lock"
	deadline := time.Now().Add(timeout)

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, _ = fmt.Fprintf(f, "pid=%d\nacquired_at=%s\n",
				os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			_ = f.Close()
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		if takeOverStaleLock(path) {
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s (held by %s)", ErrResourceBusy, name, lockHolder(path))
		}
		time.Sleep(lockPollInterval)
	}
}

// Unlock releases the lock. Errors removing an already-gone lock file are
// ignored: the lock is no longer held either way.
func (l *Lock) Unlock() {
	if l == nil || l.released {
		return
	}
	l.released = true
	_ = os.Remove(l.path)
}

func takeOverStaleLock(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		// Holder released between our open and stat; retry immediately.
		return os.IsNotExist(err)
	}
	if time.Since(info.ModTime()) < staleLockAge {
		return false
	}
	return os.Remove(path) == nil
}

func lockHolder(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	for _, line := range strings.Split(string(b), "\n") {
		if pid, ok := strings.CutPrefix(strings.TrimSpace(line), "pid="); ok {
			if _, err := strconv.Atoi(pid); err == nil {
				return "pid " + pid
			}
		}
	}
	return "unknown"
}
