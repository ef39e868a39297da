package finality

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fleetworks/goherd/pkg/collection"
	"github.com/fleetworks/goherd/pkg/lineage"
)

type fingerprintPayload struct {
	Collection string           `json:"collection"`
	Kind       Kind             `json:"kind"`
	Jobs       []fingerprintRow `json:"jobs"`
}

type fingerprintRow struct {
	JobName string           `json:"job_name"`
	State   collection.State `json:"state"`
	ID      string           `json:"id,omitempty"`
}

// Fingerprint computes a stable hash of a terminal snapshot. Rows are sorted
// by job name before hashing, so the fingerprint is a pure function of the
// effective states: reordering jobs inside the collection cannot change it.
func Fingerprint(collectionName string, kind Kind, rows []lineage.Effective) (string, error) {
	payload := fingerprintPayload{
		Collection: collectionName,
		Kind:       kind,
		Jobs:       make([]fingerprintRow, 0, len(rows)),
	}
	for _, r := range rows {
		payload.Jobs = append(payload.Jobs, fingerprintRow{
			JobName: r.JobName,
			State:   r.State,
			ID:      r.ID,
		})
	}
	sort.Slice(payload.Jobs, func(i, j int) bool {
		return payload.Jobs[i].JobName < payload.Jobs[j].JobName
	})

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal fingerprint payload: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Decision is the dedup-gate verdict for one terminal snapshot.
type Decision struct {
	ShouldNotify bool
	Fingerprint  string
}

// Decide fingerprints the snapshot and checks it against the fingerprint of
// the last sent notification. Force bypasses the dedup check but never the
// terminality check.
//
// The caller updates collection.NotificationFingerprint only after a
// delivery pass has run, never before, so a crash between fingerprinting and
// delivery is retried on the next invocation instead of silently losing the
// notification.
func Decide(c *collection.Collection, res Result, force bool) (Decision, error) {
	if !res.Terminal() {
		return Decision{}, nil
	}
	fp, err := Fingerprint(c.Name, res.Kind, res.Rows)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		ShouldNotify: force || fp != c.NotificationFingerprint,
		Fingerprint:  fp,
	}, nil
}
