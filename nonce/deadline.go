// Package nonce implements replay protection for signed intents: a versioned
// 256-bit nonce scheme with time-windowed salt rotation, a per-account replay
// bitmap over the full nonce space, and the verifier deciding whether a nonce
// may be committed or garbage-collected.
package nonce

import (
	"encoding/json"
	"fmt"
	"time"
)

// Deadline is an absolute point in time after which a signed artifact is no
// longer valid.
type Deadline struct {
	time.Time
}

// DeadlineAt wraps t as a Deadline.
func DeadlineAt(t time.Time) Deadline { return Deadline{t.UTC()} }

// Timeout returns a deadline d after now.
func Timeout(now time.Time, d time.Duration) Deadline { return DeadlineAt(now.Add(d)) }

// HasExpired reports whether the deadline lies strictly before now.
func (d Deadline) HasExpired(now time.Time) bool { return now.After(d.Time) }

// After reports whether d is strictly later than other.
func (d Deadline) After(other Deadline) bool { return d.Time.After(other.Time) }

// MarshalJSON encodes the deadline as an RFC 3339 string.
func (d Deadline) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.UTC().Format(time.RFC3339))
}

// UnmarshalJSON accepts either an RFC 3339 string or the legacy object form
// {"timestamp": <unix seconds>}.
func (d *Deadline) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("nonce: invalid deadline %q: %v", s, err)
		}
		d.Time = t.UTC()
		return nil
	}
	var legacy struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("nonce: invalid deadline: %v", err)
	}
	d.Time = time.Unix(legacy.Timestamp, 0).UTC()
	return nil
}
