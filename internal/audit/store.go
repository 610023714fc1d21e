// Package audit provides the append-only trail behind every governance
// transition and every applied or suppressed ML modifier. Entries are never
// updated or deleted; readers get copies.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind tags what an audit entry records.
type Kind string

const (
	KindModeTransition     Kind = "mode_transition"
	KindKillSwitchTrigger  Kind = "kill_switch_trigger"
	KindKillSwitchReset    Kind = "kill_switch_reset"
	KindModifierApplied    Kind = "modifier_applied"
	KindModifierSuppressed Kind = "modifier_suppressed"
	KindGateEvaluation     Kind = "gate_evaluation"
	KindRejectedTransition Kind = "rejected_transition"
)

// Entry is one immutable audit record.
type Entry struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Actor     string    `json:"actor,omitempty"` // operator or subsystem that caused the event

	FromMode   string `json:"from_mode,omitempty"`
	ToMode     string `json:"to_mode,omitempty"`
	KillSwitch string `json:"kill_switch,omitempty"`
	DriftLevel string `json:"drift_level,omitempty"`
	Reason     string `json:"reason,omitempty"`

	// Modifier bookkeeping: confidence before and after, and the model that
	// produced the adjustment.
	ConfidenceBefore float64 `json:"confidence_before,omitempty"`
	ConfidenceAfter  float64 `json:"confidence_after,omitempty"`
	Modifier         float64 `json:"modifier,omitempty"`
	ModelID          string  `json:"model_id,omitempty"`
}

// Sink receives entries after they are committed to the primary store.
// Implementations must not block governance; failures are their own problem.
type Sink interface {
	Publish(entry Entry)
}

// Trail is the process-local append-only audit log.
type Trail struct {
	mu      sync.RWMutex
	entries []Entry
	seq     uint64
	sinks   []Sink
	now     func() time.Time
}

// NewTrail creates an empty audit trail.
func NewTrail(sinks ...Sink) *Trail {
	return &Trail{
		sinks: sinks,
		now:   time.Now,
	}
}

// Append stamps the entry with an ID, sequence number, and timestamp, commits
// it, and fans it out to sinks. Returns the committed entry.
func (t *Trail) Append(entry Entry) Entry {
	t.mu.Lock()
	t.seq++
	entry.Seq = t.seq
	entry.ID = uuid.NewString()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = t.now().UTC()
	}
	t.entries = append(t.entries, entry)
	t.mu.Unlock()

	for _, s := range t.sinks {
		s.Publish(entry)
	}
	return entry
}

// Entries returns a copy of the full trail in append order.
func (t *Trail) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// EntriesByKind returns a copy of entries matching the kind, in append order.
func (t *Trail) EntriesByKind(kind Kind) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Entry
	for _, e := range t.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// EntriesSince returns entries stamped at or after the cutoff.
func (t *Trail) EntriesSince(cutoff time.Time) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Entry
	for _, e := range t.entries {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of committed entries.
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
