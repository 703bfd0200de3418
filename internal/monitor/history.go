package monitor

import (
	"sync"
	"time"
)

// Clock supplies the current time to the History and the Monitor.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

const (
	DefaultRetentionDays = 7
	DefaultMaxEntries    = 10000
)

// HistoryOptions bounds a History. Zero values take the defaults.
type HistoryOptions struct {
	RetentionDays int
	MaxEntries    int
	Clock         Clock
}

// History is a time-ordered store of drift records. Records older than the
// retention window are pruned on every append, and the oldest records are
// dropped once MaxEntries is reached.
type History struct {
	mu        sync.RWMutex
	entries   []DriftDetection
	retention time.Duration
	max       int
	clock     Clock
}

// NewHistory creates an empty History.
func NewHistory(opts HistoryOptions) *History {
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = DefaultRetentionDays
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	return &History{
		retention: time.Duration(opts.RetentionDays) * 24 * time.Hour,
		max:       opts.MaxEntries,
		clock:     opts.Clock,
	}
}

// Append adds records and applies the retention limits.
func (h *History) Append(records ...DriftDetection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, records...)
	h.pruneLocked()
}

// Since returns the records newer than hours ago, oldest first.
func (h *History) Since(hours int) []DriftDetection {
	cutoff := h.clock.Now().Add(-time.Duration(hours) * time.Hour)
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []DriftDetection
	for _, d := range h.entries {
		if d.Timestamp.After(cutoff) {
			out = append(out, d)
		}
	}
	return out
}

// Prune drops records outside the retention window and returns how many
// were removed.
func (h *History) Prune() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pruneLocked()
}

func (h *History) pruneLocked() int {
	before := len(h.entries)
	cutoff := h.clock.Now().Add(-h.retention)
	keep := 0
	for keep < len(h.entries) && !h.entries[keep].Timestamp.After(cutoff) {
		keep++
	}
	if over := len(h.entries) - keep - h.max; over > 0 {
		keep += over
	}
	if keep > 0 {
		h.entries = append([]DriftDetection(nil), h.entries[keep:]...)
	}
	return before - len(h.entries)
}

// Len returns the number of retained records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
