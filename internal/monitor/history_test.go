package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fleetsync/internal/testing/mock"
)

func record(node string, at time.Time) DriftDetection {
	return DriftDetection{Node: node, DriftType: DriftStack, Timestamp: at}
}

func TestHistoryRetention(t *testing.T) {
	clock := mock.NewMockClock(t0)
	h := NewHistory(HistoryOptions{RetentionDays: 1, Clock: clock})

	h.Append(record("alpha", t0))
	clock.Advance(12 * time.Hour)
	h.Append(record("bravo", clock.Now()))
	assert.Equal(t, 2, h.Len())
	assert.Len(t, h.Since(6), 1)

	clock.Advance(13 * time.Hour)
	assert.Equal(t, 1, h.Prune())
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, "bravo", h.Since(24)[0].Node)
	assert.Equal(t, 0, h.Prune())
}

func TestHistoryMaxEntries(t *testing.T) {
	clock := mock.NewMockClock(t0)
	h := NewHistory(HistoryOptions{MaxEntries: 3, Clock: clock})

	for _, n := range []string{"a", "b", "c", "d", "e"} {
		h.Append(record(n, clock.Now()))
		clock.Advance(time.Minute)
	}
	assert.Equal(t, 3, h.Len())

	var nodes []string
	for _, d := range h.Since(1) {
		nodes = append(nodes, d.Node)
	}
	assert.Equal(t, []string{"c", "d", "e"}, nodes)
}

func TestHistoryDefaults(t *testing.T) {
	h := NewHistory(HistoryOptions{})
	assert.Equal(t, 7*24*time.Hour, h.retention)
	assert.Equal(t, DefaultMaxEntries, h.max)

	h.Append(record("alpha", time.Now()))
	assert.Len(t, h.Since(1), 1)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.TotalDrift)
	assert.Empty(t, s.CommonTypes)
	assert.NotNil(t, s.CommonTypes)
}
