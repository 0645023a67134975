// Package ratelimit bounds outbound Sincera API requests to a fixed number of
// dispatches within a trailing time window.
package ratelimit

import (
	"time"
)

// Redis keys for shared window storage.
const (
	RedisKeyDispatches = "sincera:rate_limit:dispatches"
)

// Defaults taken from the Sincera open API quota.
const (
	// DefaultLimit is the number of requests allowed per window.
	DefaultLimit = 45

	// DefaultPeriod is the length of the trailing window.
	DefaultPeriod = 60 * time.Second
)

// Window is the record of dispatch timestamps within the trailing period.
// Timestamps are kept oldest first.
type Window struct {
	// Limit is the maximum number of dispatches allowed within Period.
	Limit int

	// Period is the length of the trailing window.
	Period time.Duration

	// Timestamps holds dispatch times, oldest first.
	Timestamps []time.Time
}

// NewWindow creates an empty window.
func NewWindow(limit int, period time.Duration) *Window {
	return &Window{
		Limit:      limit,
		Period:     period,
		Timestamps: make([]time.Time, 0, limit),
	}
}

// Prune discards timestamps that have left the window at now.
// A timestamp exactly one period old is no longer counted.
func (w *Window) Prune(now time.Time) {
	cutoff := now.Add(-w.Period)
	i := 0
	for i < len(w.Timestamps) && !w.Timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.Timestamps = append(w.Timestamps[:0], w.Timestamps[i:]...)
	}
}

// Count returns the number of dispatches currently recorded.
func (w *Window) Count() int {
	return len(w.Timestamps)
}

// IsFull returns true if no further dispatch fits into the window.
func (w *Window) IsFull() bool {
	return len(w.Timestamps) >= w.Limit
}

// WaitTime returns how long a caller must wait at now before the oldest
// timestamp exits the window. Returns 0 if the window is not full.
// Callers are expected to Prune first.
func (w *Window) WaitTime(now time.Time) time.Duration {
	if !w.IsFull() || len(w.Timestamps) == 0 {
		return 0
	}
	wait := w.Timestamps[0].Add(w.Period).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Record appends a dispatch at now.
func (w *Window) Record(now time.Time) {
	w.Timestamps = append(w.Timestamps, now)
}
