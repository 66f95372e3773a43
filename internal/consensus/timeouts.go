package consensus

import (
	"sync"
	"time"
)

// TimeoutTable holds the per-backend call timeout, retuned from observed
// latency after every successful call.
type TimeoutTable struct {
	mu       sync.RWMutex
	timeouts map[string]time.Duration
	fallback time.Duration
	min      time.Duration
	max      time.Duration
	factor   float64
}

// NewTimeoutTable seeds the table. Backends without a seed start at max.
func NewTimeoutTable(seeds map[string]time.Duration, min, max time.Duration, factor float64) *TimeoutTable {
	t := &TimeoutTable{
		timeouts: make(map[string]time.Duration, len(seeds)),
		fallback: max,
		min:      min,
		max:      max,
		factor:   factor,
	}
	for id, d := range seeds {
		t.timeouts[id] = d
	}
	return t
}

// Get returns the current timeout for a backend.
func (t *TimeoutTable) Get(id string) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if d, ok := t.timeouts[id]; ok {
		return d
	}
	return t.fallback
}

// Observe sets the backend's timeout to factor x latency, clamped.
func (t *TimeoutTable) Observe(id string, latency time.Duration) time.Duration {
	next := time.Duration(float64(latency) * t.factor)
	if next < t.min {
		next = t.min
	}
	if next > t.max {
		next = t.max
	}
	t.mu.Lock()
	t.timeouts[id] = next
	t.mu.Unlock()
	return next
}

// Snapshot copies the table.
func (t *TimeoutTable) Snapshot() map[string]time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]time.Duration, len(t.timeouts))
	for id, d := range t.timeouts {
		out[id] = d
	}
	return out
}
