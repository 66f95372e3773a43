package cache

import "fmt"

// Metrics is a point-in-time view of the cache counters.
type Metrics struct {
	Size        int     `json:"size"`
	MaxSize     int     `json:"maxSize"`
	HitCount    int64   `json:"hitCount"`
	MissCount   int64   `json:"missCount"`
	HitRate     float64 `json:"hitRate"`
	Evictions   int64   `json:"evictionCount"`
	Expirations int64   `json:"expirationCount"`
}

// Requests is the total number of lookups.
func (m Metrics) Requests() int64 {
	return m.HitCount + m.MissCount
}

// FillRatio is size over capacity.
func (m Metrics) FillRatio() float64 {
	if m.MaxSize <= 0 {
		return 0
	}
	return float64(m.Size) / float64(m.MaxSize)
}

// Metrics snapshots the counters.
func (c *ResultCache) Metrics() Metrics {
	hits := c.hits.Load()
	misses := c.misses.Load()
	m := Metrics{
		Size:        c.Len(),
		MaxSize:     c.cfg.MaxSize,
		HitCount:    hits,
		MissCount:   misses,
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}
	if total := hits + misses; total > 0 {
		m.HitRate = float64(hits) / float64(total)
	}
	return m
}

// HealthThresholds decide when Warnings reports a problem.
type HealthThresholds struct {
	MinHitRate   float64
	MinRequests  int64
	MaxFillRatio float64
}

// DefaultHealthThresholds warns below a 50% hit rate over at least 100
// requests, or above 90% fill.
func DefaultHealthThresholds() HealthThresholds {
	return HealthThresholds{MinHitRate: 0.5, MinRequests: 100, MaxFillRatio: 0.9}
}

// Warnings lists the health problems visible in m.
func (m Metrics) Warnings(t HealthThresholds) []string {
	var out []string
	if m.Requests() >= t.MinRequests && m.HitRate < t.MinHitRate {
		out = append(out, fmt.Sprintf("low cache hit rate: %.1f%% over %d requests", m.HitRate*100, m.Requests()))
	}
	if m.FillRatio() > t.MaxFillRatio {
		out = append(out, fmt.Sprintf("cache nearly full: %d/%d entries", m.Size, m.MaxSize))
	}
	return out
}
