package monitoring

import (
	"time"

	"github.com/sells-group/terms-extractor/internal/cache"
	"github.com/sells-group/terms-extractor/internal/metrics"
	"github.com/sells-group/terms-extractor/internal/workers"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	Cache       cache.Metrics           `json:"cache"`
	Strategies  []metrics.StrategyStats `json:"strategies"`
	Pools       []workers.Stats         `json:"pools"`
	CollectedAt time.Time               `json:"collected_at"`
}

// CacheSource reports result cache counters.
type CacheSource interface {
	Metrics() cache.Metrics
}

// StrategySource reports per-strategy parsing counters.
type StrategySource interface {
	Snapshot() []metrics.StrategyStats
}

// PoolSource reports worker pool counters.
type PoolSource interface {
	Stats() workers.Stats
}

// Collector gathers metrics from the cache, the strategy recorder and the
// worker pools. Nil sources are skipped.
type Collector struct {
	cache      CacheSource
	strategies StrategySource
	pools      []PoolSource
}

// NewCollector creates a new metrics collector.
func NewCollector(c CacheSource, s StrategySource, pools ...PoolSource) *Collector {
	return &Collector{cache: c, strategies: s, pools: pools}
}

// Collect gathers a snapshot of the current counters.
func (c *Collector) Collect() *MetricsSnapshot {
	snap := &MetricsSnapshot{CollectedAt: time.Now().UTC()}
	if c.cache != nil {
		snap.Cache = c.cache.Metrics()
	}
	if c.strategies != nil {
		snap.Strategies = c.strategies.Snapshot()
	}
	for _, p := range c.pools {
		if p != nil {
			snap.Pools = append(snap.Pools, p.Stats())
		}
	}
	return snap
}
