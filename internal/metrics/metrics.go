// Package metrics records per-strategy extraction attempts and exports them
// to Prometheus alongside cache health gauges.
package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/cache"
)

// Sink receives one report per strategy attempt.
type Sink interface {
	RecordAttempt(strategy string, elapsed time.Duration, success bool)
}

// Nop discards every report.
type Nop struct{}

func (Nop) RecordAttempt(string, time.Duration, bool) {}

// StrategyStats summarizes the attempts of one strategy.
type StrategyStats struct {
	Strategy    string        `json:"strategy"`
	Attempts    int64         `json:"attempts"`
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	SuccessRate float64       `json:"success_rate"`
	Total       time.Duration `json:"total_duration"`
	Average     time.Duration `json:"avg_duration"`
}

type counters struct {
	attempts  atomic.Int64
	successes atomic.Int64
	nanos     atomic.Int64
}

// Recorder is the Sink used in production. It keeps in-process counters for
// summaries and alerting and mirrors them to Prometheus.
type Recorder struct {
	mu         sync.RWMutex
	strategies map[string]*counters

	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRecorder registers the strategy metrics on reg. A nil reg uses the
// default registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		strategies: make(map[string]*counters),
		attempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "terms",
				Subsystem: "strategy",
				Name:      "attempts_total",
				Help:      "Extraction attempts by strategy and result",
			},
			[]string{"strategy", "result"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "terms",
				Subsystem: "strategy",
				Name:      "duration_seconds",
				Help:      "Duration of extraction attempts in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
	}
}

// RecordAttempt implements Sink.
func (r *Recorder) RecordAttempt(strategy string, elapsed time.Duration, success bool) {
	c := r.counter(strategy)
	c.attempts.Add(1)
	c.nanos.Add(int64(elapsed))
	result := "error"
	if success {
		c.successes.Add(1)
		result = "success"
	}
	r.attempts.WithLabelValues(strategy, result).Inc()
	r.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

func (r *Recorder) counter(strategy string) *counters {
	r.mu.RLock()
	c, ok := r.strategies[strategy]
	r.mu.RUnlock()
	if ok {
		return c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.strategies[strategy]; !ok {
		c = &counters{}
		r.strategies[strategy] = c
	}
	return c
}

// Snapshot returns per-strategy stats sorted by name.
func (r *Recorder) Snapshot() []StrategyStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]StrategyStats, 0, len(r.strategies))
	for name, c := range r.strategies {
		s := StrategyStats{
			Strategy:  name,
			Attempts:  c.attempts.Load(),
			Successes: c.successes.Load(),
			Total:     time.Duration(c.nanos.Load()),
		}
		s.Failures = s.Attempts - s.Successes
		if s.Attempts > 0 {
			s.SuccessRate = float64(s.Successes) / float64(s.Attempts)
			s.Average = s.Total / time.Duration(s.Attempts)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}

// LogSummary writes one Info line per strategy.
func (r *Recorder) LogSummary() {
	for _, s := range r.Snapshot() {
		zap.L().Info("metrics: strategy summary",
			zap.String("strategy", s.Strategy),
			zap.Int64("attempts", s.Attempts),
			zap.Int64("successes", s.Successes),
			zap.Int64("failures", s.Failures),
			zap.Float64("success_rate", s.SuccessRate),
			zap.Duration("avg_duration", s.Average),
		)
	}
}

// Run logs a summary every interval until ctx is done.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.LogSummary()
		}
	}
}

// RegisterCache exports cache counters as gauges read on every scrape.
func RegisterCache(reg prometheus.Registerer, snapshot func() cache.Metrics) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	gauge := func(name, help string, v func(cache.Metrics) float64) {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "terms",
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return v(snapshot()) })
	}
	gauge("entries", "Current number of cached results", func(m cache.Metrics) float64 { return float64(m.Size) })
	gauge("hits", "Cache hits since start", func(m cache.Metrics) float64 { return float64(m.HitCount) })
	gauge("misses", "Cache misses since start", func(m cache.Metrics) float64 { return float64(m.MissCount) })
	gauge("evictions", "Size-cap evictions since start", func(m cache.Metrics) float64 { return float64(m.Evictions) })
	gauge("hit_rate", "Fraction of lookups served from cache", func(m cache.Metrics) float64 { return m.HitRate })
}

// RegisterTimeouts exports each backend's adaptive timeout as a gauge
// labeled by backend.
func RegisterTimeouts(reg prometheus.Registerer, ids []string, timeout func(id string) time.Duration) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "terms",
			Subsystem:   "backend",
			Name:        "timeout_seconds",
			Help:        "Current adaptive timeout per backend",
			ConstLabels: prometheus.Labels{"backend": id},
		}, func() float64 { return timeout(id).Seconds() })
	}
}
