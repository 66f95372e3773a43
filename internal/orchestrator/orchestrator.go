// Package orchestrator runs the extraction strategies in priority order behind
// the result cache.
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/cache"
	"github.com/sells-group/terms-extractor/internal/metrics"
	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/strategy"
)

// DefaultThreshold is the confidence at which the loop stops early.
const DefaultThreshold = 85

// Attempt records one strategy call.
type Attempt struct {
	Strategy   string        `json:"strategy"`
	Confidence int           `json:"confidence"`
	Elapsed    time.Duration `json:"elapsed"`
	Err        string        `json:"error,omitempty"`
}

// Outcome is a resolved result with the trace that produced it. A cache hit
// has no attempts.
type Outcome struct {
	Result     model.Result `json:"result"`
	Strategy   string       `json:"strategy,omitempty"`
	Confidence int          `json:"confidence"`
	CacheHit   bool         `json:"cache_hit"`
	Attempts   []Attempt    `json:"attempts,omitempty"`
}

// Orchestrator picks the first confident result, or the best one.
type Orchestrator struct {
	registry  *strategy.Registry
	cache     *cache.ResultCache
	sink      metrics.Sink
	threshold int
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithThreshold overrides the early-exit confidence.
func WithThreshold(t int) Option {
	return func(o *Orchestrator) {
		if t > 0 {
			o.threshold = t
		}
	}
}

// WithSink sets the metrics sink.
func WithSink(s metrics.Sink) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithCache puts the result cache in front of the strategy loop.
func WithCache(c *cache.ResultCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// New creates an Orchestrator over the registry's strategies.
func New(registry *strategy.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:  registry,
		sink:      metrics.Nop{},
		threshold: DefaultThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry returns the strategies the orchestrator runs.
func (o *Orchestrator) Registry() *strategy.Registry {
	return o.registry
}

// Resolve returns the extraction result for doc.
func (o *Orchestrator) Resolve(ctx context.Context, doc model.Document) model.Result {
	return o.ResolveDetailed(ctx, doc).Result
}

// ResolveDetailed is Resolve with the strategy trace. A cached result is
// returned unchanged. Results computed under a canceled ctx are not cached.
func (o *Orchestrator) ResolveDetailed(ctx context.Context, doc model.Document) Outcome {
	if o.cache == nil {
		return o.run(ctx, doc)
	}

	var out Outcome
	r, hit := o.cache.GetOrCompute(cacheContent(doc), doc.EntityID, func() (model.Result, bool) {
		out = o.run(ctx, doc)
		// A canceled caller leaves a partial or empty outcome behind.
		return out.Result, ctx.Err() == nil
	})
	if hit {
		return Outcome{Result: r, CacheHit: true}
	}
	return out
}

// cacheContent is the byte form hashed into the cache key. Documents given
// only as text hash their text.
func cacheContent(doc model.Document) []byte {
	if len(doc.Content) > 0 {
		return doc.Content
	}
	return []byte(doc.Text)
}

func (o *Orchestrator) run(ctx context.Context, doc model.Document) Outcome {
	var (
		out     Outcome
		best    model.Result
		bestIdx = -1
	)

	for _, s := range o.registry.Strategies() {
		if ctx.Err() != nil {
			break
		}
		if !s.Available(ctx) {
			zap.L().Debug("orchestrator: strategy unavailable",
				zap.String("strategy", s.Name()),
				zap.String("entity_id", doc.EntityID),
			)
			continue
		}

		start := o.now()
		r, err := s.Extract(ctx, doc)
		elapsed := o.now().Sub(start)
		o.sink.RecordAttempt(s.Name(), elapsed, err == nil)

		if err != nil {
			zap.L().Warn("orchestrator: strategy failed",
				zap.String("strategy", s.Name()),
				zap.String("entity_id", doc.EntityID),
				zap.Duration("elapsed", elapsed),
				zap.Error(err),
			)
			out.Attempts = append(out.Attempts, Attempt{Strategy: s.Name(), Elapsed: elapsed, Err: err.Error()})
			continue
		}

		conf := s.ScoreConfidence(r)
		out.Attempts = append(out.Attempts, Attempt{Strategy: s.Name(), Confidence: conf, Elapsed: elapsed})
		zap.L().Debug("orchestrator: strategy scored",
			zap.String("strategy", s.Name()),
			zap.String("entity_id", doc.EntityID),
			zap.Int("confidence", conf),
		)

		if bestIdx < 0 || conf > out.Confidence {
			best, bestIdx = r, len(out.Attempts)-1
			out.Confidence = conf
			out.Strategy = s.Name()
		}
		if conf >= o.threshold {
			break
		}
	}

	if bestIdx < 0 {
		out.Result = model.EmptyResult("no strategy produced a result")
		return out
	}
	out.Result = best
	return out
}
