package engine

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/backend"
	"github.com/sells-group/terms-extractor/internal/cache"
	"github.com/sells-group/terms-extractor/internal/config"
	"github.com/sells-group/terms-extractor/internal/consensus"
	"github.com/sells-group/terms-extractor/internal/fallback"
	"github.com/sells-group/terms-extractor/internal/learning"
	"github.com/sells-group/terms-extractor/internal/metrics"
	"github.com/sells-group/terms-extractor/internal/orchestrator"
	"github.com/sells-group/terms-extractor/internal/prompt"
	"github.com/sells-group/terms-extractor/internal/store"
	"github.com/sells-group/terms-extractor/internal/strategy"
	"github.com/sells-group/terms-extractor/internal/textextract"
	"github.com/sells-group/terms-extractor/internal/validate"
	"github.com/sells-group/terms-extractor/internal/workers"
)

// Runtime owns a wired Service and the resources behind it.
type Runtime struct {
	Service  *Service
	Cache    *cache.ResultCache
	Recorder *metrics.Recorder
	Learning *learning.Pipeline
	Pools    []*workers.Pool
}

// Close drains the worker pools.
func (r *Runtime) Close() {
	for _, p := range r.Pools {
		p.Close()
	}
}

// BackendFactory builds the consensus backends and their seed timeouts.
type BackendFactory func(cfg *config.Config) ([]consensus.Backend, map[string]time.Duration, error)

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	backends BackendFactory
}

// WithBackends replaces the config-driven backend factory.
func WithBackends(f BackendFactory) BuildOption {
	return func(o *buildOptions) { o.backends = f }
}

// Build wires the full service from configuration. Pools run until ctx ends
// or Close is called. reg receives the Prometheus collectors.
func Build(ctx context.Context, cfg *config.Config, st store.Store, reg prometheus.Registerer, opts ...BuildOption) (*Runtime, error) {
	o := buildOptions{backends: backend.FromConfig}
	for _, opt := range opts {
		opt(&o)
	}

	rc, err := cache.New(cache.Config{
		MaxSize:  cfg.Cache.MaxSize,
		WriteTTL: cfg.Cache.WriteTTL,
		IdleTTL:  cfg.Cache.IdleTTL,
		Version:  cfg.Cache.ExtractorVersion,
	})
	if err != nil {
		return nil, eris.Wrap(err, "engine: build cache")
	}

	text, err := textextract.NewExtractor(cfg.TextExtract)
	if err != nil {
		return nil, eris.Wrap(err, "engine: build text extractor")
	}

	backends, seeds, err := o.backends(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "engine: build backends")
	}

	backendPool := workers.New(ctx, "backend", cfg.Pools.Backend.Workers, cfg.Pools.Backend.Queue)
	batchPool := workers.New(ctx, "batch", cfg.Pools.Batch.Workers, cfg.Pools.Batch.Queue)
	warmupPool := workers.New(ctx, "warmup", cfg.Pools.Warmup.Workers, cfg.Pools.Warmup.Queue)
	rt := &Runtime{Cache: rc, Pools: []*workers.Pool{backendPool, batchPool, warmupPool}}

	rec := metrics.NewRecorder(reg)
	metrics.RegisterCache(reg, rc.Metrics)
	rt.Recorder = rec

	builder := prompt.NewBuilder(cfg.Consensus.PromptMaxRunes, prompt.DefaultMaxExamples)
	var strategies []strategy.Strategy
	if cfg.Orchestrator.DomainLookup {
		strategies = append(strategies, strategy.NewDomainLookup(st))
	}
	if cfg.Orchestrator.TextScan {
		strategies = append(strategies, strategy.TextScan{})
	}
	if len(backends) > 0 {
		svc := consensus.New(consensus.Config{
			QuorumSize:    cfg.Consensus.QuorumSize,
			Deadline:      cfg.Consensus.Deadline,
			MinTimeout:    cfg.Consensus.MinTimeout,
			MaxTimeout:    cfg.Consensus.MaxTimeout,
			LatencyFactor: cfg.Consensus.LatencyFactor,
		}, backendPool, backends, seeds)
		strategies = append(strategies, strategy.NewConsensus(svc, builder, st))

		ids := make([]string, len(backends))
		for i, b := range backends {
			ids[i] = b.ID()
		}
		metrics.RegisterTimeouts(reg, ids, svc.Timeouts().Get)

		single := backends[0]
		for _, b := range backends {
			if b.ID() == cfg.Orchestrator.SingleBackend {
				single = b
			}
		}
		strategies = append(strategies, strategy.NewSingleBackend(single, seeds[single.ID()], builder, st))
	}

	orch := orchestrator.New(strategy.NewRegistry(strategies...),
		orchestrator.WithCache(rc),
		orchestrator.WithSink(rec),
		orchestrator.WithThreshold(cfg.Orchestrator.EarlyExitConfidence),
	)

	pipeline := learning.New(st, cfg.Learning, learning.WithBatchPool(batchPool))
	rt.Learning = pipeline

	svc, err := New(Deps{
		Orchestrator: orch,
		Fallback:     fallback.FromOrchestrator(orch),
		Cache:        rc,
		Learning:     pipeline,
		Validator:    validate.New(),
		Store:        st,
		Text:         text,
		WarmupPool:   warmupPool,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc

	zap.L().Info("engine: built",
		zap.Int("strategies", len(strategies)),
		zap.Int("backends", len(backends)),
		zap.Int("cache_max_size", rc.MaxSize()),
		zap.String("cache_version", rc.Version()),
		zap.Int("pattern_threshold", pipeline.Threshold()),
		zap.String("text_provider", cfg.TextExtract.Provider),
	)
	return rt, nil
}
