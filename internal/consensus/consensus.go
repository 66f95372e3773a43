// Package consensus fans a prompt out to several extraction backends and
// merges their answers by quorum and per-field majority vote.
package consensus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/workers"
)

// Backend is one automated extractor.
type Backend interface {
	ID() string
	Invoke(ctx context.Context, prompt string) (model.Result, error)
}

// Vote is the outcome of one backend call.
type Vote struct {
	BackendID string
	Result    model.Result
	Success   bool
	Elapsed   time.Duration
	Err       error

	index int
}

// Config controls quorum size, timing and timeout tuning.
type Config struct {
	QuorumSize    int
	Deadline      time.Duration
	MinTimeout    time.Duration
	MaxTimeout    time.Duration
	LatencyFactor float64
}

func (c Config) withDefaults() Config {
	if c.QuorumSize <= 0 {
		c.QuorumSize = 2
	}
	if c.Deadline <= 0 {
		c.Deadline = 30 * time.Second
	}
	if c.MinTimeout <= 0 {
		c.MinTimeout = 5 * time.Second
	}
	if c.MaxTimeout <= 0 {
		c.MaxTimeout = 20 * time.Second
	}
	if c.LatencyFactor <= 0 {
		c.LatencyFactor = 1.2
	}
	return c
}

// Service runs quorum rounds over a fixed set of backends.
type Service struct {
	cfg      Config
	backends []Backend
	pool     *workers.Pool
	timeouts *TimeoutTable
}

// New creates a Service. seeds holds each backend's initial timeout; pool may
// be nil, in which case calls run on their own goroutines.
func New(cfg Config, pool *workers.Pool, backends []Backend, seeds map[string]time.Duration) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		cfg:      cfg,
		backends: backends,
		pool:     pool,
		timeouts: NewTimeoutTable(seeds, cfg.MinTimeout, cfg.MaxTimeout, cfg.LatencyFactor),
	}
}

// Backends returns the declared backends in order.
func (s *Service) Backends() []Backend {
	return s.backends
}

// Timeouts exposes the adaptive timeout table.
func (s *Service) Timeouts() *TimeoutTable {
	return s.timeouts
}

// ResolveByQuorum asks every backend concurrently and merges the answers. It
// returns as soon as a quorum agrees on the key fields, or when every
// backend has answered, or at the global deadline. Backend failures never
// surface as errors.
func (s *Service) ResolveByQuorum(ctx context.Context, prompt, entityID string) model.Result {
	n := len(s.backends)
	if n == 0 {
		return model.EmptyResult("no extraction backends configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Deadline)
	defer cancel()

	start := time.Now()
	ch := make(chan Vote, n)
	for i, b := range s.backends {
		s.dispatch(ctx, i, b, prompt, ch)
	}

	votes := make([]*Vote, n)
	received := 0
	early := false
collect:
	for received < n {
		select {
		case v := <-ch:
			votes[v.index] = &v
			received++
			if received >= 2 && hasQuorum(votes, s.cfg.QuorumSize) {
				early = received < n
				cancel()
				break collect
			}
		case <-ctx.Done():
			break collect
		}
	}

	result, succeeded, errs := merge(s.backends, votes)
	log := zap.L().With(
		zap.String("entity_id", entityID),
		zap.Int("succeeded", succeeded),
		zap.Int("backends", n),
		zap.Duration("elapsed", time.Since(start)),
	)
	if succeeded == 0 {
		log.Warn("consensus: no backend succeeded", zap.Strings("errors", errs))
		note := fmt.Sprintf("all backends failed (0/%d)", n)
		out := model.EmptyResult(note)
		out.Errors = strings.Join(errs, "; ")
		return out
	}

	log.Info("consensus: round complete", zap.Bool("early_quorum", early))
	return result.
		WithNote(fmt.Sprintf("%s (%d/%d succeeded)", model.ConsensusMarker, succeeded, n)).
		WithSource(model.SourceConsensus)
}

func (s *Service) dispatch(ctx context.Context, i int, b Backend, prompt string, ch chan<- Vote) {
	task := func(_ context.Context) {
		v := s.invoke(ctx, b, prompt)
		v.index = i
		ch <- v
	}
	if s.pool == nil {
		go task(ctx)
		return
	}
	if err := s.pool.Submit(task); err != nil {
		ch <- Vote{BackendID: b.ID(), Err: err, index: i}
	}
}

func (s *Service) invoke(ctx context.Context, b Backend, prompt string) Vote {
	id := b.ID()
	if err := ctx.Err(); err != nil {
		return Vote{BackendID: id, Err: err}
	}

	timeout := s.timeouts.Get(id)
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := b.Invoke(cctx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		zap.L().Debug("consensus: backend failed",
			zap.String("backend", id),
			zap.Duration("timeout", timeout),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return Vote{BackendID: id, Elapsed: elapsed, Err: err}
	}

	next := s.timeouts.Observe(id, elapsed)
	zap.L().Debug("consensus: backend answered",
		zap.String("backend", id),
		zap.Duration("elapsed", elapsed),
		zap.Duration("next_timeout", next),
	)
	return Vote{BackendID: id, Result: res.Normalize(), Success: true, Elapsed: elapsed}
}

// hasQuorum reports whether at least size successful votes agree on every
// key field with known values.
func hasQuorum(votes []*Vote, size int) bool {
	groups := make(map[string]int)
	for _, v := range votes {
		if v == nil || !v.Success {
			continue
		}
		parts := make([]string, 0, len(model.KeyFields))
		known := true
		for _, f := range model.KeyFields {
			val := v.Result.Get(f)
			if model.IsSentinel(val) {
				known = false
				break
			}
			parts = append(parts, val)
		}
		if !known {
			continue
		}
		key := strings.Join(parts, "\x00")
		groups[key]++
		if groups[key] >= size {
			return true
		}
	}
	return false
}

// merge votes field by field over the successful votes, in declared order.
func merge(backends []Backend, votes []*Vote) (model.Result, int, []string) {
	var ok []*Vote
	var errs []string
	for i, v := range votes {
		switch {
		case v == nil:
			errs = append(errs, backends[i].ID()+": no answer before deadline")
		case v.Success:
			ok = append(ok, v)
		case v.Err != nil:
			errs = append(errs, v.BackendID+": "+v.Err.Error())
		}
	}

	out := model.EmptyResult("")
	for _, f := range model.AllFields {
		out = out.With(f, majority(ok, f))
	}
	return out, len(ok), errs
}

func majority(votes []*Vote, f model.Field) string {
	counts := make(map[string]int)
	var order []string
	for _, v := range votes {
		val := v.Result.Get(f)
		if model.IsSentinel(val) {
			continue
		}
		if counts[val] == 0 {
			order = append(order, val)
		}
		counts[val]++
	}
	best, bestCount := model.Sentinel, 0
	for _, val := range order {
		if counts[val] > bestCount {
			best, bestCount = val, counts[val]
		}
	}
	return best
}
