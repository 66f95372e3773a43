package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/terms-extractor/internal/config"
	"github.com/sells-group/terms-extractor/internal/consensus"
	"github.com/sells-group/terms-extractor/internal/model"
)

type fakeBackend struct {
	id    string
	calls atomic.Int64
}

func (b *fakeBackend) ID() string { return b.id }

func (b *fakeBackend) Invoke(context.Context, string) (model.Result, error) {
	b.calls.Add(1)
	return model.NewResult(map[model.Field]string{
		model.FieldCoverage: "종신",
		model.FieldPayment:  "10년납, 20년납",
		model.FieldAgeRange: "15~60",
		model.FieldRenewal:  "비갱신형",
		model.FieldNotes:    "주계약",
	}), nil
}

func testConfig() *config.Config {
	return &config.Config{
		Cache:        config.CacheConfig{MaxSize: 10},
		Orchestrator: config.OrchestratorConfig{DomainLookup: true, TextScan: true, SingleBackend: "b"},
		Consensus:    config.ConsensusConfig{QuorumSize: 2, Deadline: time.Second},
		Pools: config.PoolsConfig{
			Backend: config.PoolConfig{Workers: 2, Queue: 8},
			Batch:   config.PoolConfig{Workers: 1, Queue: 4},
			Warmup:  config.PoolConfig{Workers: 1, Queue: 4},
		},
	}
}

func TestBuild_WiresBackends(t *testing.T) {
	ctx := context.Background()
	a, b := &fakeBackend{id: "a"}, &fakeBackend{id: "b"}
	factory := func(*config.Config) ([]consensus.Backend, map[string]time.Duration, error) {
		return []consensus.Backend{a, b}, map[string]time.Duration{"a": time.Second, "b": time.Second}, nil
	}

	reg := prometheus.NewRegistry()
	rt, err := Build(ctx, testConfig(), newTestStore(t), reg, WithBackends(factory))
	require.NoError(t, err)
	defer rt.Close()
	require.Len(t, rt.Pools, 3)

	resp, err := rt.Service.Resolve(ctx, model.Document{EntityID: "P1", Text: "약관 본문"})
	require.NoError(t, err)
	assert.Equal(t, "Quorum Consensus", resp.Strategy)
	assert.Equal(t, "종신", resp.Result.Coverage)
	assert.Positive(t, a.calls.Load()+b.calls.Load())

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["terms_strategy_attempts_total"])
	assert.True(t, names["terms_cache_entries"])
	assert.True(t, names["terms_backend_timeout_seconds"])
}

func TestBuild_NoBackends(t *testing.T) {
	none := func(*config.Config) ([]consensus.Backend, map[string]time.Duration, error) {
		return nil, nil, nil
	}
	rt, err := Build(context.Background(), testConfig(), newTestStore(t), prometheus.NewRegistry(), WithBackends(none))
	require.NoError(t, err)
	defer rt.Close()

	resp, err := rt.Service.Resolve(context.Background(), model.Document{EntityID: "P1", Text: policyText})
	require.NoError(t, err)
	assert.Equal(t, "Text Scan", resp.Strategy)
}

func TestBuild_BackendError(t *testing.T) {
	broken := func(*config.Config) ([]consensus.Backend, map[string]time.Duration, error) {
		return nil, nil, errors.New("no api key")
	}
	_, err := Build(context.Background(), testConfig(), newTestStore(t), prometheus.NewRegistry(), WithBackends(broken))
	assert.ErrorContains(t, err, "engine: build backends")
}

func TestBuild_BadTextProvider(t *testing.T) {
	cfg := testConfig()
	cfg.TextExtract.Provider = "ocr"
	_, err := Build(context.Background(), cfg, newTestStore(t), prometheus.NewRegistry())
	assert.ErrorContains(t, err, "engine: build text extractor")
}
