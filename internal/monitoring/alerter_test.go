package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/terms-extractor/internal/cache"
	"github.com/sells-group/terms-extractor/internal/config"
	"github.com/sells-group/terms-extractor/internal/metrics"
	"github.com/sells-group/terms-extractor/internal/workers"
)

func healthyCache() cache.Metrics {
	return cache.Metrics{Size: 10, MaxSize: 100, HitCount: 80, MissCount: 20, HitRate: 0.8}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		Cache: healthyCache(),
		Strategies: []metrics.StrategyStats{
			{Strategy: "consensus", Attempts: 40, Successes: 30, SuccessRate: 0.75},
		},
		Pools: []workers.Stats{{Name: "backend", Workers: 4}},
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_CacheHitRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		Cache: cache.Metrics{Size: 10, MaxSize: 100, HitCount: 20, MissCount: 180, HitRate: 0.1},
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCacheHitRate, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "10.0%")
}

func TestAlerter_Evaluate_CacheHitRateNeedsRequests(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		Cache: cache.Metrics{Size: 1, MaxSize: 100, HitCount: 1, MissCount: 9, HitRate: 0.1},
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_CacheFull(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		Cache: cache.Metrics{Size: 95, MaxSize: 100, HitCount: 90, MissCount: 10, HitRate: 0.9},
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCacheFull, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "95/100")
}

func TestAlerter_Evaluate_StrategySuccessRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		Cache: healthyCache(),
		Strategies: []metrics.StrategyStats{
			{Strategy: "consensus", Attempts: 25, Successes: 10, SuccessRate: 0.4},
			{Strategy: "single", Attempts: 19, Successes: 1, SuccessRate: 1.0 / 19},
			{Strategy: "lookup", Attempts: 100, Successes: 50, SuccessRate: 0.5},
		},
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStrategySuccessRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Equal(t, "consensus", alerts[0].Details["strategy"])
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_PoolRejections(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		Cache: healthyCache(),
		Pools: []workers.Stats{{Name: "warmup", Rejected: 3}, {Name: "batch"}},
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertPoolRejections, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "warmup")
}

func TestAlerter_Evaluate_CustomThresholds(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{MinStrategySuccess: 0.9, MinAttempts: 5})

	snap := &MetricsSnapshot{
		Cache: healthyCache(),
		Strategies: []metrics.StrategyStats{
			{Strategy: "lookup", Attempts: 10, Successes: 8, SuccessRate: 0.8},
		},
	}
	assert.Len(t, a.Evaluate(snap), 1)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	alerts := []Alert{
		{Type: AlertCacheHitRate, Severity: "medium", Message: "test alert 1"},
		{Type: AlertStrategySuccessRate, Severity: "high", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertCacheFull, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), nil))
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertCacheFull, Message: "test"}})
	assert.Equal(t, 0, sent)
}
