package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertCacheHitRate        AlertType = "cache_hit_rate"
	AlertCacheFull           AlertType = "cache_full"
	AlertStrategySuccessRate AlertType = "strategy_success_rate"
	AlertPoolRejections      AlertType = "pool_rejections"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter. Zero thresholds take the defaults: 50%
// cache hit rate over 100 requests, 90% fill, 50% strategy success over 20
// attempts.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	if cfg.MinHitRate <= 0 {
		cfg.MinHitRate = 0.5
	}
	if cfg.MinRequests <= 0 {
		cfg.MinRequests = 100
	}
	if cfg.MaxFillRatio <= 0 {
		cfg.MaxFillRatio = 0.9
	}
	if cfg.MinStrategySuccess <= 0 {
		cfg.MinStrategySuccess = 0.5
	}
	if cfg.MinAttempts <= 0 {
		cfg.MinAttempts = 20
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	c := snap.Cache
	if c.Requests() >= a.cfg.MinRequests && c.HitRate < a.cfg.MinHitRate {
		alerts = append(alerts, Alert{
			Type:     AlertCacheHitRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Cache hit rate %.1f%% below threshold %.1f%% (%d requests)",
				c.HitRate*100, a.cfg.MinHitRate*100, c.Requests(),
			),
			Details: map[string]any{
				"hit_rate":  c.HitRate,
				"threshold": a.cfg.MinHitRate,
				"requests":  c.Requests(),
			},
			Timestamp: now,
		})
	}

	if c.FillRatio() > a.cfg.MaxFillRatio {
		alerts = append(alerts, Alert{
			Type:     AlertCacheFull,
			Severity: "low",
			Message:  fmt.Sprintf("Cache nearly full: %d/%d entries", c.Size, c.MaxSize),
			Details: map[string]any{
				"size":     c.Size,
				"max_size": c.MaxSize,
			},
			Timestamp: now,
		})
	}

	for _, s := range snap.Strategies {
		if s.Attempts < a.cfg.MinAttempts || s.SuccessRate >= a.cfg.MinStrategySuccess {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     AlertStrategySuccessRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Strategy %s success rate %.1f%% below threshold %.1f%% (%d/%d attempts)",
				s.Strategy, s.SuccessRate*100, a.cfg.MinStrategySuccess*100, s.Successes, s.Attempts,
			),
			Details: map[string]any{
				"strategy":     s.Strategy,
				"success_rate": s.SuccessRate,
				"attempts":     s.Attempts,
			},
			Timestamp: now,
		})
	}

	for _, p := range snap.Pools {
		if p.Rejected == 0 {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     AlertPoolRejections,
			Severity: "medium",
			Message:  fmt.Sprintf("Worker pool %s rejected %d tasks", p.Name, p.Rejected),
			Details: map[string]any{
				"pool":     p.Name,
				"rejected": p.Rejected,
				"queued":   p.Queued,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
