package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ReportCache sweeps expired cache entries and logs the cache metrics every
// interval until ctx is done. Health warnings are logged at Warn.
func (s *Service) ReportCache(ctx context.Context, interval time.Duration) {
	if s.cache == nil {
		return
	}
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
			s.reportCache()
		}
	}
}

func (s *Service) reportCache() CacheReport {
	swept := s.cache.Sweep()
	report := s.CacheMetrics()
	zap.L().Info("engine: cache report",
		zap.Int("size", report.Size),
		zap.Int("max_size", report.MaxSize),
		zap.Float64("hit_rate", report.HitRate),
		zap.Int64("evictions", report.Evictions),
		zap.Int64("expirations", report.Expirations),
		zap.Int("swept", swept),
	)
	for _, w := range report.Warnings {
		zap.L().Warn("engine: cache health", zap.String("warning", w))
	}
	return report
}
