package learning

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scheduler runs the periodic backlog, statistics and maintenance jobs.
type Scheduler struct {
	pipeline *Pipeline
	backlog  time.Duration
	stats    time.Duration
	maintain time.Duration
}

// NewScheduler creates a scheduler with the pipeline's configured intervals.
// Zero intervals fall back to daily backlog, hourly statistics and weekly
// maintenance.
func NewScheduler(p *Pipeline) *Scheduler {
	s := &Scheduler{
		pipeline: p,
		backlog:  p.cfg.BacklogInterval,
		stats:    p.cfg.StatsInterval,
		maintain: p.cfg.MaintainInterval,
	}
	if s.backlog <= 0 {
		s.backlog = 24 * time.Hour
	}
	if s.stats <= 0 {
		s.stats = time.Hour
	}
	if s.maintain <= 0 {
		s.maintain = 7 * 24 * time.Hour
	}
	return s
}

// Run blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "learning.scheduler"))
	log.Info("starting learning scheduler",
		zap.Duration("backlog", s.backlog),
		zap.Duration("stats", s.stats),
		zap.Duration("maintain", s.maintain),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		every(ctx, s.backlog, func(ctx context.Context) {
			if _, err := s.pipeline.ProcessBacklog(ctx); err != nil {
				log.Error("learning: scheduled backlog failed", zap.Error(err))
			}
		})
		return nil
	})
	g.Go(func() error {
		every(ctx, s.stats, func(ctx context.Context) {
			if _, err := s.pipeline.UpdateStatistics(ctx); err != nil {
				log.Error("learning: scheduled statistics update failed", zap.Error(err))
			}
		})
		return nil
	})
	g.Go(func() error {
		every(ctx, s.maintain, func(ctx context.Context) {
			if _, err := s.pipeline.Maintain(ctx); err != nil {
				log.Error("learning: scheduled maintenance failed", zap.Error(err))
			}
		})
		return nil
	})
	_ = g.Wait()
	log.Info("learning scheduler stopped")
}

func every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
