package learning

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/store"
)

const maxAccuracy = 99.0

// UpdateStatistics computes today's statistics and upserts the daily row.
func (p *Pipeline) UpdateStatistics(ctx context.Context) (*model.DailyStats, error) {
	st, err := p.compute(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.store.SaveDailyStats(ctx, *st); err != nil {
		return nil, eris.Wrap(err, "learning: save daily stats")
	}
	zap.L().Debug("learning: statistics updated",
		zap.Float64("current_accuracy", st.CurrentAccuracy),
		zap.Int("total_corrections", st.TotalCorrections),
	)
	return st, nil
}

// Statistics returns the live learning summary. The accuracy estimate is
// only meaningful as a trend, so it is compared with the latest saved daily
// row when one exists.
func (p *Pipeline) Statistics(ctx context.Context) (*model.Statistics, error) {
	st, err := p.compute(ctx)
	if err != nil {
		return nil, err
	}
	out := &model.Statistics{
		TotalCorrections:    st.TotalCorrections,
		TotalPatterns:       st.TotalPatterns,
		TotalExamples:       st.TotalExamples,
		CurrentAccuracy:     st.CurrentAccuracy,
		AccuracyImprovement: st.AccuracyImprovement,
		FieldAccuracy:       st.FieldAccuracy,
	}

	last, err := p.store.LatestDailyStats(ctx)
	switch {
	case eris.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, eris.Wrap(err, "learning: latest daily stats")
	default:
		out.Trend = &model.AccuracyTrend{
			Since:    last.Date,
			Accuracy: last.CurrentAccuracy,
			Change:   round1(st.CurrentAccuracy - last.CurrentAccuracy),
		}
	}
	return out, nil
}

func (p *Pipeline) compute(ctx context.Context) (*model.DailyStats, error) {
	now := p.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	total, err := p.store.CountCorrections(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "learning: count corrections")
	}
	recent, err := p.store.CountCorrectionsSince(ctx, now.Add(-p.cfg.RecentWindow))
	if err != nil {
		return nil, eris.Wrap(err, "learning: count recent corrections")
	}
	today, err := p.store.CountCorrectionsSince(ctx, day)
	if err != nil {
		return nil, eris.Wrap(err, "learning: count daily corrections")
	}
	byField, err := p.store.CountPatternsByField(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "learning: count patterns")
	}
	examples, err := p.store.CountExamples(ctx, "")
	if err != nil {
		return nil, eris.Wrap(err, "learning: count examples")
	}

	patterns := 0
	for _, n := range byField {
		patterns += n
	}
	current := p.currentAccuracy(total, recent)
	return &model.DailyStats{
		Date:                day,
		TotalCorrections:    total,
		TotalPatterns:       patterns,
		TotalExamples:       examples,
		InitialAccuracy:     p.cfg.InitialAccuracy,
		CurrentAccuracy:     current,
		AccuracyImprovement: round1(current - p.cfg.InitialAccuracy),
		DailyCorrections:    today,
		FieldAccuracy:       p.fieldAccuracy(total, byField),
		UpdatedAt:           now,
	}, nil
}

// currentAccuracy estimates accuracy from the recent correction rate: with
// an estimated EstimateMultiple extractions per correction, accuracy is the
// share of estimated extractions that needed none. Without recent
// corrections there is nothing to estimate from and the initial accuracy
// stands.
func (p *Pipeline) currentAccuracy(total, recent int) float64 {
	if total == 0 || recent == 0 {
		return p.cfg.InitialAccuracy
	}
	est := float64(p.cfg.EstimateMultiple * recent)
	acc := (est - float64(recent)) / est * 100
	return round1(math.Max(0, math.Min(acc, maxAccuracy)))
}

// fieldAccuracy is initial + min(2 × patterns for the field, 20), plus 10
// when the field has fewer than 5 estimated corrections, capped at 99.
func (p *Pipeline) fieldAccuracy(total int, byField map[model.Field]int) map[model.Field]float64 {
	perField := max(total/len(model.StructuredFields), 1)
	out := make(map[model.Field]float64, len(model.StructuredFields))
	for _, f := range model.StructuredFields {
		acc := p.cfg.InitialAccuracy + float64(min(2*byField[f], 20))
		if perField < 5 {
			acc += 10
		}
		out[f] = round1(math.Min(acc, maxAccuracy))
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
