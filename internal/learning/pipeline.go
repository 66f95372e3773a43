// Package learning turns human corrections into scored per-entity patterns,
// few-shot examples and accuracy statistics.
package learning

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/config"
	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/store"
	"github.com/sells-group/terms-extractor/internal/workers"
)

// AppliedNote is appended to results that had learned patterns overlaid.
const AppliedNote = "learned pattern applied"

// Correction is a caller-submitted fix of one extraction.
type Correction struct {
	EntityID   string               `json:"entity_id"`
	Original   model.Result         `json:"original"`
	Corrected  model.Result         `json:"corrected"`
	SourceText string               `json:"source_text,omitempty"`
	Reason     string               `json:"reason,omitempty"`
	Source     model.LearningSource `json:"source,omitempty"`
}

// Pipeline records corrections and serves learned patterns.
type Pipeline struct {
	store store.Store
	cfg   config.LearningConfig
	batch *workers.Pool
	now   func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithNow injects the clock used for scoring and statistics.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithBatchPool sets the pool periodic batch passes run on. Without one the
// periodic trigger is skipped.
func WithBatchPool(pool *workers.Pool) Option {
	return func(p *Pipeline) { p.batch = pool }
}

// New creates a pipeline over st. Zero config values take their defaults.
func New(st store.Store, cfg config.LearningConfig, opts ...Option) *Pipeline {
	if cfg.PatternThreshold <= 0 {
		cfg.PatternThreshold = DefaultThreshold
	}
	if cfg.BatchEvery <= 0 {
		cfg.BatchEvery = 10
	}
	if cfg.SeedConfidence <= 0 {
		cfg.SeedConfidence = 80
	}
	if cfg.SeedPriority <= 0 {
		cfg.SeedPriority = 50
	}
	if cfg.InitialAccuracy <= 0 {
		cfg.InitialAccuracy = 75
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	if cfg.BacklogLimit <= 0 {
		cfg.BacklogLimit = 1000
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 7 * 24 * time.Hour
	}
	if cfg.EstimateMultiple <= 0 {
		cfg.EstimateMultiple = 10
	}

	p := &Pipeline{store: st, cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Threshold is the minimum score a pattern needs to be applied.
func (p *Pipeline) Threshold() int {
	return p.cfg.PatternThreshold
}

// LogCorrection persists a correction, learns patterns for the fields it
// changed and records a few-shot example when useful. Every BatchEvery-th
// correction queues a batch pass.
func (p *Pipeline) LogCorrection(ctx context.Context, c Correction) (*model.CorrectionRecord, error) {
	if strings.TrimSpace(c.EntityID) == "" {
		return nil, eris.New("learning: entity id is required")
	}
	if c.Source == "" {
		c.Source = model.LearningSourceUserCorrection
	}

	rec := &model.CorrectionRecord{
		EntityID:   c.EntityID,
		Original:   c.Original.Normalize(),
		Corrected:  c.Corrected.Normalize(),
		SourceText: c.SourceText,
		Reason:     c.Reason,
		Source:     c.Source,
		CreatedAt:  p.now().UTC(),
	}
	if err := p.store.InsertCorrection(ctx, rec); err != nil {
		return nil, eris.Wrapf(err, "learning: log correction for %s", c.EntityID)
	}

	learned, err := p.learn(ctx, *rec)
	if err != nil {
		return rec, err
	}
	if err := p.confirm(ctx, *rec); err != nil {
		zap.L().Warn("learning: pattern confirmation failed",
			zap.String("entity_id", rec.EntityID),
			zap.Error(err),
		)
	}
	if _, err := p.maybeAddExample(ctx, *rec, false); err != nil {
		zap.L().Warn("learning: example generation failed",
			zap.String("entity_id", rec.EntityID),
			zap.Error(err),
		)
	}

	zap.L().Info("learning: correction logged",
		zap.String("entity_id", rec.EntityID),
		zap.String("correction_id", rec.ID),
		zap.Int("patterns", learned),
	)

	p.maybeTriggerBatch(ctx)
	return rec, nil
}

// learn upserts a pattern for every changed field with a known corrected
// value and marks the correction learned. It returns the pattern count.
func (p *Pipeline) learn(ctx context.Context, rec model.CorrectionRecord) (int, error) {
	n := 0
	for _, f := range rec.ChangedFields() {
		value := rec.Corrected.Get(f)
		if model.IsSentinel(value) {
			continue
		}
		_, err := p.store.UpsertPattern(ctx, store.PatternUpsert{
			EntityID:       rec.EntityID,
			Field:          f,
			Value:          value,
			Source:         rec.Source,
			CorrectionID:   rec.ID,
			SeedConfidence: p.cfg.SeedConfidence,
			SeedPriority:   p.cfg.SeedPriority,
		})
		if err != nil {
			return n, eris.Wrapf(err, "learning: upsert %s pattern for %s", f, rec.EntityID)
		}
		n++
	}
	if _, err := p.store.MarkCorrectionLearned(ctx, rec.ID, p.now().UTC()); err != nil {
		return n, eris.Wrapf(err, "learning: mark correction %s learned", rec.ID)
	}
	return n, nil
}

// confirm credits a success to every active pattern whose value the
// reviewer left unchanged in the corrected result.
func (p *Pipeline) confirm(ctx context.Context, rec model.CorrectionRecord) error {
	changed := make(map[model.Field]bool)
	for _, f := range rec.ChangedFields() {
		changed[f] = true
	}
	patterns, err := p.store.ListActivePatterns(ctx, rec.EntityID)
	if err != nil {
		return eris.Wrapf(err, "learning: list patterns for %s", rec.EntityID)
	}
	for _, pat := range patterns {
		if changed[pat.Field] || model.IsSentinel(pat.Value) || rec.Corrected.Get(pat.Field) != pat.Value {
			continue
		}
		if err := p.store.IncrementSuccessCount(ctx, pat.ID); err != nil {
			return eris.Wrapf(err, "learning: confirm pattern %s", pat.ID)
		}
	}
	return nil
}

func (p *Pipeline) maybeTriggerBatch(ctx context.Context) {
	if p.batch == nil {
		return
	}
	total, err := p.store.CountCorrections(ctx)
	if err != nil {
		zap.L().Warn("learning: count corrections failed", zap.Error(err))
		return
	}
	if total == 0 || total%p.cfg.BatchEvery != 0 {
		return
	}
	err = p.batch.Submit(func(ctx context.Context) {
		if _, err := p.BatchLearn(ctx); err != nil {
			zap.L().Error("learning: batch pass failed", zap.Error(err))
		}
	})
	if err != nil {
		zap.L().Warn("learning: batch pass not queued", zap.Int("total", total), zap.Error(err))
	}
}

// ApplyLearnedPatterns overlays the entity's active patterns that score at
// least the threshold onto raw. Each applied pattern has its apply count
// incremented.
func (p *Pipeline) ApplyLearnedPatterns(ctx context.Context, entityID string, raw model.Result) (model.Result, error) {
	patterns, err := p.store.ListActivePatterns(ctx, entityID)
	if err != nil {
		return raw, eris.Wrapf(err, "learning: list patterns for %s", entityID)
	}

	now := p.now()
	applied := 0
	for _, pat := range patterns {
		if !pat.Field.IsStructured() || model.IsSentinel(pat.Value) {
			continue
		}
		if Score(pat, now) < p.cfg.PatternThreshold {
			continue
		}
		raw = raw.With(pat.Field, pat.Value)
		applied++
		if err := p.store.IncrementApplyCount(ctx, pat.ID); err != nil {
			zap.L().Warn("learning: increment apply count failed",
				zap.String("pattern_id", pat.ID),
				zap.Error(err),
			)
		}
	}

	if applied > 0 {
		raw.PatternEnhanced = true
		raw = raw.WithNote(AppliedNote)
		zap.L().Debug("learning: patterns applied",
			zap.String("entity_id", entityID),
			zap.Int("count", applied),
		)
	}
	return raw, nil
}

// BatchReport summarizes one batch pass.
type BatchReport struct {
	Processed       int                           `json:"processed"`
	Failed          int                           `json:"failed"`
	Issues          map[Issue]int                 `json:"issues"`
	TopEntities     []model.EntityCorrectionCount `json:"top_entities"`
	ExamplesCreated int                           `json:"examples_created"`
}

// BatchLearn learns up to one chunk of unlearned corrections, analyzes the
// issues they and the most-corrected entities' latest corrections reveal,
// and refreshes few-shot examples for those entities.
func (p *Pipeline) BatchLearn(ctx context.Context) (*BatchReport, error) {
	report := &BatchReport{Issues: make(map[Issue]int)}
	seen := make(map[string]bool)

	pending, err := p.store.ListUnlearnedCorrections(ctx, p.cfg.ChunkSize)
	if err != nil {
		return nil, eris.Wrap(err, "learning: list unlearned corrections")
	}
	for _, rec := range pending {
		seen[rec.ID] = true
		p.countIssues(report, rec)
		if _, err := p.learn(ctx, rec); err != nil {
			report.Failed++
			zap.L().Warn("learning: batch learn failed", zap.String("correction_id", rec.ID), zap.Error(err))
			continue
		}
		report.Processed++
	}

	since := p.now().Add(-30 * 24 * time.Hour)
	top, err := p.store.TopCorrectedEntities(ctx, since, p.cfg.TopK)
	if err != nil {
		return report, eris.Wrap(err, "learning: top corrected entities")
	}
	report.TopEntities = top

	for _, e := range top {
		latest, err := p.store.LatestCorrection(ctx, e.EntityID)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				continue
			}
			return report, eris.Wrapf(err, "learning: latest correction for %s", e.EntityID)
		}
		if !seen[latest.ID] {
			p.countIssues(report, *latest)
		}
		created, err := p.maybeAddExample(ctx, *latest, true)
		if err != nil {
			zap.L().Warn("learning: batch example failed", zap.String("entity_id", e.EntityID), zap.Error(err))
			continue
		}
		if created {
			report.ExamplesCreated++
		}
	}

	zap.L().Info("learning: batch pass complete",
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed),
		zap.Int("duplicated_prefix", report.Issues[IssueDuplicatedPrefix]),
		zap.Int("coverage_payment_mismatch", report.Issues[IssueCoveragePaymentMismatch]),
		zap.Int("missed_field", report.Issues[IssueMissedField]),
		zap.Int("examples", report.ExamplesCreated),
	)
	return report, nil
}

func (p *Pipeline) countIssues(report *BatchReport, rec model.CorrectionRecord) {
	for _, issue := range Analyze(rec) {
		report.Issues[issue]++
	}
}

// BacklogReport summarizes a backlog run.
type BacklogReport struct {
	Fetched   int `json:"fetched"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Chunks    int `json:"chunks"`
}

// ProcessBacklog learns up to BacklogLimit unlearned corrections in chunks of
// ChunkSize, then refreshes the daily statistics. A canceled context stops
// between chunks.
func (p *Pipeline) ProcessBacklog(ctx context.Context) (*BacklogReport, error) {
	pending, err := p.store.ListUnlearnedCorrections(ctx, p.cfg.BacklogLimit)
	if err != nil {
		return nil, eris.Wrap(err, "learning: list backlog")
	}
	report := &BacklogReport{Fetched: len(pending)}
	if len(pending) == 0 {
		return report, nil
	}

	for start := 0; start < len(pending); start += p.cfg.ChunkSize {
		if err := ctx.Err(); err != nil {
			return report, eris.Wrap(err, "learning: backlog interrupted")
		}
		end := min(start+p.cfg.ChunkSize, len(pending))
		for _, rec := range pending[start:end] {
			if _, err := p.learn(ctx, rec); err != nil {
				report.Failed++
				zap.L().Warn("learning: backlog item failed", zap.String("correction_id", rec.ID), zap.Error(err))
				continue
			}
			report.Succeeded++
		}
		report.Chunks++
		zap.L().Debug("learning: backlog chunk done",
			zap.Int("chunk", report.Chunks),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
		)
	}

	if _, err := p.UpdateStatistics(ctx); err != nil {
		return report, err
	}
	zap.L().Info("learning: backlog processed",
		zap.Int("fetched", report.Fetched),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Maintain deactivates patterns that keep scoring poorly after enough use.
// It returns how many were deactivated.
func (p *Pipeline) Maintain(ctx context.Context) (int, error) {
	patterns, err := p.store.ListPatterns(ctx, true)
	if err != nil {
		return 0, eris.Wrap(err, "learning: list patterns")
	}
	now := p.now()
	retired := 0
	for _, pat := range patterns {
		if pat.ApplyCount < retireApplications || Score(pat, now) >= retireScore {
			continue
		}
		if err := p.store.DeactivatePattern(ctx, pat.ID); err != nil {
			return retired, eris.Wrapf(err, "learning: deactivate pattern %s", pat.ID)
		}
		retired++
	}
	if retired > 0 {
		zap.L().Info("learning: patterns retired", zap.Int("count", retired))
	}
	return retired, nil
}

// Patterns returns every stored pattern with its current score.
func (p *Pipeline) Patterns(ctx context.Context, activeOnly bool) ([]ScoredPattern, error) {
	patterns, err := p.store.ListPatterns(ctx, activeOnly)
	if err != nil {
		return nil, eris.Wrap(err, "learning: list patterns")
	}
	return Rate(patterns, p.now()), nil
}
