// Package engine is the service facade over extraction, fallback,
// validation and learning.
package engine

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/cache"
	"github.com/sells-group/terms-extractor/internal/fallback"
	"github.com/sells-group/terms-extractor/internal/learning"
	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/orchestrator"
	"github.com/sells-group/terms-extractor/internal/store"
	"github.com/sells-group/terms-extractor/internal/textextract"
	"github.com/sells-group/terms-extractor/internal/validate"
	"github.com/sells-group/terms-extractor/internal/workers"
)

// Deps are the collaborators a Service is built from. Orchestrator, Learning
// and Store are required.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Fallback     *fallback.Chain
	Cache        *cache.ResultCache
	Learning     *learning.Pipeline
	Validator    *validate.Validator
	Store        store.Store
	Text         textextract.Extractor
	WarmupPool   *workers.Pool
}

// Service resolves documents and feeds corrections back into learning.
type Service struct {
	orch      *orchestrator.Orchestrator
	chain     *fallback.Chain
	cache     *cache.ResultCache
	learning  *learning.Pipeline
	validator *validate.Validator
	store     store.Store
	text      textextract.Extractor
	warmup    *workers.Pool
}

// New validates deps and returns a Service. A missing fallback chain is
// derived from the orchestrator.
func New(d Deps) (*Service, error) {
	if d.Orchestrator == nil {
		return nil, eris.New("engine: orchestrator is required")
	}
	if d.Learning == nil {
		return nil, eris.New("engine: learning pipeline is required")
	}
	if d.Store == nil {
		return nil, eris.New("engine: store is required")
	}
	if d.Fallback == nil {
		d.Fallback = fallback.FromOrchestrator(d.Orchestrator)
	}
	if d.Validator == nil {
		d.Validator = validate.New()
	}
	return &Service{
		orch:      d.Orchestrator,
		chain:     d.Fallback,
		cache:     d.Cache,
		learning:  d.Learning,
		validator: d.Validator,
		store:     d.Store,
		text:      d.Text,
		warmup:    d.WarmupPool,
	}, nil
}

// Response is a resolved result with its validation and trace.
type Response struct {
	EntityID   string                 `json:"entity_id"`
	Result     model.Result           `json:"result"`
	Validation model.ValidationReport `json:"validation"`
	Strategy   string                 `json:"strategy,omitempty"`
	Confidence int                    `json:"confidence"`
	CacheHit   bool                   `json:"cache_hit"`
	Fallback   bool                   `json:"fallback,omitempty"`
	Attempts   []orchestrator.Attempt `json:"attempts,omitempty"`
}

// prepare checks the entity and fills in document text. A text extraction
// failure is logged and the document continues without text, since the
// domain lookup does not need it.
func (s *Service) prepare(ctx context.Context, doc model.Document) (model.Document, error) {
	doc.EntityID = strings.TrimSpace(doc.EntityID)
	if doc.EntityID == "" {
		return doc, eris.New("engine: entity id is required")
	}
	if doc.Text != "" || len(doc.Content) == 0 {
		return doc, nil
	}

	text, err := textextract.Text(ctx, s.text, doc.Content)
	if err != nil {
		zap.L().Warn("engine: text extraction failed",
			zap.String("entity_id", doc.EntityID),
			zap.Error(err),
		)
		return doc, nil
	}
	doc.Text = text
	return doc, nil
}

// finish overlays learned patterns and validates the final result.
func (s *Service) finish(ctx context.Context, doc model.Document, resp *Response) *Response {
	enhanced, err := s.learning.ApplyLearnedPatterns(ctx, doc.EntityID, resp.Result)
	if err != nil {
		zap.L().Warn("engine: apply learned patterns",
			zap.String("entity_id", doc.EntityID),
			zap.Error(err),
		)
	} else {
		resp.Result = enhanced
	}
	resp.Result = resp.Result.Normalize()
	resp.Validation = s.validator.Validate(resp.Result, doc.Text, doc.EntityID)
	return resp
}

// Resolve runs the orchestrated path: cache, strategies in priority order,
// then the learned pattern overlay and validation.
func (s *Service) Resolve(ctx context.Context, doc model.Document) (*Response, error) {
	doc, err := s.prepare(ctx, doc)
	if err != nil {
		return nil, err
	}

	out := s.orch.ResolveDetailed(ctx, doc)
	resp := s.finish(ctx, doc, &Response{
		EntityID:   doc.EntityID,
		Result:     out.Result,
		Strategy:   out.Strategy,
		Confidence: out.Confidence,
		CacheHit:   out.CacheHit,
		Attempts:   out.Attempts,
	})

	zap.L().Info("engine: resolved",
		zap.String("entity_id", doc.EntityID),
		zap.String("strategy", resp.Strategy),
		zap.Int("confidence", resp.Confidence),
		zap.Bool("cache_hit", resp.CacheHit),
		zap.Int("validation_score", resp.Validation.TotalScore),
	)
	return resp, nil
}

// ResolveWithFallback runs the fallback chain. It only errors on a missing
// entity ID; exhausted chains come back flagged for manual review.
func (s *Service) ResolveWithFallback(ctx context.Context, doc model.Document) (*Response, error) {
	doc, err := s.prepare(ctx, doc)
	if err != nil {
		return nil, err
	}

	r := s.chain.Resolve(ctx, doc)
	resp := s.finish(ctx, doc, &Response{EntityID: doc.EntityID, Result: r, Fallback: true})
	if resp.Result.ManualReview {
		zap.L().Warn("engine: result needs manual review",
			zap.String("entity_id", doc.EntityID),
			zap.String("errors", resp.Result.Errors),
		)
	}
	return resp, nil
}

// LogCorrection records a human correction. Patterns are applied after the
// cache, so the correction takes effect on the next resolve.
func (s *Service) LogCorrection(ctx context.Context, c learning.Correction) (*model.CorrectionRecord, error) {
	return s.learning.LogCorrection(ctx, c)
}

// Statistics returns the learning summary.
func (s *Service) Statistics(ctx context.Context) (*model.Statistics, error) {
	return s.learning.Statistics(ctx)
}

// CacheReport is the cache metrics plus any health warnings.
type CacheReport struct {
	cache.Metrics
	Warnings []string `json:"warnings,omitempty"`
}

// CacheMetrics reports the result cache. Without a cache it is all zero.
func (s *Service) CacheMetrics() CacheReport {
	if s.cache == nil {
		return CacheReport{}
	}
	m := s.cache.Metrics()
	return CacheReport{Metrics: m, Warnings: m.Warnings(cache.DefaultHealthThresholds())}
}

// PurgeCache drops every cached result and returns how many there were.
func (s *Service) PurgeCache() int {
	if s.cache == nil {
		return 0
	}
	n := s.cache.Len()
	s.cache.Purge()
	zap.L().Info("engine: cache purged", zap.Int("entries", n))
	return n
}

// BatchLearn runs one batch learning pass.
func (s *Service) BatchLearn(ctx context.Context) (*learning.BatchReport, error) {
	return s.learning.BatchLearn(ctx)
}

// ProcessBacklog learns every pending correction in chunks.
func (s *Service) ProcessBacklog(ctx context.Context) (*learning.BacklogReport, error) {
	return s.learning.ProcessBacklog(ctx)
}

// Patterns lists learned patterns with their scores.
func (s *Service) Patterns(ctx context.Context, activeOnly bool) ([]learning.ScoredPattern, error) {
	return s.learning.Patterns(ctx, activeOnly)
}

// RegisterDocument stores a document so later warmups can pre-resolve it.
func (s *Service) RegisterDocument(ctx context.Context, doc model.Document) error {
	doc, err := s.prepare(ctx, doc)
	if err != nil {
		return err
	}
	if len(doc.Content) == 0 && doc.Text == "" {
		return eris.Errorf("engine: document %s has no content", doc.EntityID)
	}
	if len(doc.Content) == 0 {
		doc.Content = []byte(doc.Text)
	}
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return eris.Wrapf(err, "engine: register document %s", doc.EntityID)
	}
	zap.L().Info("engine: document registered",
		zap.String("entity_id", doc.EntityID),
		zap.Int("bytes", len(doc.Content)),
	)
	return nil
}

// warm fills the cache for doc. It stops short of the pattern overlay so
// warming does not count as applying patterns.
func (s *Service) warm(ctx context.Context, doc model.Document) error {
	doc, err := s.prepare(ctx, doc)
	if err != nil {
		return err
	}
	out := s.orch.ResolveDetailed(ctx, doc)
	zap.L().Debug("engine: warmed",
		zap.String("entity_id", doc.EntityID),
		zap.String("strategy", out.Strategy),
		zap.Bool("cache_hit", out.CacheHit),
	)
	return nil
}

// WarmupReport counts what a warmup queued.
type WarmupReport struct {
	Candidates int `json:"candidates"`
	Submitted  int `json:"submitted"`
	Rejected   int `json:"rejected"`
	Skipped    int `json:"skipped"`
}

// Warmup waits delay, then queues up to limit registered documents on the
// warmup pool so their results are cached. Mapped entities without a
// document are counted as skipped; the cache keys on document content.
func (s *Service) Warmup(ctx context.Context, delay time.Duration, limit int) (*WarmupReport, error) {
	if s.warmup == nil {
		return nil, eris.New("engine: no warmup pool configured")
	}
	if limit <= 0 {
		limit = 50
	}

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, eris.Wrap(ctx.Err(), "engine: warmup cancelled")
		case <-t.C:
		}
	}

	docs, err := s.store.ListDocuments(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "engine: list warmup documents")
	}
	report := &WarmupReport{Candidates: len(docs)}

	if len(docs) < limit {
		mappings, err := s.store.ListDomainMappings(ctx, limit)
		if err != nil {
			zap.L().Warn("engine: list warmup mappings", zap.Error(err))
		}
		have := make(map[string]bool, len(docs))
		for _, d := range docs {
			have[d.EntityID] = true
		}
		for _, m := range mappings {
			if report.Candidates >= limit {
				break
			}
			if !have[m.EntityID] {
				report.Candidates++
				report.Skipped++
			}
		}
	}

	var done, failed atomic.Int64
	for _, d := range docs {
		doc := d
		err := s.warmup.Submit(func(ctx context.Context) {
			if err := s.warm(ctx, doc); err != nil {
				failed.Add(1)
				zap.L().Warn("engine: warmup resolve failed",
					zap.String("entity_id", doc.EntityID),
					zap.Error(err),
				)
				return
			}
			if n := done.Add(1); n%10 == 0 {
				zap.L().Info("engine: warmup progress", zap.Int64("resolved", n))
			}
		})
		if err != nil {
			report.Rejected++
			continue
		}
		report.Submitted++
	}

	zap.L().Info("engine: warmup queued",
		zap.Int("candidates", report.Candidates),
		zap.Int("submitted", report.Submitted),
		zap.Int("rejected", report.Rejected),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}
