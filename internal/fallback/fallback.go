// Package fallback tries progressively simpler extraction paths and, when all
// of them fall short, recovers what it can from the raw text for manual review.
package fallback

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/orchestrator"
	"github.com/sells-group/terms-extractor/internal/probe"
	"github.com/sells-group/terms-extractor/internal/strategy"
)

// Step is one link of the chain.
type Step struct {
	Name string
	Run  func(ctx context.Context, doc model.Document) (model.Result, error)
}

// Chain runs its steps in order and keeps the first minimally valid result.
type Chain struct {
	steps []Step
}

// New builds a chain from explicit steps.
func New(steps ...Step) *Chain {
	return &Chain{steps: steps}
}

// FromOrchestrator builds the standard chain: the orchestrated path, then the
// domain lookup, consensus and single-backend strategies on their own.
func FromOrchestrator(o *orchestrator.Orchestrator) *Chain {
	steps := []Step{{
		Name: "orchestrated",
		Run: func(ctx context.Context, doc model.Document) (model.Result, error) {
			return o.Resolve(ctx, doc), nil
		},
	}}
	for _, k := range []strategy.Kind{strategy.KindDomainLookup, strategy.KindConsensus, strategy.KindSingleBackend} {
		if s, ok := o.Registry().ByKind(k); ok {
			steps = append(steps, StrategyStep(s))
		}
	}
	return New(steps...)
}

// StrategyStep wraps a strategy, failing fast when it is unavailable.
func StrategyStep(s strategy.Strategy) Step {
	return Step{
		Name: s.Name(),
		Run: func(ctx context.Context, doc model.Document) (model.Result, error) {
			if !s.Available(ctx) {
				return model.Result{}, eris.Errorf("fallback: %s unavailable", s.Name())
			}
			return s.Extract(ctx, doc)
		},
	}
}

// Resolve never fails. It returns the first minimally valid result, or a
// partial recovery flagged for manual review carrying every step error.
func (c *Chain) Resolve(ctx context.Context, doc model.Document) model.Result {
	var errs []string
	for i, step := range c.steps {
		r, err := step.Run(ctx, doc)
		if err != nil {
			zap.L().Warn("fallback: step failed",
				zap.String("step", step.Name),
				zap.Int("position", i+1),
				zap.String("entity_id", doc.EntityID),
				zap.Error(err),
			)
			errs = append(errs, step.Name+": "+err.Error())
			continue
		}
		if r.MinimallyValid() {
			zap.L().Debug("fallback: step succeeded",
				zap.String("step", step.Name),
				zap.String("entity_id", doc.EntityID),
			)
			return r
		}
		zap.L().Debug("fallback: step result incomplete",
			zap.String("step", step.Name),
			zap.String("entity_id", doc.EntityID),
			zap.Int("filled", r.FilledCount()),
		)
	}

	zap.L().Warn("fallback: all steps fell short, recovering from text",
		zap.String("entity_id", doc.EntityID),
		zap.Int("errors", len(errs)),
	)
	return Recover(doc.Text, errs)
}

// Recover scans text directly and marks the result for manual review.
func Recover(text string, errs []string) model.Result {
	r := probe.Scan(text).
		WithNote(model.ManualReviewNote).
		WithSource(model.SourcePartialRecovery)
	r.ManualReview = true
	r.Errors = strings.Join(errs, "; ")
	return r
}
