package strategy

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/consensus"
	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/prompt"
)

// ExampleSource supplies verified examples to include in prompts.
type ExampleSource interface {
	ListExamples(ctx context.Context, entityID string, limit int) ([]model.LearningExample, error)
}

// promptFor builds the prompt, degrading to no examples if they cannot be
// read.
func promptFor(ctx context.Context, b prompt.Builder, ex ExampleSource, doc model.Document) string {
	var examples []model.LearningExample
	if ex != nil {
		var err error
		examples, err = ex.ListExamples(ctx, doc.EntityID, b.MaxExamples)
		if err != nil {
			zap.L().Warn("strategy: load examples", zap.String("entity_id", doc.EntityID), zap.Error(err))
		}
	}
	return b.Build(doc.EntityID, doc.Text, examples)
}

// Consensus asks every backend and votes.
type Consensus struct {
	svc      *consensus.Service
	builder  prompt.Builder
	examples ExampleSource
}

// NewConsensus creates the quorum strategy.
func NewConsensus(svc *consensus.Service, builder prompt.Builder, examples ExampleSource) *Consensus {
	return &Consensus{svc: svc, builder: builder, examples: examples}
}

func (c *Consensus) Name() string  { return "Quorum Consensus" }
func (c *Consensus) Kind() Kind    { return KindConsensus }
func (c *Consensus) Priority() int { return 3 }

func (c *Consensus) Available(context.Context) bool {
	return c.svc != nil && len(c.svc.Backends()) > 0
}

func (c *Consensus) Extract(ctx context.Context, doc model.Document) (model.Result, error) {
	r := c.svc.ResolveByQuorum(ctx, promptFor(ctx, c.builder, c.examples, doc), doc.EntityID)
	if r.IsEmpty() && r.Errors != "" {
		return r, eris.Errorf("strategy: consensus: %s", r.Errors)
	}
	return r, nil
}

func (c *Consensus) ScoreConfidence(r model.Result) int {
	return modelScore(r)
}

// SingleBackend asks one backend under its own timeout.
type SingleBackend struct {
	backend  consensus.Backend
	timeout  time.Duration
	builder  prompt.Builder
	examples ExampleSource
}

// NewSingleBackend creates the single-backend strategy.
func NewSingleBackend(b consensus.Backend, timeout time.Duration, builder prompt.Builder, examples ExampleSource) *SingleBackend {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &SingleBackend{backend: b, timeout: timeout, builder: builder, examples: examples}
}

func (s *SingleBackend) Name() string                   { return "Single Backend" }
func (s *SingleBackend) Kind() Kind                     { return KindSingleBackend }
func (s *SingleBackend) Priority() int                  { return 4 }
func (s *SingleBackend) Available(context.Context) bool { return s.backend != nil }

func (s *SingleBackend) Extract(ctx context.Context, doc model.Document) (model.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r, err := s.backend.Invoke(ctx, promptFor(ctx, s.builder, s.examples, doc))
	if err != nil {
		return model.Result{}, eris.Wrapf(err, "strategy: single backend %s", s.backend.ID())
	}
	return r.WithNote("single backend " + s.backend.ID()).WithSource(model.SourceSingleBackend), nil
}

func (s *SingleBackend) ScoreConfidence(r model.Result) int {
	return modelScore(r)
}
