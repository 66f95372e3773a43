// Package strategy defines the extraction strategies and the registry that
// orders them by priority.
package strategy

import (
	"context"
	"sort"

	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/probe"
)

// Kind identifies a strategy independently of its display name.
type Kind int

const (
	KindDomainLookup Kind = iota + 1
	KindTextScan
	KindConsensus
	KindSingleBackend
)

func (k Kind) String() string {
	switch k {
	case KindDomainLookup:
		return "domain_lookup"
	case KindTextScan:
		return "text_scan"
	case KindConsensus:
		return "consensus"
	case KindSingleBackend:
		return "single_backend"
	default:
		return "unknown"
	}
}

// Strategy is one way of extracting terms from a document. Lower priority
// values run first.
type Strategy interface {
	Name() string
	Kind() Kind
	Priority() int
	Available(ctx context.Context) bool
	Extract(ctx context.Context, doc model.Document) (model.Result, error)
	ScoreConfidence(r model.Result) int
}

// Registry holds strategies sorted by ascending priority. The sort is stable
// so equal priorities keep registration order.
type Registry struct {
	strategies []Strategy
}

// NewRegistry sorts strategies once.
func NewRegistry(strategies ...Strategy) *Registry {
	sorted := make([]Strategy, len(strategies))
	copy(sorted, strategies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Registry{strategies: sorted}
}

// Strategies returns the strategies in run order.
func (r *Registry) Strategies() []Strategy {
	return r.strategies
}

// ByKind returns the first strategy of kind k.
func (r *Registry) ByKind(k Kind) (Strategy, bool) {
	for _, s := range r.strategies {
		if s.Kind() == k {
			return s, true
		}
	}
	return nil, false
}

// fieldScore gives per points for every structured field whose value has the
// right shape.
func fieldScore(r model.Result, per int) int {
	score := 0
	for _, f := range model.StructuredFields {
		if probe.Valid(f, r.Get(f)) {
			score += per
		}
	}
	return score
}

// modelScore scores backend output: 20 per valid field, plus up to 20 for
// content quality.
func modelScore(r model.Result) int {
	score := fieldScore(r, 20)
	if !model.IsSentinel(r.Notes) {
		score += 10
	}
	if lo, hi, ok := probe.ParseAgeRange(r.AgeRange); ok && probe.SaneAges(lo, hi) {
		score += 10
	}
	return min(score, 100)
}
