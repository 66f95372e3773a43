package strategy

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/store"
)

// MappingSource looks up curated mappings by entity.
type MappingSource interface {
	GetDomainMapping(ctx context.Context, entityID string) (*model.DomainMapping, error)
}

// DomainLookup answers from the curated mapping table.
type DomainLookup struct {
	src MappingSource
}

// NewDomainLookup creates the lookup strategy.
func NewDomainLookup(src MappingSource) *DomainLookup {
	return &DomainLookup{src: src}
}

func (d *DomainLookup) Name() string                   { return "Domain Lookup" }
func (d *DomainLookup) Kind() Kind                     { return KindDomainLookup }
func (d *DomainLookup) Priority() int                  { return 1 }
func (d *DomainLookup) Available(context.Context) bool { return d.src != nil }

// Extract returns the mapping for the entity, or an empty result when none
// is curated.
func (d *DomainLookup) Extract(ctx context.Context, doc model.Document) (model.Result, error) {
	m, err := d.src.GetDomainMapping(ctx, doc.EntityID)
	if eris.Is(err, store.ErrNotFound) {
		return model.EmptyResult("no curated mapping"), nil
	}
	if err != nil {
		return model.Result{}, eris.Wrap(err, "strategy: domain lookup")
	}
	return m.Result(), nil
}

// ScoreConfidence gives 25 per well-formed field.
func (d *DomainLookup) ScoreConfidence(r model.Result) int {
	return fieldScore(r, 25)
}
