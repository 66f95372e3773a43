package learning

import (
	"context"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/model"
)

const (
	minExamples   = 3
	maxInputRunes = 500
)

// exampleQuality is 70 plus 10 per changed field, 10 for a substantial source
// text and 10 when the corrector gave a reason, capped at 100.
func exampleQuality(rec model.CorrectionRecord, changed int) int {
	q := 70 + 10*changed
	if utf8.RuneCountInString(rec.SourceText) > 200 {
		q += 10
	}
	if rec.Reason != "" {
		q += 10
	}
	if q > 100 {
		q = 100
	}
	return q
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func newExample(rec model.CorrectionRecord) model.LearningExample {
	return model.LearningExample{
		EntityID:     rec.EntityID,
		InputText:    truncateRunes(rec.SourceText, maxInputRunes),
		Output:       rec.Corrected,
		QualityScore: exampleQuality(rec, len(rec.ChangedFields())),
		CorrectionID: rec.ID,
	}
}

// maybeAddExample stores a few-shot example for rec when the entity has
// fewer than minExamples, or when the correction changed a field and
// sparseOnly is false.
func (p *Pipeline) maybeAddExample(ctx context.Context, rec model.CorrectionRecord, sparseOnly bool) (bool, error) {
	if rec.SourceText == "" {
		return false, nil
	}
	existing, err := p.store.CountExamples(ctx, rec.EntityID)
	if err != nil {
		return false, eris.Wrapf(err, "learning: count examples for %s", rec.EntityID)
	}
	if existing >= minExamples && (sparseOnly || len(rec.ChangedFields()) == 0) {
		return false, nil
	}

	ex := newExample(rec)
	ex.CreatedAt = p.now().UTC()
	if err := p.store.InsertExample(ctx, &ex); err != nil {
		return false, eris.Wrapf(err, "learning: insert example for %s", rec.EntityID)
	}
	zap.L().Debug("learning: example created",
		zap.String("entity_id", rec.EntityID),
		zap.Int("quality", ex.QualityScore),
	)
	return true, nil
}
