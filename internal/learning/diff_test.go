package learning

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/terms-extractor/internal/model"
)

func correction(original, corrected map[model.Field]string) model.CorrectionRecord {
	return model.CorrectionRecord{
		EntityID:  "P1",
		Original:  model.NewResult(original),
		Corrected: model.NewResult(corrected),
	}
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name string
		rec  model.CorrectionRecord
		want []Issue
	}{
		{
			name: "space separated duplicate",
			rec: correction(
				map[model.Field]string{model.FieldCoverage: "종신 종신", model.FieldPayment: "20년납"},
				map[model.Field]string{model.FieldCoverage: "종신", model.FieldPayment: "20년납"},
			),
			want: []Issue{IssueDuplicatedPrefix},
		},
		{
			name: "comma separated duplicate",
			rec: correction(
				map[model.Field]string{model.FieldCoverage: "종신", model.FieldPayment: "10년납, 10년납"},
				map[model.Field]string{model.FieldCoverage: "종신", model.FieldPayment: "10년납"},
			),
			want: []Issue{IssueDuplicatedPrefix},
		},
		{
			name: "coverage shorter than payment fixed",
			rec: correction(
				map[model.Field]string{model.FieldCoverage: "10년만기", model.FieldPayment: "20년납"},
				map[model.Field]string{model.FieldCoverage: "20년만기", model.FieldPayment: "20년납"},
			),
			want: []Issue{IssueCoveragePaymentMismatch},
		},
		{
			name: "missed field",
			rec: correction(
				map[model.Field]string{model.FieldCoverage: "종신"},
				map[model.Field]string{model.FieldCoverage: "종신", model.FieldPayment: "20년납"},
			),
			want: []Issue{IssueMissedField},
		},
		{
			name: "no change",
			rec: correction(
				map[model.Field]string{model.FieldCoverage: "종신", model.FieldPayment: "20년납"},
				map[model.Field]string{model.FieldCoverage: "종신", model.FieldPayment: "20년납"},
			),
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Analyze(tt.rec))
		})
	}
}

func TestExampleQuality(t *testing.T) {
	rec := model.CorrectionRecord{SourceText: "short"}
	assert.Equal(t, 70, exampleQuality(rec, 0))
	assert.Equal(t, 90, exampleQuality(rec, 2))

	rec.SourceText = strings.Repeat("가", 201)
	rec.Reason = "wrong payment"
	assert.Equal(t, 100, exampleQuality(rec, 1))
	assert.Equal(t, 100, exampleQuality(rec, 4))
}

func TestNewExample_TruncatesInput(t *testing.T) {
	rec := correction(
		map[model.Field]string{model.FieldCoverage: "종신"},
		map[model.Field]string{model.FieldCoverage: "종신", model.FieldPayment: "20년납"},
	)
	rec.ID = "c1"
	rec.SourceText = strings.Repeat("보", 600)

	ex := newExample(rec)
	assert.Equal(t, 500, len([]rune(ex.InputText)))
	assert.Equal(t, "c1", ex.CorrectionID)
	assert.Equal(t, "20년납", ex.Output.Payment)
	assert.Equal(t, 90, ex.QualityScore)
}
