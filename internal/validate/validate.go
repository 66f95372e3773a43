// Package validate scores an extraction result across four layers (syntax,
// semantics, domain rules and agreement) into a 0-100 report.
package validate

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/probe"
)

// Layer weights. Each layer is worth 25 points.
const (
	coveragePoints  = 8
	paymentPoints   = 8
	agePoints       = 9
	durationPoints  = 12
	agePlausiblePts = 13
	rulePoints      = 12
	textPoints      = 13

	agreementConsensus = 25
	agreementSingle    = 15
	agreementOther     = 10
)

// Reason kinds drive recommendations.
const (
	kindFormat  = "format error"
	kindMissing = "missing"
)

// Validator scores results. The zero value is ready to use.
type Validator struct{}

// New returns a Validator.
func New() *Validator {
	return &Validator{}
}

// Validate scores r against the document text it was extracted from.
// An empty sourceText skips the text cross-check.
func (v *Validator) Validate(r model.Result, sourceText, entityID string) model.ValidationReport {
	var reasons []string
	layers := model.LayerScores{
		Syntax:    syntax(r, &reasons),
		Semantics: semantics(r, &reasons),
		Domain:    domain(r, sourceText, &reasons),
		Agreement: agreement(r),
	}
	total := layers.Total()
	status := model.StatusForScore(total)

	zap.L().Debug("validate: scored result",
		zap.String("entity_id", entityID),
		zap.Int("syntax", layers.Syntax),
		zap.Int("semantics", layers.Semantics),
		zap.Int("domain", layers.Domain),
		zap.Int("agreement", layers.Agreement),
		zap.Int("total", total),
		zap.String("status", string(status)),
	)

	if reasons == nil {
		reasons = []string{}
	}
	return model.ValidationReport{
		EntityID:        entityID,
		TotalScore:      total,
		Status:          status,
		Layers:          layers,
		FailureReasons:  reasons,
		Recommendations: recommendations(status, reasons),
	}
}

func syntax(r model.Result, reasons *[]string) int {
	score := 0
	checks := []struct {
		field  model.Field
		points int
		valid  func(string) bool
	}{
		{model.FieldCoverage, coveragePoints, probe.ValidCoverage},
		{model.FieldPayment, paymentPoints, probe.ValidPayment},
		{model.FieldAgeRange, agePoints, probe.ValidAgeRange},
	}
	for _, c := range checks {
		val := r.Get(c.field)
		switch {
		case model.IsSentinel(val):
			*reasons = append(*reasons, fmt.Sprintf("%s %s", c.field.Label(), kindMissing))
		case c.valid(val):
			score += c.points
		default:
			*reasons = append(*reasons, fmt.Sprintf("%s %s: %s", c.field.Label(), kindFormat, val))
		}
	}
	return score
}

func semantics(r model.Result, reasons *[]string) int {
	score := 0

	cov, covOK := probe.CoverageDuration(r.Coverage)
	pay, payOK := probe.PaymentDuration(r.Payment, cov)
	switch {
	case !covOK || !payOK:
		*reasons = append(*reasons, "coverage/payment comparison unavailable")
	case cov.AtLeast(pay):
		score += durationPoints
	default:
		*reasons = append(*reasons, fmt.Sprintf("coverage (%d years) shorter than payment (%d years)", cov.Years, pay.Years))
	}

	if lo, hi, ok := probe.ParseAgeRange(r.AgeRange); ok && probe.SaneAges(lo, hi) {
		score += agePlausiblePts
	} else {
		*reasons = append(*reasons, "age range out of bounds")
	}
	return score
}

func domain(r model.Result, sourceText string, reasons *[]string) int {
	score := 0
	if compliant(r) {
		score += rulePoints
	} else {
		*reasons = append(*reasons, "domain rule violation")
	}
	if consistentWithText(r, sourceText) {
		score += textPoints
	} else {
		*reasons = append(*reasons, "result does not match document text")
	}
	return score
}

// compliant requires coverage and payment, and rejects renewable whole-life
// coverage.
func compliant(r model.Result) bool {
	if model.IsSentinel(r.Coverage) || model.IsSentinel(r.Payment) {
		return false
	}
	if r.Renewal == "갱신형" && strings.Contains(r.Coverage, "종신") {
		return false
	}
	return true
}

// consistentWithText reports whether at least half of the populated
// structured fields occur literally in the text.
func consistentWithText(r model.Result, text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	text = norm.NFC.String(text)

	populated, matched := 0, 0
	for _, f := range model.StructuredFields {
		v := r.Get(f)
		if model.IsSentinel(v) {
			continue
		}
		populated++
		if appearsIn(norm.NFC.String(v), text) {
			matched++
		}
	}
	return populated == 0 || matched*2 >= populated
}

func appearsIn(v, text string) bool {
	if strings.Contains(text, v) || strings.Contains(text, strings.ReplaceAll(v, ", ", "")) {
		return true
	}
	for _, t := range probe.Split(v) {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func agreement(r model.Result) int {
	switch {
	case r.Source == model.SourceConsensus:
		return agreementConsensus
	case r.Source.SingleStrategy():
		return agreementSingle
	default:
		return agreementOther
	}
}

func recommendations(status model.Status, reasons []string) []string {
	var out []string
	switch status {
	case model.StatusFail:
		out = append(out, "verify the result manually", "try a different extraction strategy")
	case model.StatusWarning:
		out = append(out, "recheck the flagged fields")
	default:
		out = append(out, "validation passed with high confidence")
	}

	var format, missing bool
	for _, reason := range reasons {
		switch {
		case strings.Contains(reason, kindFormat):
			format = true
		case strings.HasSuffix(reason, kindMissing):
			missing = true
		}
	}
	if format {
		out = append(out, "tighten the extraction patterns for malformed fields")
	}
	if missing {
		out = append(out, "some fields could not be found in the document")
	}
	return out
}
