package learning

import (
	"strings"

	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/probe"
)

// Issue is a systemic extraction problem visible in a correction.
type Issue string

const (
	IssueDuplicatedPrefix        Issue = "duplicated-prefix"
	IssueCoveragePaymentMismatch Issue = "coverage-payment-mismatch"
	IssueMissedField             Issue = "missed-field"
)

// Analyze lists the issues a correction fixes. Each issue is reported once.
func Analyze(rec model.CorrectionRecord) []Issue {
	var out []Issue
	var dup, missed bool
	for _, f := range rec.ChangedFields() {
		orig, fixed := rec.Original.Get(f), rec.Corrected.Get(f)
		if !dup && duplicatedPrefix(orig) {
			dup = true
		}
		if !missed && model.IsSentinel(orig) && !model.IsSentinel(fixed) {
			missed = true
		}
	}
	if dup {
		out = append(out, IssueDuplicatedPrefix)
	}
	if coverageShort(rec.Original) && !coverageShort(rec.Corrected) {
		out = append(out, IssueCoveragePaymentMismatch)
	}
	if missed {
		out = append(out, IssueMissedField)
	}
	return out
}

// duplicatedPrefix reports whether the leading token of v appears again.
func duplicatedPrefix(v string) bool {
	if model.IsSentinel(v) {
		return false
	}
	tokens := probe.Split(v)
	if len(tokens) < 2 {
		tokens = strings.Fields(v)
	}
	if len(tokens) < 2 {
		return false
	}
	for _, t := range tokens[1:] {
		if t == tokens[0] {
			return true
		}
	}
	return false
}

func coverageShort(r model.Result) bool {
	cov, ok := probe.CoverageDuration(r.Coverage)
	if !ok {
		return false
	}
	pay, ok := probe.PaymentDuration(r.Payment, cov)
	if !ok {
		return false
	}
	return !cov.AtLeast(pay)
}
