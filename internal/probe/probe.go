// Package probe holds the small set of text heuristics used to pull contract
// terms out of raw document text. The patterns are deliberately narrow; they
// back the text-scan strategy and partial recovery.
package probe

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/terms-extractor/internal/model"
)

const (
	coverageToken = `(?:종신|\d+세만기|\d+년만기)`
	paymentToken  = `(?:전기납|일시납|\d+년납)`
)

var (
	labeledCoverage = regexp.MustCompile(`보험기간[:\s]*(` + coverageToken + `(?:[,\s]+` + coverageToken + `)*)`)
	labeledPayment  = regexp.MustCompile(`납입기간[:\s]*(` + paymentToken + `(?:[,\s]+` + paymentToken + `)*)`)
	labeledAge      = regexp.MustCompile(`가입(?:나이|연령)[:\s]*(?:만\s*)?(\d{1,3})\s*세?\s*[~\-]\s*(?:만\s*)?(\d{1,3})\s*세?`)
	bareAge         = regexp.MustCompile(`(?:만\s*)?(\d{1,3})\s*세\s*[~\-]\s*(?:만\s*)?(\d{1,3})\s*세`)

	coverageRe = regexp.MustCompile(coverageToken)
	paymentRe  = regexp.MustCompile(paymentToken)

	// maxTokens bounds how many distinct values an unlabeled scan returns.
	maxTokens = 4
)

// Normalize puts text into NFC so that decomposed Hangul from PDF extraction
// matches the patterns.
func Normalize(text string) string {
	return norm.NFC.String(text)
}

// Scan runs every probe and returns the fields it found. Fields with no
// match are the sentinel; notes are left for the caller.
func Scan(text string) model.Result {
	text = Normalize(text)
	return model.NewResult(map[model.Field]string{
		model.FieldCoverage: Coverage(text),
		model.FieldPayment:  Payment(text),
		model.FieldAgeRange: AgeRange(text),
		model.FieldRenewal:  Renewal(text),
	})
}

// Coverage finds the coverage period, preferring a labeled value.
func Coverage(text string) string {
	if m := labeledCoverage.FindStringSubmatch(text); m != nil {
		return joinTokens(coverageRe.FindAllString(m[1], -1))
	}
	return joinTokens(coverageRe.FindAllString(text, -1))
}

// Payment finds the payment period, preferring a labeled value.
func Payment(text string) string {
	if m := labeledPayment.FindStringSubmatch(text); m != nil {
		return joinTokens(paymentRe.FindAllString(m[1], -1))
	}
	return joinTokens(paymentRe.FindAllString(text, -1))
}

// AgeRange finds an eligibility range and returns it as "min~max".
func AgeRange(text string) string {
	m := labeledAge.FindStringSubmatch(text)
	if m == nil {
		m = bareAge.FindStringSubmatch(text)
	}
	if m == nil {
		return model.Sentinel
	}
	lo, _ := strconv.Atoi(m[1])
	hi, _ := strconv.Atoi(m[2])
	if !SaneAges(lo, hi) {
		return model.Sentinel
	}
	return m[1] + "~" + m[2]
}

// Renewal reports the renewal type mentioned in the text.
func Renewal(text string) string {
	switch {
	case strings.Contains(text, "비갱신"):
		return "비갱신형"
	case strings.Contains(text, "갱신형"):
		return "갱신형"
	default:
		return model.Sentinel
	}
}

func joinTokens(tokens []string) string {
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == maxTokens {
			break
		}
	}
	if len(out) == 0 {
		return model.Sentinel
	}
	return strings.Join(out, ", ")
}
