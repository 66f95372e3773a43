package probe

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/terms-extractor/internal/model"
)

var (
	coverageShape = regexp.MustCompile(`^(?:종신|\d+세만기|\d+년만기)$`)
	paymentShape  = regexp.MustCompile(`^(?:전기납|일시납|\d+년납)$`)
	ageShape      = regexp.MustCompile(`^(\d{1,3})~(\d{1,3})$`)
	leadingNumber = regexp.MustCompile(`^\d+`)
)

// Split breaks a multi-valued field ("10년납, 20년납") into its tokens.
func Split(v string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '/' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func allMatch(v string, re *regexp.Regexp) bool {
	tokens := Split(v)
	if len(tokens) == 0 {
		return false
	}
	for _, t := range tokens {
		if !re.MatchString(t) {
			return false
		}
	}
	return true
}

// ValidCoverage reports whether every token is 종신, N세만기 or N년만기.
func ValidCoverage(v string) bool {
	return !model.IsSentinel(v) && allMatch(v, coverageShape)
}

// ValidPayment reports whether every token is 전기납, 일시납 or N년납.
func ValidPayment(v string) bool {
	return !model.IsSentinel(v) && allMatch(v, paymentShape)
}

// ValidAgeRange reports whether v has the N~N shape, ignoring 만/세 markers.
func ValidAgeRange(v string) bool {
	_, _, ok := ParseAgeRange(v)
	return ok
}

// ValidRenewal reports whether v names a renewal type.
func ValidRenewal(v string) bool {
	return v == "갱신형" || v == "비갱신형"
}

// Valid dispatches to the shape check for f. Notes are valid when present.
func Valid(f model.Field, v string) bool {
	switch f {
	case model.FieldCoverage:
		return ValidCoverage(v)
	case model.FieldPayment:
		return ValidPayment(v)
	case model.FieldAgeRange:
		return ValidAgeRange(v)
	case model.FieldRenewal:
		return ValidRenewal(v)
	default:
		return !model.IsSentinel(v)
	}
}

// ParseAgeRange parses "15~60" or "만15세~60세".
func ParseAgeRange(v string) (lo, hi int, ok bool) {
	if model.IsSentinel(v) {
		return 0, 0, false
	}
	clean := strings.NewReplacer("만", "", "세", "", " ", "").Replace(v)
	m := ageShape.FindStringSubmatch(clean)
	if m == nil {
		return 0, 0, false
	}
	lo, _ = strconv.Atoi(m[1])
	hi, _ = strconv.Atoi(m[2])
	return lo, hi, true
}

// SaneAges reports 0 <= lo < hi <= 120.
func SaneAges(lo, hi int) bool {
	return lo >= 0 && lo < hi && hi <= 120
}

// Duration is a period length in years. Unbounded marks whole-life coverage.
type Duration struct {
	Years     int
	Unbounded bool
}

// AtLeast reports whether d is at least as long as o.
func (d Duration) AtLeast(o Duration) bool {
	switch {
	case d.Unbounded:
		return true
	case o.Unbounded:
		return false
	default:
		return d.Years >= o.Years
	}
}

// CoverageDuration returns the longest coverage in v. N세만기 counts as N-30
// years, taking 30 as a typical entry age.
func CoverageDuration(v string) (Duration, bool) {
	var best Duration
	found := false
	for _, t := range Split(v) {
		var d Duration
		switch {
		case t == "종신":
			d = Duration{Unbounded: true}
		case strings.HasSuffix(t, "세만기"):
			d = Duration{Years: leadingInt(t) - 30}
		case strings.HasSuffix(t, "년만기"):
			d = Duration{Years: leadingInt(t)}
		default:
			continue
		}
		if !found || d.AtLeast(best) {
			best = d
		}
		found = true
	}
	return best, found
}

// PaymentDuration returns the longest payment period in v. 전기납 equals the
// coverage period and 일시납 is zero.
func PaymentDuration(v string, coverage Duration) (Duration, bool) {
	var best Duration
	found := false
	for _, t := range Split(v) {
		var d Duration
		switch {
		case t == "전기납":
			d = coverage
		case t == "일시납":
			d = Duration{}
		case strings.HasSuffix(t, "년납"):
			d = Duration{Years: leadingInt(t)}
		default:
			continue
		}
		if !found || d.AtLeast(best) {
			best = d
		}
		found = true
	}
	return best, found
}

func leadingInt(s string) int {
	n, _ := strconv.Atoi(leadingNumber.FindString(s))
	return n
}
