package model

import (
	"strings"
)

// Result is an extraction outcome for one entity. It is a value type: the
// With* helpers return modified copies and never touch the receiver.
type Result struct {
	Coverage string `json:"insuTerm"`
	Payment  string `json:"payTerm"`
	AgeRange string `json:"ageRange"`
	Renewal  string `json:"renew"`
	Notes    string `json:"specialNotes"`

	Source          Source `json:"validationSource,omitempty"`
	ManualReview    bool   `json:"manualReview,omitempty"`
	PatternEnhanced bool   `json:"patternEnhanced,omitempty"`
	Errors          string `json:"errors,omitempty"`
}

// EmptyResult returns the canonical all-sentinel result with the given note.
func EmptyResult(note string) Result {
	r := Result{
		Coverage: Sentinel,
		Payment:  Sentinel,
		AgeRange: Sentinel,
		Renewal:  Sentinel,
		Notes:    Sentinel,
	}
	if strings.TrimSpace(note) != "" {
		r.Notes = note
	}
	return r
}

// NewResult builds a normalized result from a field map. Unknown keys are
// ignored and missing fields become the sentinel.
func NewResult(values map[Field]string) Result {
	var r Result
	for f, v := range values {
		r = r.With(f, v)
	}
	return r.Normalize()
}

// Get returns the value of field f.
func (r Result) Get(f Field) string {
	switch f {
	case FieldCoverage:
		return r.Coverage
	case FieldPayment:
		return r.Payment
	case FieldAgeRange:
		return r.AgeRange
	case FieldRenewal:
		return r.Renewal
	case FieldNotes:
		return r.Notes
	}
	return Sentinel
}

// With returns a copy of r with field f set to v. Blank values become the
// sentinel.
func (r Result) With(f Field, v string) Result {
	v = strings.TrimSpace(v)
	if v == "" {
		v = Sentinel
	}
	switch f {
	case FieldCoverage:
		r.Coverage = v
	case FieldPayment:
		r.Payment = v
	case FieldAgeRange:
		r.AgeRange = v
	case FieldRenewal:
		r.Renewal = v
	case FieldNotes:
		r.Notes = v
	}
	return r
}

// WithSource returns a copy of r tagged with provenance s.
func (r Result) WithSource(s Source) Result {
	r.Source = s
	return r
}

// WithNote appends note to the notes field.
func (r Result) WithNote(note string) Result {
	if IsSentinel(r.Notes) {
		return r.With(FieldNotes, note)
	}
	return r.With(FieldNotes, r.Notes+"; "+note)
}

// Normalize replaces blank fields with the sentinel.
func (r Result) Normalize() Result {
	for _, f := range AllFields {
		r = r.With(f, r.Get(f))
	}
	return r
}

// Values returns the fields in canonical order as a map.
func (r Result) Values() map[Field]string {
	out := make(map[Field]string, len(AllFields))
	for _, f := range AllFields {
		out[f] = r.Get(f)
	}
	return out
}

// FilledCount returns how many structured fields carry a value.
func (r Result) FilledCount() int {
	n := 0
	for _, f := range StructuredFields {
		if !IsSentinel(r.Get(f)) {
			n++
		}
	}
	return n
}

// MinimallyValid reports whether at least two structured fields are known.
func (r Result) MinimallyValid() bool {
	return r.FilledCount() >= 2
}

// IsEmpty reports whether every structured field is the sentinel.
func (r Result) IsEmpty() bool {
	return r.FilledCount() == 0
}

// ChangedFields lists the structured fields whose values differ between
// original and corrected.
func ChangedFields(original, corrected Result) []Field {
	var out []Field
	for _, f := range StructuredFields {
		if normalizeValue(original.Get(f)) != normalizeValue(corrected.Get(f)) {
			out = append(out, f)
		}
	}
	return out
}

func normalizeValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return Sentinel
	}
	return v
}
