package model

// Sentinel marks a field whose value could not be determined. It is never
// empty so presence checks stay uniform across strategies.
const Sentinel = "—"

// Field names a contract-term field of a Result.
type Field string

const (
	FieldCoverage Field = "insuTerm"
	FieldPayment  Field = "payTerm"
	FieldAgeRange Field = "ageRange"
	FieldRenewal  Field = "renew"
	FieldNotes    Field = "specialNotes"
)

// StructuredFields lists the four structured fields in canonical order.
var StructuredFields = []Field{FieldCoverage, FieldPayment, FieldAgeRange, FieldRenewal}

// KeyFields are the fields backends must agree on to reach quorum.
var KeyFields = []Field{FieldCoverage, FieldPayment}

// AllFields lists every field of a Result, notes last.
var AllFields = []Field{FieldCoverage, FieldPayment, FieldAgeRange, FieldRenewal, FieldNotes}

// ParseField resolves a wire name to a Field.
func ParseField(name string) (Field, bool) {
	for _, f := range AllFields {
		if string(f) == name {
			return f, true
		}
	}
	return "", false
}

// IsStructured reports whether f is one of the four structured fields.
func (f Field) IsStructured() bool {
	for _, s := range StructuredFields {
		if s == f {
			return true
		}
	}
	return false
}

// Label is the human-readable name used in validation reasons.
func (f Field) Label() string {
	switch f {
	case FieldCoverage:
		return "coverage period"
	case FieldPayment:
		return "payment period"
	case FieldAgeRange:
		return "age range"
	case FieldRenewal:
		return "renewal type"
	case FieldNotes:
		return "notes"
	default:
		return string(f)
	}
}

// IsSentinel reports whether v carries no information.
func IsSentinel(v string) bool {
	return v == "" || v == Sentinel
}
