// Package prompt builds the extraction prompt sent to backends.
package prompt

import (
	"fmt"
	"strings"

	"github.com/sells-group/terms-extractor/internal/model"
)

// Instructions is the fixed part of every prompt. Backends send it as the
// system message where the provider supports one.
const Instructions = `You extract insurance contract terms from product documents.
Answer with a single JSON object and nothing else, using exactly these keys:
  "insuTerm"     coverage period, e.g. "종신", "90세만기", "20년만기"
  "payTerm"      payment period, e.g. "전기납", "일시납", "10년납, 20년납"
  "ageRange"     entry age range as "min~max", e.g. "15~60"
  "renew"        "갱신형" or "비갱신형"
  "specialNotes" short free-text remarks
Use "—" for any value the document does not state. Separate multiple values with ", ".`

// Defaults for Build.
const (
	DefaultMaxRunes    = 6000
	DefaultMaxExamples = 3
)

// Builder renders prompts from document text and learning examples.
type Builder struct {
	MaxRunes    int
	MaxExamples int
}

// NewBuilder returns a Builder; non-positive limits take the defaults.
func NewBuilder(maxRunes, maxExamples int) Builder {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	if maxExamples <= 0 {
		maxExamples = DefaultMaxExamples
	}
	return Builder{MaxRunes: maxRunes, MaxExamples: maxExamples}
}

// Build renders the per-document part of the prompt.
func (b Builder) Build(entityID, text string, examples []model.LearningExample) string {
	var sb strings.Builder
	if n := min(len(examples), b.MaxExamples); n > 0 {
		sb.WriteString("Verified examples for this product:\n")
		for i, ex := range examples[:n] {
			fmt.Fprintf(&sb, "\nExample %d input:\n%s\nExample %d output:\n%s\n",
				i+1, ex.InputText, i+1, renderJSON(ex.Output))
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Product code: %s\nDocument:\n%s\n", entityID, Truncate(text, b.MaxRunes))
	return sb.String()
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func renderJSON(r model.Result) string {
	return fmt.Sprintf(`{"insuTerm":%q,"payTerm":%q,"ageRange":%q,"renew":%q}`,
		r.Coverage, r.Payment, r.AgeRange, r.Renewal)
}
