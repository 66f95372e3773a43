package learning

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/terms-extractor/internal/model"
)

// DefaultThreshold is the minimum quality score for a pattern to be applied.
const DefaultThreshold = 60

// retireScore and retireApplications bound the maintenance pass: patterns
// scoring below retireScore after retireApplications uses are deactivated.
const (
	retireScore        = 40
	retireApplications = 10
)

// Score rates a learned pattern from 0 to 100. It starts from the stored
// confidence and adjusts for observed success, recency, usage, priority and
// the complexity of the value.
func Score(p model.LearnedPattern, now time.Time) int {
	score := p.Confidence
	if p.ApplyCount > 0 {
		score += int(p.SuccessRate() * 20)
	}
	score += recencyBonus(p.UpdatedAt, now)
	score += frequencyBonus(p.ApplyCount)
	score += priorityBonus(p.Priority)
	score -= complexityPenalty(p.Value)

	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

func recencyBonus(updated, now time.Time) int {
	if updated.IsZero() {
		return 0
	}
	days := int(now.Sub(updated).Hours() / 24)
	switch {
	case days <= 0:
		return 10
	case days <= 7:
		return 7
	case days <= 30:
		return 3
	}
	return 0
}

func frequencyBonus(applied int) int {
	switch {
	case applied >= 50:
		return 5
	case applied >= 20:
		return 3
	case applied >= 10:
		return 1
	}
	return 0
}

func priorityBonus(priority int) int {
	switch {
	case priority >= 80:
		return 5
	case priority >= 60:
		return 3
	case priority >= 40:
		return 1
	}
	return 0
}

func complexityPenalty(value string) int {
	penalty := 0
	switch n := utf8.RuneCountInString(value); {
	case n > 200:
		penalty += 5
	case n > 100:
		penalty += 3
	}
	if strings.Contains(value, "종신:") || strings.Contains(value, "세만기:") {
		penalty += 3
	}
	special := 0
	for _, r := range value {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if special > 20 {
		penalty += 2
	}
	return penalty
}

// Grade buckets a score into S, A, B, C, D or F.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "S"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	}
	return "F"
}

// ScoredPattern pairs a pattern with its current score and grade.
type ScoredPattern struct {
	model.LearnedPattern
	Score int    `json:"score"`
	Grade string `json:"grade"`
}

// Rate scores each pattern at now.
func Rate(patterns []model.LearnedPattern, now time.Time) []ScoredPattern {
	out := make([]ScoredPattern, 0, len(patterns))
	for _, p := range patterns {
		s := Score(p, now)
		out = append(out, ScoredPattern{LearnedPattern: p, Score: s, Grade: Grade(s)})
	}
	return out
}
