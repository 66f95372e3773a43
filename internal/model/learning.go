package model

import "time"

// LearningSource identifies where a learned pattern came from.
type LearningSource string

const (
	LearningSourceDomainMapping  LearningSource = "UW_MAPPING"
	LearningSourceUserCorrection LearningSource = "USER_CORRECTION"
	LearningSourceAutoLearned    LearningSource = "AUTO_LEARNED"
)

// Authoritative reports whether patterns from this source start at full
// confidence.
func (s LearningSource) Authoritative() bool {
	return s == LearningSourceDomainMapping
}

// LearnedPattern is a scored override for one field of one entity.
type LearnedPattern struct {
	ID            string         `json:"id"`
	EntityID      string         `json:"entity_id"`
	Field         Field          `json:"field_name"`
	Value         string         `json:"value"`
	Confidence    int            `json:"confidence"`
	ApplyCount    int            `json:"apply_count"`
	SuccessCount  int            `json:"success_count"`
	Source        LearningSource `json:"learning_source"`
	Priority      int            `json:"priority"`
	Active        bool           `json:"is_active"`
	LearnedFromID string         `json:"learned_from_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// SuccessRate returns successCount/applyCount, or 0 before any use.
func (p LearnedPattern) SuccessRate() float64 {
	if p.ApplyCount <= 0 {
		return 0
	}
	rate := float64(p.SuccessCount) / float64(p.ApplyCount)
	if rate > 1 {
		return 1
	}
	return rate
}

// CorrectionRecord is a single human correction of an extraction.
type CorrectionRecord struct {
	ID         string         `json:"id"`
	EntityID   string         `json:"entity_id"`
	Original   Result         `json:"original"`
	Corrected  Result         `json:"corrected"`
	SourceText string         `json:"source_text,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Source     LearningSource `json:"source"`
	Learned    bool           `json:"is_learned"`
	LearnedAt  *time.Time     `json:"learned_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ChangedFields lists the structured fields the correction changed.
func (c CorrectionRecord) ChangedFields() []Field {
	return ChangedFields(c.Original, c.Corrected)
}

// LearningExample is a worked input/output pair fed to backends as a
// few-shot example.
type LearningExample struct {
	ID           string    `json:"id"`
	EntityID     string    `json:"entity_id"`
	InputText    string    `json:"input_text"`
	Output       Result    `json:"output"`
	QualityScore int       `json:"quality_score"`
	CorrectionID string    `json:"correction_id,omitempty"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// EntityCorrectionCount is one row of the most-corrected-entities ranking.
type EntityCorrectionCount struct {
	EntityID string `json:"entity_id"`
	Count    int    `json:"count"`
}

// DailyStats is the persisted learning statistics row for one day.
type DailyStats struct {
	Date                time.Time         `json:"stat_date"`
	TotalCorrections    int               `json:"total_corrections"`
	TotalPatterns       int               `json:"total_patterns"`
	TotalExamples       int               `json:"total_examples"`
	InitialAccuracy     float64           `json:"initial_accuracy"`
	CurrentAccuracy     float64           `json:"current_accuracy"`
	AccuracyImprovement float64           `json:"accuracy_improvement"`
	DailyCorrections    int               `json:"daily_corrections"`
	FieldAccuracy       map[Field]float64 `json:"field_accuracy"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// Statistics is the summary returned to callers of the learning pipeline.
type Statistics struct {
	TotalCorrections    int               `json:"totalCorrections"`
	TotalPatterns       int               `json:"totalPatterns"`
	TotalExamples       int               `json:"totalExamples"`
	CurrentAccuracy     float64           `json:"currentAccuracy"`
	AccuracyImprovement float64           `json:"accuracyImprovement"`
	FieldAccuracy       map[Field]float64 `json:"fieldAccuracy,omitempty"`
	Trend               *AccuracyTrend    `json:"trend,omitempty"`
}

// AccuracyTrend compares the live accuracy with the latest saved daily row.
type AccuracyTrend struct {
	Since    time.Time `json:"since"`
	Accuracy float64   `json:"accuracy"`
	Change   float64   `json:"change"`
}

// DomainMapping is an authoritative term record for an entity, loaded from
// an underwriting mapping table.
type DomainMapping struct {
	EntityID  string    `json:"entity_id" yaml:"entity_id"`
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	Coverage  string    `json:"insuTerm" yaml:"insuTerm"`
	Payment   string    `json:"payTerm" yaml:"payTerm"`
	AgeRange  string    `json:"ageRange" yaml:"ageRange"`
	Renewal   string    `json:"renew" yaml:"renew"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Result converts the mapping into an extraction result.
func (m DomainMapping) Result() Result {
	return NewResult(map[Field]string{
		FieldCoverage: m.Coverage,
		FieldPayment:  m.Payment,
		FieldAgeRange: m.AgeRange,
		FieldRenewal:  m.Renewal,
	}).WithSource(SourceDomainLookup)
}

// Document is a source document to extract terms from.
type Document struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name,omitempty"`
	Content  []byte `json:"-"`
	Text     string `json:"-"`
}
