// Package store persists corrections, learned patterns, learning examples,
// daily statistics, domain mappings and registered documents.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/terms-extractor/internal/model"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = eris.New("store: not found")

// PatternUpsert describes one learned field value. On conflict with an
// existing (entity, field) pattern the value and source are replaced and the
// confidence is raised by Step (capped at 100), or set to 100 for an
// authoritative source. New patterns start at SeedConfidence.
type PatternUpsert struct {
	EntityID       string
	Field          model.Field
	Value          string
	Source         model.LearningSource
	CorrectionID   string
	SeedConfidence int
	SeedPriority   int
	Step           int
}

func (u PatternUpsert) withDefaults() PatternUpsert {
	if u.Source == "" {
		u.Source = model.LearningSourceUserCorrection
	}
	if u.SeedConfidence <= 0 {
		u.SeedConfidence = 80
	}
	if u.SeedPriority <= 0 {
		u.SeedPriority = 50
	}
	if u.Step <= 0 {
		u.Step = 10
	}
	return u
}

// Store defines the persistence interface for the learning pipeline.
type Store interface {
	// Corrections
	InsertCorrection(ctx context.Context, c *model.CorrectionRecord) error
	ListUnlearnedCorrections(ctx context.Context, limit int) ([]model.CorrectionRecord, error)
	MarkCorrectionLearned(ctx context.Context, id string, at time.Time) (bool, error)
	CountCorrections(ctx context.Context) (int, error)
	CountCorrectionsSince(ctx context.Context, since time.Time) (int, error)
	TopCorrectedEntities(ctx context.Context, since time.Time, limit int) ([]model.EntityCorrectionCount, error)
	LatestCorrection(ctx context.Context, entityID string) (*model.CorrectionRecord, error)

	// Learned patterns
	UpsertPattern(ctx context.Context, u PatternUpsert) (*model.LearnedPattern, error)
	GetPattern(ctx context.Context, entityID string, field model.Field) (*model.LearnedPattern, error)
	ListActivePatterns(ctx context.Context, entityID string) ([]model.LearnedPattern, error)
	ListPatterns(ctx context.Context, activeOnly bool) ([]model.LearnedPattern, error)
	IncrementApplyCount(ctx context.Context, id string) error
	IncrementSuccessCount(ctx context.Context, id string) error
	DeactivatePattern(ctx context.Context, id string) error
	CountPatternsByField(ctx context.Context) (map[model.Field]int, error)

	// Learning examples
	InsertExample(ctx context.Context, e *model.LearningExample) error
	ListExamples(ctx context.Context, entityID string, limit int) ([]model.LearningExample, error)
	CountExamples(ctx context.Context, entityID string) (int, error)

	// Statistics
	SaveDailyStats(ctx context.Context, s model.DailyStats) error
	LatestDailyStats(ctx context.Context) (*model.DailyStats, error)

	// Domain mappings
	UpsertDomainMappings(ctx context.Context, mappings []model.DomainMapping) (int64, error)
	GetDomainMapping(ctx context.Context, entityID string) (*model.DomainMapping, error)
	ListDomainMappings(ctx context.Context, limit int) ([]model.DomainMapping, error)

	// Registered documents
	SaveDocument(ctx context.Context, doc model.Document) error
	ListDocuments(ctx context.Context, limit int) ([]model.Document, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// dateKey is the storage form of a statistics day.
func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
