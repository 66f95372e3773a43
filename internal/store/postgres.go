package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/terms-extractor/internal/db"
	"github.com/sells-group/terms-extractor/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	sqlInsertCorrection = `INSERT INTO corrections (id, entity_id, original, corrected, source_text, reason, source, is_learned, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)`
	sqlActivePatterns = `SELECT ` + patternColumns + ` FROM learned_patterns WHERE entity_id = $1 AND is_active
		 ORDER BY priority DESC, field_name`
	sqlIncrementApply   = `UPDATE learned_patterns SET apply_count = apply_count + 1 WHERE id = $1`
	sqlIncrementSuccess = `UPDATE learned_patterns SET success_count = success_count + 1 WHERE id = $1`
	sqlListExamples     = `SELECT id, entity_id, input_text, output, quality_score, correction_id, is_active, created_at
		 FROM learning_examples WHERE entity_id = $1 AND is_active
		 ORDER BY quality_score DESC, created_at DESC LIMIT $2`
	sqlGetMapping = `SELECT entity_id, name, coverage, payment, age_range, renewal, updated_at FROM domain_mappings WHERE entity_id = $1`
)

// preparedStatements lists the hot-path queries prepared on each new
// connection: every resolve reads patterns, mappings and examples.
var preparedStatements = map[string]string{
	"insert_correction":  sqlInsertCorrection,
	"active_patterns":    sqlActivePatterns,
	"increment_apply":    sqlIncrementApply,
	"increment_success":  sqlIncrementSuccess,
	"list_examples":      sqlListExamples,
	"get_domain_mapping": sqlGetMapping,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS corrections (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	entity_id   TEXT NOT NULL,
	original    JSONB NOT NULL,
	corrected   JSONB NOT NULL,
	source_text TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL,
	is_learned  BOOLEAN NOT NULL DEFAULT false,
	learned_at  TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS learned_patterns (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	entity_id       TEXT NOT NULL,
	field_name      TEXT NOT NULL,
	value           TEXT NOT NULL,
	confidence      INTEGER NOT NULL CHECK (confidence BETWEEN 0 AND 100),
	apply_count     INTEGER NOT NULL DEFAULT 0,
	success_count   INTEGER NOT NULL DEFAULT 0,
	learning_source TEXT NOT NULL,
	priority        INTEGER NOT NULL DEFAULT 50,
	is_active       BOOLEAN NOT NULL DEFAULT true,
	learned_from_id TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (entity_id, field_name)
);

CREATE TABLE IF NOT EXISTS learning_examples (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	entity_id     TEXT NOT NULL,
	input_text    TEXT NOT NULL,
	output        JSONB NOT NULL,
	quality_score INTEGER NOT NULL,
	correction_id TEXT NOT NULL DEFAULT '',
	is_active     BOOLEAN NOT NULL DEFAULT true,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS daily_stats (
	stat_date            DATE PRIMARY KEY,
	total_corrections    INTEGER NOT NULL,
	total_patterns       INTEGER NOT NULL,
	total_examples       INTEGER NOT NULL,
	initial_accuracy     DOUBLE PRECISION NOT NULL,
	current_accuracy     DOUBLE PRECISION NOT NULL,
	accuracy_improvement DOUBLE PRECISION NOT NULL,
	daily_corrections    INTEGER NOT NULL,
	field_accuracy       JSONB NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS domain_mappings (
	entity_id  TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	coverage   TEXT NOT NULL DEFAULT '',
	payment    TEXT NOT NULL DEFAULT '',
	age_range  TEXT NOT NULL DEFAULT '',
	renewal    TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	entity_id  TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	content    BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_corrections_entity ON corrections(entity_id);
CREATE INDEX IF NOT EXISTS idx_corrections_unlearned ON corrections(created_at) WHERE NOT is_learned;
CREATE INDEX IF NOT EXISTS idx_corrections_created ON corrections(created_at);
CREATE INDEX IF NOT EXISTS idx_patterns_entity_active ON learned_patterns(entity_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_examples_entity ON learning_examples(entity_id) WHERE is_active;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Corrections ---

func (s *PostgresStore) InsertCorrection(ctx context.Context, c *model.CorrectionRecord) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Source == "" {
		c.Source = model.LearningSourceUserCorrection
	}

	original, err := json.Marshal(c.Original)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal original")
	}
	corrected, err := json.Marshal(c.Corrected)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal corrected")
	}

	_, err = s.pool.Exec(ctx, sqlInsertCorrection,
		c.ID, c.EntityID, original, corrected, c.SourceText, c.Reason, string(c.Source), c.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert correction for %s", c.EntityID)
}

func (s *PostgresStore) ListUnlearnedCorrections(ctx context.Context, limit int) ([]model.CorrectionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+correctionColumns+` FROM corrections WHERE NOT is_learned ORDER BY created_at LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unlearned corrections")
	}
	defer rows.Close()

	var out []model.CorrectionRecord
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list unlearned corrections iterate")
}

func (s *PostgresStore) MarkCorrectionLearned(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE corrections SET is_learned = true, learned_at = $1 WHERE id = $2 AND NOT is_learned`,
		at.UTC(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: mark correction learned %s", id)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) CountCorrections(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM corrections`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count corrections")
}

func (s *PostgresStore) CountCorrectionsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM corrections WHERE created_at >= $1`, since.UTC()).Scan(&n)
	return n, eris.Wrap(err, "postgres: count recent corrections")
}

func (s *PostgresStore) TopCorrectedEntities(ctx context.Context, since time.Time, limit int) ([]model.EntityCorrectionCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, COUNT(*) AS n FROM corrections WHERE created_at >= $1
		 GROUP BY entity_id ORDER BY n DESC, entity_id LIMIT $2`,
		since.UTC(), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top corrected entities")
	}
	defer rows.Close()

	var out []model.EntityCorrectionCount
	for rows.Next() {
		var e model.EntityCorrectionCount
		if err := rows.Scan(&e.EntityID, &e.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity count")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: top corrected entities iterate")
}

func (s *PostgresStore) LatestCorrection(ctx context.Context, entityID string) (*model.CorrectionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+correctionColumns+` FROM corrections WHERE entity_id = $1 ORDER BY created_at DESC LIMIT 1`,
		entityID,
	)
	return scanCorrection(row)
}

// --- Learned patterns ---

func (s *PostgresStore) UpsertPattern(ctx context.Context, u PatternUpsert) (*model.LearnedPattern, error) {
	u = u.withDefaults()
	now := time.Now().UTC()

	row := s.pool.QueryRow(ctx,
		`INSERT INTO learned_patterns
			(id, entity_id, field_name, value, confidence, learning_source, priority, is_active, learned_from_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8, $9, $9)
		 ON CONFLICT (entity_id, field_name) DO UPDATE SET
			success_count   = learned_patterns.success_count + CASE WHEN learned_patterns.value = EXCLUDED.value THEN 1 ELSE 0 END,
			confidence      = CASE WHEN $10 THEN 100 ELSE LEAST(learned_patterns.confidence + $11, 100) END,
			value           = EXCLUDED.value,
			learning_source = EXCLUDED.learning_source,
			is_active       = true,
			learned_from_id = EXCLUDED.learned_from_id,
			updated_at      = EXCLUDED.updated_at
		 RETURNING `+patternColumns,
		uuid.New().String(), u.EntityID, string(u.Field), u.Value, u.SeedConfidence, string(u.Source),
		u.SeedPriority, u.CorrectionID, now, u.Source.Authoritative(), u.Step,
	)
	p, err := scanPattern(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert pattern %s/%s", u.EntityID, u.Field)
	}
	return p, nil
}

func (s *PostgresStore) GetPattern(ctx context.Context, entityID string, field model.Field) (*model.LearnedPattern, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+patternColumns+` FROM learned_patterns WHERE entity_id = $1 AND field_name = $2`,
		entityID, string(field),
	)
	return scanPattern(row)
}

func (s *PostgresStore) ListActivePatterns(ctx context.Context, entityID string) ([]model.LearnedPattern, error) {
	return s.queryPatterns(ctx, sqlActivePatterns, entityID)
}

func (s *PostgresStore) ListPatterns(ctx context.Context, activeOnly bool) ([]model.LearnedPattern, error) {
	query := `SELECT ` + patternColumns + ` FROM learned_patterns`
	if activeOnly {
		query += ` WHERE is_active`
	}
	return s.queryPatterns(ctx, query+` ORDER BY entity_id, field_name`)
}

func (s *PostgresStore) queryPatterns(ctx context.Context, query string, args ...any) ([]model.LearnedPattern, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list patterns")
	}
	defer rows.Close()

	var out []model.LearnedPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list patterns iterate")
}

func (s *PostgresStore) IncrementApplyCount(ctx context.Context, id string) error {
	return s.execOne(ctx, "pattern", id, sqlIncrementApply, id)
}

func (s *PostgresStore) IncrementSuccessCount(ctx context.Context, id string) error {
	return s.execOne(ctx, "pattern", id, sqlIncrementSuccess, id)
}

func (s *PostgresStore) DeactivatePattern(ctx context.Context, id string) error {
	return s.execOne(ctx, "pattern", id,
		`UPDATE learned_patterns SET is_active = false, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
}

// execOne runs a single-row update and maps "no rows touched" to ErrNotFound.
func (s *PostgresStore) execOne(ctx context.Context, entity, id, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s %s", entity, id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func (s *PostgresStore) CountPatternsByField(ctx context.Context) (map[model.Field]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT field_name, COUNT(*) FROM learned_patterns WHERE is_active GROUP BY field_name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count patterns by field")
	}
	defer rows.Close()

	out := make(map[model.Field]int)
	for rows.Next() {
		var f string
		var n int
		if err := rows.Scan(&f, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan field count")
		}
		out[model.Field(f)] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: count patterns iterate")
}

// --- Learning examples ---

func (s *PostgresStore) InsertExample(ctx context.Context, e *model.LearningExample) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.Active = true

	output, err := json.Marshal(e.Output)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal example output")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO learning_examples (id, entity_id, input_text, output, quality_score, correction_id, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, true, $7)`,
		e.ID, e.EntityID, e.InputText, output, e.QualityScore, e.CorrectionID, e.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert example for %s", e.EntityID)
}

func (s *PostgresStore) ListExamples(ctx context.Context, entityID string, limit int) ([]model.LearningExample, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.pool.Query(ctx, sqlListExamples, entityID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list examples")
	}
	defer rows.Close()

	var out []model.LearningExample
	for rows.Next() {
		e, err := scanExample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list examples iterate")
}

func (s *PostgresStore) CountExamples(ctx context.Context, entityID string) (int, error) {
	var n int
	var err error
	if entityID == "" {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM learning_examples WHERE is_active`).Scan(&n)
	} else {
		err = s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM learning_examples WHERE is_active AND entity_id = $1`, entityID).Scan(&n)
	}
	return n, eris.Wrap(err, "postgres: count examples")
}

// --- Statistics ---

func (s *PostgresStore) SaveDailyStats(ctx context.Context, st model.DailyStats) error {
	fields, err := json.Marshal(st.FieldAccuracy)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal field accuracy")
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO daily_stats (stat_date, total_corrections, total_patterns, total_examples, initial_accuracy,
			current_accuracy, accuracy_improvement, daily_corrections, field_accuracy, updated_at)
		 VALUES ($1::date, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (stat_date) DO UPDATE SET
			total_corrections = EXCLUDED.total_corrections,
			total_patterns = EXCLUDED.total_patterns,
			total_examples = EXCLUDED.total_examples,
			initial_accuracy = EXCLUDED.initial_accuracy,
			current_accuracy = EXCLUDED.current_accuracy,
			accuracy_improvement = EXCLUDED.accuracy_improvement,
			daily_corrections = EXCLUDED.daily_corrections,
			field_accuracy = EXCLUDED.field_accuracy,
			updated_at = EXCLUDED.updated_at`,
		dateKey(st.Date), st.TotalCorrections, st.TotalPatterns, st.TotalExamples, st.InitialAccuracy,
		st.CurrentAccuracy, st.AccuracyImprovement, st.DailyCorrections, fields, st.UpdatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: save daily stats")
}

func (s *PostgresStore) LatestDailyStats(ctx context.Context) (*model.DailyStats, error) {
	var st model.DailyStats
	var fields []byte
	err := s.pool.QueryRow(ctx,
		`SELECT stat_date, total_corrections, total_patterns, total_examples, initial_accuracy,
			current_accuracy, accuracy_improvement, daily_corrections, field_accuracy, updated_at
		 FROM daily_stats ORDER BY stat_date DESC LIMIT 1`,
	).Scan(&st.Date, &st.TotalCorrections, &st.TotalPatterns, &st.TotalExamples, &st.InitialAccuracy,
		&st.CurrentAccuracy, &st.AccuracyImprovement, &st.DailyCorrections, &fields, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest daily stats")
	}
	if err := json.Unmarshal(fields, &st.FieldAccuracy); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal field accuracy")
	}
	return &st, nil
}

// --- Domain mappings ---

// UpsertDomainMappings bulk-loads mappings through COPY into a staging table
// followed by one merge statement.
func (s *PostgresStore) UpsertDomainMappings(ctx context.Context, mappings []model.DomainMapping) (int64, error) {
	n, err := db.UpsertMappings(ctx, s.pool, mappings, time.Now())
	return n, eris.Wrap(err, "postgres: upsert domain mappings")
}

func (s *PostgresStore) GetDomainMapping(ctx context.Context, entityID string) (*model.DomainMapping, error) {
	var m model.DomainMapping
	err := s.pool.QueryRow(ctx, sqlGetMapping, entityID).
		Scan(&m.EntityID, &m.Name, &m.Coverage, &m.Payment, &m.AgeRange, &m.Renewal, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get mapping %s", entityID)
	}
	return &m, nil
}

func (s *PostgresStore) ListDomainMappings(ctx context.Context, limit int) ([]model.DomainMapping, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, name, coverage, payment, age_range, renewal, updated_at FROM domain_mappings
		 ORDER BY entity_id LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list mappings")
	}
	defer rows.Close()

	var out []model.DomainMapping
	for rows.Next() {
		var m model.DomainMapping
		if err := rows.Scan(&m.EntityID, &m.Name, &m.Coverage, &m.Payment, &m.AgeRange, &m.Renewal, &m.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mapping")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list mappings iterate")
}

// --- Documents ---

func (s *PostgresStore) SaveDocument(ctx context.Context, doc model.Document) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (entity_id, name, content, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (entity_id) DO UPDATE SET name = EXCLUDED.name, content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`,
		doc.EntityID, doc.Name, doc.Content, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save document %s", doc.EntityID)
}

func (s *PostgresStore) ListDocuments(ctx context.Context, limit int) ([]model.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, name, content FROM documents ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.EntityID, &d.Name, &d.Content); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}
