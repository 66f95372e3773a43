package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/terms-extractor/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// PRAGMAs are per connection; a single connection keeps busy_timeout in
	// force for every statement and serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS corrections (
	id          TEXT PRIMARY KEY,
	entity_id   TEXT NOT NULL,
	original    TEXT NOT NULL,
	corrected   TEXT NOT NULL,
	source_text TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL,
	is_learned  INTEGER NOT NULL DEFAULT 0,
	learned_at  DATETIME,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS learned_patterns (
	id              TEXT PRIMARY KEY,
	entity_id       TEXT NOT NULL,
	field_name      TEXT NOT NULL,
	value           TEXT NOT NULL,
	confidence      INTEGER NOT NULL,
	apply_count     INTEGER NOT NULL DEFAULT 0,
	success_count   INTEGER NOT NULL DEFAULT 0,
	learning_source TEXT NOT NULL,
	priority        INTEGER NOT NULL DEFAULT 50,
	is_active       INTEGER NOT NULL DEFAULT 1,
	learned_from_id TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (entity_id, field_name)
);

CREATE TABLE IF NOT EXISTS learning_examples (
	id            TEXT PRIMARY KEY,
	entity_id     TEXT NOT NULL,
	input_text    TEXT NOT NULL,
	output        TEXT NOT NULL,
	quality_score INTEGER NOT NULL,
	correction_id TEXT NOT NULL DEFAULT '',
	is_active     INTEGER NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS daily_stats (
	stat_date            TEXT PRIMARY KEY,
	total_corrections    INTEGER NOT NULL,
	total_patterns       INTEGER NOT NULL,
	total_examples       INTEGER NOT NULL,
	initial_accuracy     REAL NOT NULL,
	current_accuracy     REAL NOT NULL,
	accuracy_improvement REAL NOT NULL,
	daily_corrections    INTEGER NOT NULL,
	field_accuracy       TEXT NOT NULL,
	updated_at           DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS domain_mappings (
	entity_id  TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	coverage   TEXT NOT NULL DEFAULT '',
	payment    TEXT NOT NULL DEFAULT '',
	age_range  TEXT NOT NULL DEFAULT '',
	renewal    TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS documents (
	entity_id  TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	content    BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_corrections_entity ON corrections(entity_id);
CREATE INDEX IF NOT EXISTS idx_corrections_unlearned ON corrections(is_learned, created_at);
CREATE INDEX IF NOT EXISTS idx_corrections_created ON corrections(created_at);
CREATE INDEX IF NOT EXISTS idx_patterns_entity_active ON learned_patterns(entity_id, is_active);
CREATE INDEX IF NOT EXISTS idx_examples_entity ON learning_examples(entity_id, is_active);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Corrections ---

func (s *SQLiteStore) InsertCorrection(ctx context.Context, c *model.CorrectionRecord) error {
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
		return eris.Wrap(err, "sqlite: marshal original")
	}
	corrected, err := json.Marshal(c.Corrected)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal corrected")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO corrections (id, entity_id, original, corrected, source_text, reason, source, is_learned, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		c.ID, c.EntityID, string(original), string(corrected), c.SourceText, c.Reason, string(c.Source), c.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert correction for %s", c.EntityID)
}

const correctionColumns = `id, entity_id, original, corrected, source_text, reason, source, is_learned, learned_at, created_at`

func (s *SQLiteStore) ListUnlearnedCorrections(ctx context.Context, limit int) ([]model.CorrectionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+correctionColumns+` FROM corrections WHERE is_learned = 0 ORDER BY created_at LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unlearned corrections")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CorrectionRecord
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list unlearned corrections iterate")
}

func (s *SQLiteStore) MarkCorrectionLearned(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE corrections SET is_learned = 1, learned_at = ? WHERE id = ? AND is_learned = 0`,
		at.UTC(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: mark correction learned %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) CountCorrections(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM corrections`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count corrections")
}

func (s *SQLiteStore) CountCorrectionsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM corrections WHERE created_at >= ?`, since.UTC()).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count recent corrections")
}

func (s *SQLiteStore) TopCorrectedEntities(ctx context.Context, since time.Time, limit int) ([]model.EntityCorrectionCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, COUNT(*) AS n FROM corrections WHERE created_at >= ?
		 GROUP BY entity_id ORDER BY n DESC, entity_id LIMIT ?`,
		since.UTC(), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top corrected entities")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.EntityCorrectionCount
	for rows.Next() {
		var e model.EntityCorrectionCount
		if err := rows.Scan(&e.EntityID, &e.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity count")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: top corrected entities iterate")
}

func (s *SQLiteStore) LatestCorrection(ctx context.Context, entityID string) (*model.CorrectionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+correctionColumns+` FROM corrections WHERE entity_id = ? ORDER BY created_at DESC LIMIT 1`,
		entityID,
	)
	return scanCorrection(row)
}

// --- Learned patterns ---

const patternColumns = `id, entity_id, field_name, value, confidence, apply_count, success_count,
	learning_source, priority, is_active, learned_from_id, created_at, updated_at`

func (s *SQLiteStore) UpsertPattern(ctx context.Context, u PatternUpsert) (*model.LearnedPattern, error) {
	u = u.withDefaults()
	now := time.Now().UTC()
	authoritative := 0
	if u.Source.Authoritative() {
		authoritative = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO learned_patterns
			(id, entity_id, field_name, value, confidence, learning_source, priority, is_active, learned_from_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		 ON CONFLICT(entity_id, field_name) DO UPDATE SET
			success_count   = learned_patterns.success_count + CASE WHEN learned_patterns.value = excluded.value THEN 1 ELSE 0 END,
			confidence      = CASE WHEN ? = 1 THEN 100 ELSE MIN(learned_patterns.confidence + ?, 100) END,
			value           = excluded.value,
			learning_source = excluded.learning_source,
			is_active       = 1,
			learned_from_id = excluded.learned_from_id,
			updated_at      = excluded.updated_at`,
		uuid.New().String(), u.EntityID, string(u.Field), u.Value, u.SeedConfidence, string(u.Source),
		u.SeedPriority, u.CorrectionID, now, now,
		authoritative, u.Step,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert pattern %s/%s", u.EntityID, u.Field)
	}
	return s.GetPattern(ctx, u.EntityID, u.Field)
}

func (s *SQLiteStore) GetPattern(ctx context.Context, entityID string, field model.Field) (*model.LearnedPattern, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+patternColumns+` FROM learned_patterns WHERE entity_id = ? AND field_name = ?`,
		entityID, string(field),
	)
	return scanPattern(row)
}

func (s *SQLiteStore) ListActivePatterns(ctx context.Context, entityID string) ([]model.LearnedPattern, error) {
	return s.queryPatterns(ctx,
		`SELECT `+patternColumns+` FROM learned_patterns WHERE entity_id = ? AND is_active = 1
		 ORDER BY priority DESC, field_name`,
		entityID,
	)
}

func (s *SQLiteStore) ListPatterns(ctx context.Context, activeOnly bool) ([]model.LearnedPattern, error) {
	query := `SELECT ` + patternColumns + ` FROM learned_patterns`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	return s.queryPatterns(ctx, query+` ORDER BY entity_id, field_name`)
}

func (s *SQLiteStore) queryPatterns(ctx context.Context, query string, args ...any) ([]model.LearnedPattern, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list patterns")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.LearnedPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list patterns iterate")
}

func (s *SQLiteStore) IncrementApplyCount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE learned_patterns SET apply_count = apply_count + 1 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment apply count %s", id)
	}
	return checkRowsAffected(res, "pattern", id)
}

func (s *SQLiteStore) IncrementSuccessCount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE learned_patterns SET success_count = success_count + 1 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment success count %s", id)
	}
	return checkRowsAffected(res, "pattern", id)
}

func (s *SQLiteStore) DeactivatePattern(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE learned_patterns SET is_active = 0, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: deactivate pattern %s", id)
	}
	return checkRowsAffected(res, "pattern", id)
}

func (s *SQLiteStore) CountPatternsByField(ctx context.Context) (map[model.Field]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field_name, COUNT(*) FROM learned_patterns WHERE is_active = 1 GROUP BY field_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count patterns by field")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[model.Field]int)
	for rows.Next() {
		var f string
		var n int
		if err := rows.Scan(&f, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan field count")
		}
		out[model.Field(f)] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: count patterns iterate")
}

// --- Learning examples ---

func (s *SQLiteStore) InsertExample(ctx context.Context, e *model.LearningExample) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.Active = true

	output, err := json.Marshal(e.Output)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal example output")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO learning_examples (id, entity_id, input_text, output, quality_score, correction_id, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		e.ID, e.EntityID, e.InputText, string(output), e.QualityScore, e.CorrectionID, e.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert example for %s", e.EntityID)
}

func (s *SQLiteStore) ListExamples(ctx context.Context, entityID string, limit int) ([]model.LearningExample, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, input_text, output, quality_score, correction_id, is_active, created_at
		 FROM learning_examples WHERE entity_id = ? AND is_active = 1
		 ORDER BY quality_score DESC, created_at DESC LIMIT ?`,
		entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list examples")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.LearningExample
	for rows.Next() {
		e, err := scanExample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list examples iterate")
}

func (s *SQLiteStore) CountExamples(ctx context.Context, entityID string) (int, error) {
	query := `SELECT COUNT(*) FROM learning_examples WHERE is_active = 1`
	var args []any
	if entityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, entityID)
	}
	var n int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count examples")
}

// --- Statistics ---

func (s *SQLiteStore) SaveDailyStats(ctx context.Context, st model.DailyStats) error {
	fields, err := json.Marshal(st.FieldAccuracy)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal field accuracy")
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO daily_stats (stat_date, total_corrections, total_patterns, total_examples, initial_accuracy,
			current_accuracy, accuracy_improvement, daily_corrections, field_accuracy, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(stat_date) DO UPDATE SET
			total_corrections = excluded.total_corrections,
			total_patterns = excluded.total_patterns,
			total_examples = excluded.total_examples,
			initial_accuracy = excluded.initial_accuracy,
			current_accuracy = excluded.current_accuracy,
			accuracy_improvement = excluded.accuracy_improvement,
			daily_corrections = excluded.daily_corrections,
			field_accuracy = excluded.field_accuracy,
			updated_at = excluded.updated_at`,
		dateKey(st.Date), st.TotalCorrections, st.TotalPatterns, st.TotalExamples, st.InitialAccuracy,
		st.CurrentAccuracy, st.AccuracyImprovement, st.DailyCorrections, string(fields), st.UpdatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: save daily stats")
}

func (s *SQLiteStore) LatestDailyStats(ctx context.Context) (*model.DailyStats, error) {
	var st model.DailyStats
	var date, fields string
	err := s.db.QueryRowContext(ctx,
		`SELECT stat_date, total_corrections, total_patterns, total_examples, initial_accuracy,
			current_accuracy, accuracy_improvement, daily_corrections, field_accuracy, updated_at
		 FROM daily_stats ORDER BY stat_date DESC LIMIT 1`,
	).Scan(&date, &st.TotalCorrections, &st.TotalPatterns, &st.TotalExamples, &st.InitialAccuracy,
		&st.CurrentAccuracy, &st.AccuracyImprovement, &st.DailyCorrections, &fields, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest daily stats")
	}
	if st.Date, err = time.Parse("2006-01-02", date); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse stat date")
	}
	if err := json.Unmarshal([]byte(fields), &st.FieldAccuracy); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal field accuracy")
	}
	return &st, nil
}

// --- Domain mappings ---

func (s *SQLiteStore) UpsertDomainMappings(ctx context.Context, mappings []model.DomainMapping) (int64, error) {
	if len(mappings) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin mapping upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO domain_mappings (entity_id, name, coverage, payment, age_range, renewal, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET
			name = excluded.name, coverage = excluded.coverage, payment = excluded.payment,
			age_range = excluded.age_range, renewal = excluded.renewal, updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare mapping upsert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for _, m := range mappings {
		if _, err := stmt.ExecContext(ctx, m.EntityID, m.Name, m.Coverage, m.Payment, m.AgeRange, m.Renewal, now); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert mapping %s", m.EntityID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit mapping upsert")
	}
	return n, nil
}

func (s *SQLiteStore) GetDomainMapping(ctx context.Context, entityID string) (*model.DomainMapping, error) {
	var m model.DomainMapping
	err := s.db.QueryRowContext(ctx,
		`SELECT entity_id, name, coverage, payment, age_range, renewal, updated_at FROM domain_mappings WHERE entity_id = ?`,
		entityID,
	).Scan(&m.EntityID, &m.Name, &m.Coverage, &m.Payment, &m.AgeRange, &m.Renewal, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get mapping %s", entityID)
	}
	return &m, nil
}

func (s *SQLiteStore) ListDomainMappings(ctx context.Context, limit int) ([]model.DomainMapping, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, name, coverage, payment, age_range, renewal, updated_at FROM domain_mappings
		 ORDER BY entity_id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list mappings")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DomainMapping
	for rows.Next() {
		var m model.DomainMapping
		if err := rows.Scan(&m.EntityID, &m.Name, &m.Coverage, &m.Payment, &m.AgeRange, &m.Renewal, &m.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mapping")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list mappings iterate")
}

// --- Documents ---

func (s *SQLiteStore) SaveDocument(ctx context.Context, doc model.Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (entity_id, name, content, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET name = excluded.name, content = excluded.content, updated_at = excluded.updated_at`,
		doc.EntityID, doc.Name, doc.Content, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save document %s", doc.EntityID)
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, limit int) ([]model.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, name, content FROM documents ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.EntityID, &d.Name, &d.Content); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

// --- helpers ---

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

// isNoRows matches the empty-result error of both drivers.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

func scanCorrection(row scannable) (*model.CorrectionRecord, error) {
	var c model.CorrectionRecord
	var original, corrected []byte
	var source string

	err := row.Scan(&c.ID, &c.EntityID, &original, &corrected, &c.SourceText, &c.Reason, &source, &c.Learned, &c.LearnedAt, &c.CreatedAt)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan correction")
	}
	c.Source = model.LearningSource(source)
	if err := json.Unmarshal(original, &c.Original); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal original")
	}
	if err := json.Unmarshal(corrected, &c.Corrected); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal corrected")
	}
	return &c, nil
}

func scanPattern(row scannable) (*model.LearnedPattern, error) {
	var p model.LearnedPattern
	var field, source string
	err := row.Scan(&p.ID, &p.EntityID, &field, &p.Value, &p.Confidence, &p.ApplyCount, &p.SuccessCount,
		&source, &p.Priority, &p.Active, &p.LearnedFromID, &p.CreatedAt, &p.UpdatedAt)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan pattern")
	}
	p.Field = model.Field(field)
	p.Source = model.LearningSource(source)
	return &p, nil
}

func scanExample(row scannable) (*model.LearningExample, error) {
	var e model.LearningExample
	var output []byte
	if err := row.Scan(&e.ID, &e.EntityID, &e.InputText, &output, &e.QualityScore, &e.CorrectionID, &e.Active, &e.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "store: scan example")
	}
	if err := json.Unmarshal(output, &e.Output); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal example output")
	}
	return &e, nil
}
