package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/terms-extractor/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var patternRowColumns = []string{
	"id", "entity_id", "field_name", "value", "confidence", "apply_count", "success_count",
	"learning_source", "priority", "is_active", "learned_from_id", "created_at", "updated_at",
}

func TestPostgresStore_InsertCorrection(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO corrections`).
		WithArgs(pgxmock.AnyArg(), "P1", pgxmock.AnyArg(), pgxmock.AnyArg(), "text", "", "USER_CORRECTION", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	c := &model.CorrectionRecord{EntityID: "P1", SourceText: "text"}
	require.NoError(t, s.InsertCorrection(context.Background(), c))
	assert.NotEmpty(t, c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkCorrectionLearned(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE corrections SET is_learned = true`).
		WithArgs(pgxmock.AnyArg(), "c1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE corrections SET is_learned = true`).
		WithArgs(pgxmock.AnyArg(), "c1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := s.MarkCorrectionLearned(context.Background(), "c1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkCorrectionLearned(context.Background(), "c1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPattern(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`(?s)INSERT INTO learned_patterns .* ON CONFLICT \(entity_id, field_name\) DO UPDATE .* RETURNING`).
		WithArgs(pgxmock.AnyArg(), "P1", "insuTerm", "종신", 80, "UW_MAPPING", 50, "", pgxmock.AnyArg(), true, 10).
		WillReturnRows(pgxmock.NewRows(patternRowColumns).
			AddRow("p1", "P1", "insuTerm", "종신", 100, 0, 0, "UW_MAPPING", 50, true, "", now, now))

	p, err := s.UpsertPattern(context.Background(), PatternUpsert{
		EntityID: "P1", Field: model.FieldCoverage, Value: "종신", Source: model.LearningSourceDomainMapping,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, p.Confidence)
	assert.Equal(t, model.FieldCoverage, p.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListActivePatterns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM learned_patterns WHERE entity_id = \$1 AND is_active`).
		WithArgs("P1").
		WillReturnRows(pgxmock.NewRows(patternRowColumns).
			AddRow("p1", "P1", "insuTerm", "종신", 90, 3, 2, "USER_CORRECTION", 50, true, "c1", now, now).
			AddRow("p2", "P1", "payTerm", "20년납", 80, 0, 0, "USER_CORRECTION", 50, true, "c1", now, now))

	list, err := s.ListActivePatterns(context.Background(), "P1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 3, list[0].ApplyCount)
	assert.Equal(t, model.FieldPayment, list[1].Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPattern_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM learned_patterns WHERE entity_id = \$1 AND field_name = \$2`).
		WithArgs("P1", "renew").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetPattern(context.Background(), "P1", model.FieldRenewal)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IncrementApplyCount_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE learned_patterns SET apply_count = apply_count \+ 1`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.IncrementApplyCount(context.Background(), "missing")
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDomainMapping(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM domain_mappings WHERE entity_id = \$1`).
		WithArgs("P1").
		WillReturnRows(pgxmock.NewRows([]string{"entity_id", "name", "coverage", "payment", "age_range", "renewal", "updated_at"}).
			AddRow("P1", "종신보험", "종신", "20년납", "15~65", "비갱신형", now))
	mock.ExpectQuery(`FROM domain_mappings WHERE entity_id = \$1`).
		WithArgs("P2").
		WillReturnError(pgx.ErrNoRows)

	m, err := s.GetDomainMapping(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, "20년납", m.Payment)

	_, err = s.GetDomainMapping(context.Background(), "P2")
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertDomainMappings(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_domain_mappings"},
		[]string{"entity_id", "name", "coverage", "payment", "age_range", "renewal", "updated_at"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO .* ON CONFLICT`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.UpsertDomainMappings(context.Background(), []model.DomainMapping{
		{EntityID: "P1", Coverage: "종신"},
		{EntityID: "P2", Coverage: "80세만기"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountCorrections_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM corrections`).
		WillReturnError(errors.New("connection refused"))

	_, err := s.CountCorrections(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count corrections")
	assert.NoError(t, mock.ExpectationsWereMet())
}
