package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/terms-extractor/internal/model"
)

const mappingStage = "_stage_domain_mappings"

var mappingColumns = []string{"entity_id", "name", "coverage", "payment", "age_range", "renewal", "updated_at"}

const (
	sqlStageMappings = `CREATE TEMP TABLE _stage_domain_mappings (LIKE domain_mappings INCLUDING DEFAULTS) ON COMMIT DROP`

	// Unchanged rows are skipped so RowsAffected counts real changes and
	// updated_at keeps the last time the terms moved.
	sqlMergeMappings = `INSERT INTO domain_mappings (entity_id, name, coverage, payment, age_range, renewal, updated_at)
	SELECT entity_id, name, coverage, payment, age_range, renewal, updated_at FROM _stage_domain_mappings
	ON CONFLICT (entity_id) DO UPDATE SET
		name       = EXCLUDED.name,
		coverage   = EXCLUDED.coverage,
		payment    = EXCLUDED.payment,
		age_range  = EXCLUDED.age_range,
		renewal    = EXCLUDED.renewal,
		updated_at = EXCLUDED.updated_at
	WHERE (domain_mappings.name, domain_mappings.coverage, domain_mappings.payment, domain_mappings.age_range, domain_mappings.renewal)
		IS DISTINCT FROM (EXCLUDED.name, EXCLUDED.coverage, EXCLUDED.payment, EXCLUDED.age_range, EXCLUDED.renewal)`
)

// UpsertMappings copies mappings into a transaction-scoped staging table and
// merges them into domain_mappings in one statement. Within a batch the last
// mapping for an entity wins. It returns the number of rows inserted or
// changed.
func UpsertMappings(ctx context.Context, pool Pool, mappings []model.DomainMapping, now time.Time) (int64, error) {
	batch := lastPerEntity(mappings)
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: mappings: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, sqlStageMappings); err != nil {
		return 0, eris.Wrap(err, "db: mappings: create staging table")
	}
	src := &mappingSource{rows: batch, now: now.UTC()}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{mappingStage}, mappingColumns, src); err != nil {
		return 0, eris.Wrap(err, "db: mappings: copy into staging table")
	}
	tag, err := tx.Exec(ctx, sqlMergeMappings)
	if err != nil {
		return 0, eris.Wrap(err, "db: mappings: merge")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: mappings: commit tx")
	}
	return tag.RowsAffected(), nil
}

// lastPerEntity drops blank entity IDs and keeps the last mapping for each
// entity, in first-seen order. A merge cannot touch the same key twice.
func lastPerEntity(mappings []model.DomainMapping) []model.DomainMapping {
	idx := make(map[string]int, len(mappings))
	out := make([]model.DomainMapping, 0, len(mappings))
	for _, m := range mappings {
		if m.EntityID == "" {
			continue
		}
		if i, ok := idx[m.EntityID]; ok {
			out[i] = m
			continue
		}
		idx[m.EntityID] = len(out)
		out = append(out, m)
	}
	return out
}

// mappingSource feeds mappings to COPY in mappingColumns order.
type mappingSource struct {
	rows []model.DomainMapping
	now  time.Time
	next int
}

func (s *mappingSource) Next() bool {
	s.next++
	return s.next <= len(s.rows)
}

func (s *mappingSource) Values() ([]any, error) {
	m := s.rows[s.next-1]
	return []any{m.EntityID, m.Name, m.Coverage, m.Payment, m.AgeRange, m.Renewal, s.now}, nil
}

func (s *mappingSource) Err() error { return nil }
