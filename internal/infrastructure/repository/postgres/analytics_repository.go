package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AnalyticsRepository counts how often each indexed fragment is surfaced to
// users. Writes happen on the retrieval hot path in a fire-and-forget
// goroutine, so the batch is a single statement.
type AnalyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func (r *AnalyticsRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082302)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS retrieval_stats (
	fragment_id TEXT PRIMARY KEY,
	hit_count BIGINT NOT NULL DEFAULT 0,
	last_retrieved_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *AnalyticsRepository) RecordBatchRetrievals(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO retrieval_stats (fragment_id, hit_count, last_retrieved_at)
SELECT unnest($1::text[]), 1, $2
ON CONFLICT (fragment_id) DO UPDATE
SET hit_count = retrieval_stats.hit_count + 1,
    last_retrieved_at = EXCLUDED.last_retrieved_at
`, textArray(ids), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record retrievals: %w", err)
	}
	return nil
}

// textArray renders a postgres text[] literal; pgx through database/sql does
// not bind Go slices directly.
func textArray(items []string) string {
	out := "{"
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		out += `"` + escapeArrayElement(item) + `"`
	}
	return out + "}"
}

func escapeArrayElement(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b = append(b, '\\')
		}
		b = append(b, c)
	}
	return string(b)
}
