package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/naturalize-cli/internal/db"
	"github.com/sells-group/naturalize-cli/internal/model"
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

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"fetch_pending":       `SELECT id, display_name, natural_name, category, created_at, updated_at FROM businesses WHERE natural_name IS NULL AND display_name IS NOT NULL AND ($2 = '' OR category = $2) ORDER BY created_at LIMIT $1`,
	"update_natural_name": `UPDATE businesses SET natural_name = $1, updated_at = now() WHERE id = $2`,
	"lookup_names":        `SELECT original_name, natural_name FROM name_cache WHERE original_name = ANY($1)`,
	"touch_names":         `UPDATE name_cache SET usage_count = usage_count + 1, last_used_at = now() WHERE original_name = ANY($1)`,
	"cache_stats":         `SELECT count(*), count(*) FILTER (WHERE natural_name = original_name), COALESCE(sum(usage_count), 0) FROM name_cache`,
	"purge_identity":      `DELETE FROM name_cache WHERE natural_name = original_name`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
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

	// Prepare frequently-used statements on each new connection.
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

// Pool returns the underlying database pool for use by subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	display_name TEXT,
	natural_name TEXT,
	category     TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_businesses_pending ON businesses(created_at)
	WHERE natural_name IS NULL AND display_name IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_businesses_category ON businesses(category);

CREATE TABLE IF NOT EXISTS name_cache (
	original_name TEXT PRIMARY KEY,
	natural_name  TEXT NOT NULL,
	usage_count   BIGINT NOT NULL DEFAULT 1,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_used_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_name_cache_last_used ON name_cache(last_used_at);
`

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

func (s *PostgresStore) FetchPending(ctx context.Context, limit int, category string) ([]model.SourceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, display_name, natural_name, category, created_at, updated_at FROM businesses WHERE natural_name IS NULL AND display_name IS NOT NULL AND ($2 = '' OR category = $2) ORDER BY created_at LIMIT $1`,
		limit, category,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch pending")
	}
	defer rows.Close()

	var records []model.SourceRecord
	for rows.Next() {
		var r model.SourceRecord
		var cat *string
		if err := rows.Scan(&r.ID, &r.DisplayName, &r.NaturalName, &cat, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pending record")
		}
		if cat != nil {
			r.Category = *cat
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate pending records")
	}
	return records, nil
}

func (s *PostgresStore) UpdateNaturalName(ctx context.Context, id, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE businesses SET natural_name = $1, updated_at = now() WHERE id = $2`,
		name, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update natural name %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: record not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) LookupNames(ctx context.Context, names []string) (map[string]string, error) {
	if len(names) == 0 {
		return map[string]string{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT original_name, natural_name FROM name_cache WHERE original_name = ANY($1)`,
		names,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lookup names")
	}
	defer rows.Close()

	found := make(map[string]string, len(names))
	for rows.Next() {
		var original, natural string
		if err := rows.Scan(&original, &natural); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cache entry")
		}
		found[original] = natural
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate cache entries")
	}
	return found, nil
}

func (s *PostgresStore) TouchNames(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE name_cache SET usage_count = usage_count + 1, last_used_at = now() WHERE original_name = ANY($1)`,
		names,
	)
	return eris.Wrap(err, "postgres: touch names")
}

func (s *PostgresStore) UpsertNames(ctx context.Context, entries []model.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e.OriginalName, e.NaturalName}
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "name_cache",
		Columns:      []string{"original_name", "natural_name"},
		ConflictKeys: []string{"original_name"},
		UpdateExprs: []string{
			"natural_name = EXCLUDED.natural_name",
			"usage_count = name_cache.usage_count + 1",
			"last_used_at = now()",
		},
	}, rows)
	return eris.Wrap(err, "postgres: upsert names")
}

func (s *PostgresStore) CacheStats(ctx context.Context) (*model.CacheStats, error) {
	var stats model.CacheStats
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE natural_name = original_name), COALESCE(sum(usage_count), 0) FROM name_cache`,
	).Scan(&stats.Entries, &stats.IdentityEntries, &stats.TotalUsage)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: cache stats")
	}
	return &stats, nil
}

func (s *PostgresStore) PurgeIdentityEntries(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM name_cache WHERE natural_name = original_name`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge identity entries")
	}
	return tag.RowsAffected(), nil
}
