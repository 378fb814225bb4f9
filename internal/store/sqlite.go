package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/naturalize-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It exists for local
// development and tests; production runs use PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id           TEXT PRIMARY KEY,
	display_name TEXT,
	natural_name TEXT,
	category     TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME
);

CREATE INDEX IF NOT EXISTS idx_businesses_category ON businesses(category);

CREATE TABLE IF NOT EXISTS name_cache (
	original_name TEXT PRIMARY KEY,
	natural_name  TEXT NOT NULL,
	usage_count   INTEGER NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	last_used_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FetchPending(ctx context.Context, limit int, category string) ([]model.SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_name, natural_name, category, created_at, updated_at FROM businesses WHERE natural_name IS NULL AND display_name IS NOT NULL AND (? = '' OR category = ?) ORDER BY created_at LIMIT ?`,
		category, category, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch pending")
	}
	defer rows.Close()

	var records []model.SourceRecord
	for rows.Next() {
		var r model.SourceRecord
		var cat *string
		if err := rows.Scan(&r.ID, &r.DisplayName, &r.NaturalName, &cat, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pending record")
		}
		if cat != nil {
			r.Category = *cat
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate pending records")
	}
	return records, nil
}

func (s *SQLiteStore) UpdateNaturalName(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE businesses SET natural_name = ?, updated_at = datetime('now') WHERE id = ?`,
		name, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update natural name %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: record not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) LookupNames(ctx context.Context, names []string) (map[string]string, error) {
	if len(names) == 0 {
		return map[string]string{}, nil
	}

	query := `SELECT original_name, natural_name FROM name_cache WHERE original_name IN (` +
		placeholders(len(names)) + `)`
	rows, err := s.db.QueryContext(ctx, query, toAnySlice(names)...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lookup names")
	}
	defer rows.Close()

	found := make(map[string]string, len(names))
	for rows.Next() {
		var original, natural string
		if err := rows.Scan(&original, &natural); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cache entry")
		}
		found[original] = natural
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate cache entries")
	}
	return found, nil
}

func (s *SQLiteStore) TouchNames(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	query := `UPDATE name_cache SET usage_count = usage_count + 1, last_used_at = datetime('now') WHERE original_name IN (` +
		placeholders(len(names)) + `)`
	_, err := s.db.ExecContext(ctx, query, toAnySlice(names)...)
	return eris.Wrap(err, "sqlite: touch names")
}

func (s *SQLiteStore) UpsertNames(ctx context.Context, entries []model.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO name_cache (original_name, natural_name) VALUES (?, ?)
		 ON CONFLICT(original_name) DO UPDATE SET
			natural_name = excluded.natural_name,
			usage_count = usage_count + 1,
			last_used_at = datetime('now')`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.OriginalName, e.NaturalName); err != nil {
			return eris.Wrapf(err, "sqlite: upsert %q", e.OriginalName)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit upsert tx")
}

func (s *SQLiteStore) CacheStats(ctx context.Context) (*model.CacheStats, error) {
	var stats model.CacheStats
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*),
			COALESCE(sum(CASE WHEN natural_name = original_name THEN 1 ELSE 0 END), 0),
			COALESCE(sum(usage_count), 0)
		 FROM name_cache`,
	).Scan(&stats.Entries, &stats.IdentityEntries, &stats.TotalUsage)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: cache stats")
	}
	return &stats, nil
}

func (s *SQLiteStore) PurgeIdentityEntries(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM name_cache WHERE natural_name = original_name`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge identity entries")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return n, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toAnySlice(names []string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}
