package store

import (
	"context"

	"github.com/sells-group/naturalize-cli/internal/model"
)

// Store defines the persistence interface for the naturalization pipeline.
// It covers the two shared tables: source records and the name cache.
type Store interface {
	// Records
	FetchPending(ctx context.Context, limit int, category string) ([]model.SourceRecord, error)
	// UpdateNaturalName is idempotent: re-applying the same name to the same
	// id is a no-op from the caller's perspective.
	UpdateNaturalName(ctx context.Context, id, name string) error

	// Name cache
	LookupNames(ctx context.Context, names []string) (map[string]string, error)
	TouchNames(ctx context.Context, names []string) error
	UpsertNames(ctx context.Context, entries []model.CacheEntry) error

	// Maintenance
	CacheStats(ctx context.Context) (*model.CacheStats, error)
	PurgeIdentityEntries(ctx context.Context) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
