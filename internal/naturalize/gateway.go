package naturalize

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/naturalize-cli/internal/model"
	"github.com/sells-group/naturalize-cli/internal/resilience"
	"github.com/sells-group/naturalize-cli/internal/store"
)

// CacheGateway fronts the persistent name cache. It chunks batched reads and
// writes to stay under backend query-size limits and degrades chunk failures
// to cache misses: recomputation is always safe, losing a run never is.
type CacheGateway struct {
	store     store.Store
	chunkSize int
	retry     resilience.RetryConfig
}

// NewCacheGateway creates a gateway chunking at chunkSize keys per query.
func NewCacheGateway(st store.Store, chunkSize int) *CacheGateway {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("store", "name_cache")
	return &CacheGateway{store: st, chunkSize: chunkSize, retry: retry}
}

// Lookup returns the known original→natural mappings for names. Unknown
// names are simply absent. A chunk that still fails after retries is logged
// and treated as all-miss; failedChunks reports how many were dropped.
func (g *CacheGateway) Lookup(ctx context.Context, names []string) (found map[string]string, failedChunks int) {
	found = make(map[string]string, len(names))

	for _, part := range chunk(names, g.chunkSize) {
		res, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (map[string]string, error) {
			return g.store.LookupNames(ctx, part)
		})
		if err != nil {
			failedChunks++
			zap.L().Warn("cache lookup chunk failed, treating as miss",
				zap.Int("chunk_size", len(part)),
				zap.Error(err),
			)
			continue
		}
		for k, v := range res {
			found[k] = v
		}
	}

	return found, failedChunks
}

// MarkUsed bumps usage counters for cache hits. Failures are logged and
// absorbed; usage accounting is advisory.
func (g *CacheGateway) MarkUsed(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}
	for _, part := range chunk(names, g.chunkSize) {
		if err := g.store.TouchNames(ctx, part); err != nil {
			zap.L().Warn("cache usage update failed",
				zap.Int("chunk_size", len(part)),
				zap.Error(err),
			)
		}
	}
}

// Write upserts resolved entries, chunked. Safe to call concurrently from
// independent runs on overlapping name sets: last write wins, usage_count
// increments on conflict.
func (g *CacheGateway) Write(ctx context.Context, entries []model.CacheEntry) error {
	for start := 0; start < len(entries); start += g.chunkSize {
		end := min(start+g.chunkSize, len(entries))
		part := entries[start:end]
		err := resilience.Do(ctx, g.retry, func(ctx context.Context) error {
			return g.store.UpsertNames(ctx, part)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
