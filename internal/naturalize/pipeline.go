package naturalize

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/naturalize-cli/internal/config"
	"github.com/sells-group/naturalize-cli/internal/model"
	"github.com/sells-group/naturalize-cli/internal/store"
	"github.com/sells-group/naturalize-cli/pkg/anthropic"
)

// Pipeline drives one naturalization pass:
//
//	fetch → dedupe → cache lookup → resolve misses → cache write → propagate
//
// Only a quota-exhausted generation failure ends a run in the failed state;
// every other error is absorbed into the stats. There is no cross-run
// coordination: two simultaneous runs may both resolve the same name, which
// the last-write-wins cache upsert makes harmless.
type Pipeline struct {
	cfg         *config.Config
	store       store.Store
	gateway     *CacheGateway
	naturalizer *Naturalizer
	dispatcher  *Dispatcher
	propagator  *Propagator
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, client anthropic.Client) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		store:       st,
		gateway:     NewCacheGateway(st, cfg.Pipeline.LookupChunkSize),
		naturalizer: NewNaturalizer(client, cfg.Anthropic, cfg.Pipeline),
		dispatcher:  NewDispatcher(cfg.Pipeline.MaxConcurrent, cfg.Pipeline.DispatchPerSecond),
		propagator:  NewPropagator(st, cfg.Pipeline.UpdateChunkSize),
	}
}

// Run executes one pipeline pass over at most limit pending records,
// optionally filtered by category. The returned RunStats is always non-nil;
// the error is non-nil only for terminal failures (store unreachable or
// quota exhausted).
func (p *Pipeline) Run(ctx context.Context, limit int, category string) (*model.RunStats, error) {
	stats := &model.RunStats{
		RunID:     uuid.New().String(),
		Status:    model.RunStatusStarted,
		StartedAt: time.Now().UTC(),
	}
	log := zap.L().With(zap.String("run_id", stats.RunID))
	log.Info("pipeline: starting run", zap.Int("limit", limit), zap.String("category", category))

	// Fetch.
	records, err := p.store.FetchPending(ctx, limit, category)
	if err != nil {
		err = eris.Wrap(err, "pipeline: fetch pending")
		stats.FatalError = err.Error()
		stats.Finish(model.RunStatusFailed)
		return stats, err
	}
	stats.Status = model.RunStatusFetched
	stats.Fetched = len(records)

	if len(records) == 0 {
		stats.Finish(model.RunStatusEmpty)
		log.Info("pipeline: no pending records")
		return stats, nil
	}

	// Dedupe.
	dd := Dedupe(records)
	stats.Status = model.RunStatusDeduped
	stats.UniqueNames = len(dd.Names)
	stats.SkippedBlank = dd.SkippedBlank

	if len(dd.Names) == 0 {
		stats.Finish(model.RunStatusEmpty)
		log.Info("pipeline: all pending records have blank names",
			zap.Int("skipped", dd.SkippedBlank))
		return stats, nil
	}

	// Cache lookup, always before any generation call for the same names.
	hits, failedChunks := p.gateway.Lookup(ctx, dd.Names)
	stats.Status = model.RunStatusCacheChecked
	stats.CacheHits = len(hits)
	stats.Errors += failedChunks
	p.gateway.MarkUsed(ctx, mapKeys(hits))

	resolved := make(map[string]string, len(dd.Names))
	for k, v := range hits {
		resolved[k] = v
	}

	var missing []string
	for _, name := range dd.Names {
		if _, ok := hits[name]; !ok {
			missing = append(missing, name)
		}
	}

	log.Info("pipeline: cache checked",
		zap.Int("unique_names", len(dd.Names)),
		zap.Int("cache_hits", len(hits)),
		zap.Int("misses", len(missing)),
	)

	// Resolve misses. Skipped entirely on a full cache hit.
	var fatal error
	if len(missing) > 0 {
		stats.Status = model.RunStatusResolving
		fatal = p.resolveMissing(ctx, missing, resolved, stats, log)
	}
	stats.Status = model.RunStatusCacheWritten

	// Propagate whatever resolved, even after a fatal condition: completed
	// batches are kept, unresolved names wait for the next run.
	pr := p.propagator.Apply(ctx, resolved, dd.Index)
	stats.Status = model.RunStatusPropagated
	stats.RecordsUpdated = pr.Updated
	stats.Errors += pr.Failed

	if fatal != nil {
		stats.FatalError = fatal.Error()
		stats.Finish(model.RunStatusFailed)
		log.Error("pipeline: run failed",
			zap.Int("records_updated", stats.RecordsUpdated),
			zap.Int("errors", stats.Errors),
			zap.Error(fatal),
		)
		return stats, fatal
	}

	stats.Finish(model.RunStatusCompleted)
	log.Info("pipeline: run complete",
		zap.Int("fetched", stats.Fetched),
		zap.Int("unique_names", stats.UniqueNames),
		zap.Int("cache_hits", stats.CacheHits),
		zap.Int("api_calls", stats.APICalls),
		zap.Int("identity_fallbacks", stats.IdentityFallbacks),
		zap.Int("records_updated", stats.RecordsUpdated),
		zap.Int("errors", stats.Errors),
		zap.Int64("duration_ms", stats.DurationMS),
	)
	return stats, nil
}

// resolveMissing dispatches generation batches for cache misses, writing each
// batch through to the cache as soon as it resolves so completed work
// survives a later fatal condition. Returns the fatal error, if any.
func (p *Pipeline) resolveMissing(ctx context.Context, missing []string, resolved map[string]string, stats *model.RunStats, log *zap.Logger) error {
	batches := chunk(missing, p.cfg.Pipeline.BatchSize)
	var mu sync.Mutex

	err := p.dispatcher.Run(ctx, batches, func(ctx context.Context, batch []string) error {
		res, rerr := p.naturalizer.Resolve(ctx, batch)

		mu.Lock()
		if res != nil {
			stats.APICalls += res.Calls
		}
		mu.Unlock()

		if rerr != nil {
			return rerr
		}

		entries := make([]model.CacheEntry, len(batch))
		for i, name := range batch {
			entries[i] = model.CacheEntry{OriginalName: name, NaturalName: res.Names[i]}
		}

		mu.Lock()
		for i, name := range batch {
			resolved[name] = res.Names[i]
		}
		if res.Fallback {
			stats.IdentityFallbacks += len(batch)
		} else {
			stats.Resolved += len(batch)
		}
		mu.Unlock()

		if werr := p.gateway.Write(ctx, entries); werr != nil {
			log.Warn("pipeline: cache write failed, records still propagate this run",
				zap.Int("entries", len(entries)),
				zap.Error(werr),
			)
			mu.Lock()
			stats.Errors++
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: resolving aborted")
	}
	return nil
}

func mapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
