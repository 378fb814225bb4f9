package naturalize

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/naturalize-cli/internal/resilience"
	"github.com/sells-group/naturalize-cli/internal/store"
)

// Propagator maps resolved names back onto every source record sharing the
// display name and applies the updates best-effort: parallel within a
// bounded chunk, one record's failure never aborting the rest.
type Propagator struct {
	store     store.Store
	chunkSize int
	retry     resilience.RetryConfig
}

// NewPropagator creates a Propagator updating at most chunkSize records per
// chunk.
func NewPropagator(st store.Store, chunkSize int) *Propagator {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 2
	return &Propagator{store: st, chunkSize: chunkSize, retry: retry}
}

// PropagateResult counts the outcome of one propagation pass.
type PropagateResult struct {
	Updated int
	Failed  int
}

// Apply writes resolved natural names onto all records listed in the reverse
// index. Records whose display name has no resolution (a fatal condition
// fired before their batch completed) are left untouched for the next run.
// Re-applying the same name to the same id is a no-op, so Apply is safe to
// re-run.
func (p *Propagator) Apply(ctx context.Context, resolved map[string]string, index map[string][]string) PropagateResult {
	type update struct {
		id   string
		name string
	}

	var updates []update
	for displayName, ids := range index {
		natural, ok := resolved[displayName]
		if !ok {
			continue
		}
		for _, id := range ids {
			updates = append(updates, update{id: id, name: natural})
		}
	}

	var updated, failed atomic.Int64

	for start := 0; start < len(updates); start += p.chunkSize {
		end := min(start+p.chunkSize, len(updates))

		// Plain group: per-record failures are counted, never propagated, so
		// one bad record cannot cancel its chunk.
		var g errgroup.Group
		for _, u := range updates[start:end] {
			g.Go(func() error {
				err := resilience.Do(ctx, p.retry, func(ctx context.Context) error {
					return p.store.UpdateNaturalName(ctx, u.id, u.name)
				})
				if err != nil {
					failed.Add(1)
					zap.L().Warn("record update failed",
						zap.String("record_id", u.id),
						zap.Error(err),
					)
					return nil
				}
				updated.Add(1)
				return nil
			})
		}
		_ = g.Wait()
	}

	return PropagateResult{
		Updated: int(updated.Load()),
		Failed:  int(failed.Load()),
	}
}
