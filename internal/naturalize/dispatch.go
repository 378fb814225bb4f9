package naturalize

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Dispatcher is the single gate through which batch resolutions run. It
// bounds simultaneous in-flight calls and optionally paces dispatches to
// respect upstream rate limits. When a handler returns an error (the fatal
// quota path), admission stops and in-flight calls drain before Run returns.
type Dispatcher struct {
	maxConcurrent int
	limiter       *rate.Limiter
}

// NewDispatcher creates a Dispatcher. perSecond <= 0 disables pacing.
func NewDispatcher(maxConcurrent int, perSecond float64) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	d := &Dispatcher{maxConcurrent: maxConcurrent}
	if perSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return d
}

// Run dispatches fn for every batch. The first error cancels admission of
// further batches and is returned after in-flight handlers finish.
func (d *Dispatcher) Run(ctx context.Context, batches [][]string, fn func(ctx context.Context, batch []string) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxConcurrent)

	for _, batch := range batches {
		if d.limiter != nil {
			if err := d.limiter.Wait(gctx); err != nil {
				// gctx is cancelled once a handler fails; stop admitting.
				break
			}
		} else if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(gctx, batch)
		})
	}

	return g.Wait()
}

// chunk splits names into batches of at most size.
func chunk(names []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var out [][]string
	for start := 0; start < len(names); start += size {
		end := min(start+size, len(names))
		out = append(out, names[start:end])
	}
	return out
}
