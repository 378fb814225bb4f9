package naturalize

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/naturalize-cli/internal/config"
	"github.com/sells-group/naturalize-cli/internal/resilience"
	"github.com/sells-group/naturalize-cli/pkg/anthropic"
)

// rateLimitBackoffBase seeds the increasing delay for rate-limited retries.
const rateLimitBackoffBase = 2 * time.Second

// rateLimitBackoffCap bounds the rate-limited retry delay.
const rateLimitBackoffCap = 60 * time.Second

// Naturalizer resolves one bounded batch of display names per generation
// API call.
type Naturalizer struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
}

// NewNaturalizer builds a Naturalizer from config.
func NewNaturalizer(client anthropic.Client, acfg config.AnthropicConfig, pcfg config.PipelineConfig) *Naturalizer {
	return &Naturalizer{
		client:      client,
		model:       acfg.Model,
		maxTokens:   acfg.MaxTokens,
		temperature: acfg.Temperature,
		maxRetries:  pcfg.MaxRetries,
		retryDelay:  pcfg.RetryDelay,
	}
}

// Resolution is the outcome of resolving one batch. Names always has the
// same length and order as the input batch.
type Resolution struct {
	Names []string
	// Fallback is true when retries were exhausted and the batch was
	// returned unchanged. Fallback resolutions are still cached so a
	// poisoned name is not re-attempted on every run.
	Fallback bool
	// Calls counts the API attempts actually made.
	Calls int
	Usage anthropic.TokenUsage
}

// Resolve calls the generation API for a batch of names. Error handling
// follows a three-way classification:
//   - quota-exhausted: returned immediately; the caller aborts the run
//   - rate-limited: retried with an increasing delay, bounded attempts
//   - anything else: retried with a fixed delay, bounded attempts, then the
//     batch falls back to identity rather than failing the run
func (n *Naturalizer) Resolve(ctx context.Context, batch []string) (*Resolution, error) {
	if len(batch) == 0 {
		return &Resolution{}, nil
	}

	log := zap.L().With(zap.Int("batch_size", len(batch)))
	req := anthropic.MessageRequest{
		Model:       n.model,
		MaxTokens:   n.maxTokens,
		System:      systemPrompt,
		Temperature: &n.temperature,
		Messages: []anthropic.Message{
			{Role: "user", Content: BuildUserMessage(batch)},
		},
	}

	res := &Resolution{}
	var lastErr error

	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		resp, err := n.client.CreateMessage(ctx, req)
		res.Calls++
		if err == nil {
			resp.Usage.LogCost(n.model, "naturalize")
			res.Names = ParseNaturalNames(resp.Text, batch)
			res.Usage = resp.Usage
			return res, nil
		}
		lastErr = err

		if resilience.IsQuotaExhausted(err) {
			return nil, eris.Wrap(err, "naturalize: quota exhausted")
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "naturalize: cancelled")
		}
		if attempt == n.maxRetries {
			break
		}

		delay := n.retryDelay
		if resilience.IsRateLimited(err) {
			delay = rateLimitDelay(err, attempt)
		}
		log.Warn("naturalize: attempt failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Bool("rate_limited", resilience.IsRateLimited(err)),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, eris.Wrap(ctx.Err(), "naturalize: cancelled")
		case <-timer.C:
		}
	}

	// Retries exhausted: identity fallback, never block the run on one batch.
	log.Warn("naturalize: retries exhausted, falling back to identity",
		zap.Int("calls", res.Calls),
		zap.Error(lastErr),
	)
	res.Names = make([]string, len(batch))
	copy(res.Names, batch)
	res.Fallback = true
	return res, nil
}

// rateLimitDelay honors a server-supplied retry-after when present, otherwise
// doubles from the base per attempt.
func rateLimitDelay(err error, attempt int) time.Duration {
	var rl *resilience.RateLimitedError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	delay := rateLimitBackoffBase << uint(attempt)
	if delay > rateLimitBackoffCap {
		delay = rateLimitBackoffCap
	}
	return delay
}
