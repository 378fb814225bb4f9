package naturalize

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sells-group/naturalize-cli/internal/model"
	"github.com/sells-group/naturalize-cli/pkg/anthropic"
)

// fakeStore is an in-memory store.Store with per-operation error injection.
type fakeStore struct {
	mu sync.Mutex

	pending []model.SourceRecord
	cache   map[string]string
	updates map[string]string // record id → natural name written
	touched []string
	upserts []model.CacheEntry

	lookupCalls int

	fetchErr  error
	lookupErr func(chunk []string) error
	touchErr  error
	upsertErr error
	updateErr func(id string) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cache:   make(map[string]string),
		updates: make(map[string]string),
	}
}

func (f *fakeStore) FetchPending(ctx context.Context, limit int, category string) ([]model.SourceRecord, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	return f.pending[:limit], nil
}

func (f *fakeStore) UpdateNaturalName(ctx context.Context, id, name string) error {
	if f.updateErr != nil {
		if err := f.updateErr(id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = name
	return nil
}

func (f *fakeStore) LookupNames(ctx context.Context, names []string) (map[string]string, error) {
	f.mu.Lock()
	f.lookupCalls++
	f.mu.Unlock()
	if f.lookupErr != nil {
		if err := f.lookupErr(names); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	found := make(map[string]string)
	for _, n := range names {
		if v, ok := f.cache[n]; ok {
			found[n] = v
		}
	}
	return found, nil
}

func (f *fakeStore) TouchNames(ctx context.Context, names []string) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, names...)
	return nil
}

func (f *fakeStore) UpsertNames(ctx context.Context, entries []model.CacheEntry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.cache[e.OriginalName] = e.NaturalName
	}
	f.upserts = append(f.upserts, entries...)
	return nil
}

func (f *fakeStore) CacheStats(ctx context.Context) (*model.CacheStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &model.CacheStats{Entries: int64(len(f.cache))}
	for k, v := range f.cache {
		if k == v {
			stats.IdentityEntries++
		}
	}
	return stats, nil
}

func (f *fakeStore) PurgeIdentityEntries(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, v := range f.cache {
		if k == v {
			delete(f.cache, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Migrate(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }

// fakeClient implements anthropic.Client with a scripted response function.
type fakeClient struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (c *fakeClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	c.mu.Unlock()
	return c.fn(call, req)
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// namesFromRequest recovers the batch names from a rendered user message.
func namesFromRequest(req anthropic.MessageRequest) []string {
	var names []string
	for _, line := range strings.Split(req.Messages[0].Content, "\n") {
		if !ordinalRe.MatchString(line) || strings.TrimSpace(line) == "" {
			continue
		}
		names = append(names, strings.TrimSpace(ordinalRe.ReplaceAllString(line, "")))
	}
	return names
}

// shortenResponse answers a batch request the way the live model would,
// stripping a trailing " LLC" from every name.
func shortenResponse(req anthropic.MessageRequest) *anthropic.MessageResponse {
	var sb strings.Builder
	for i, name := range namesFromRequest(req) {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.TrimSuffix(name, " LLC"))
	}
	return &anthropic.MessageResponse{
		Text:  sb.String(),
		Usage: anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}
