package naturalize

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/naturalize-cli/internal/model"
)

func TestCacheGateway_Lookup(t *testing.T) {
	st := newFakeStore()
	st.cache["Acme Plumbing LLC"] = "Acme Plumbing"
	st.cache["Bob's Burgers Inc."] = "Bob's Burgers"

	g := NewCacheGateway(st, 500)
	found, failed := g.Lookup(context.Background(), []string{"Acme Plumbing LLC", "Bob's Burgers Inc.", "Unknown Co"})

	assert.Zero(t, failed)
	assert.Equal(t, map[string]string{
		"Acme Plumbing LLC":  "Acme Plumbing",
		"Bob's Burgers Inc.": "Bob's Burgers",
	}, found)
}

func TestCacheGateway_LookupChunks(t *testing.T) {
	st := newFakeStore()
	g := NewCacheGateway(st, 2)

	_, failed := g.Lookup(context.Background(), []string{"a", "b", "c", "d", "e"})
	assert.Zero(t, failed)
	assert.Equal(t, 3, st.lookupCalls)
}

func TestCacheGateway_FailedChunkDegradesToMiss(t *testing.T) {
	st := newFakeStore()
	st.cache["a"] = "A"
	st.cache["c"] = "C"
	// Non-retryable failure on the chunk containing "a".
	st.lookupErr = func(chunk []string) error {
		if slices.Contains(chunk, "a") {
			return errors.New("connection refused by policy")
		}
		return nil
	}

	g := NewCacheGateway(st, 2)
	found, failed := g.Lookup(context.Background(), []string{"a", "b", "c", "d"})

	assert.Equal(t, 1, failed)
	// The surviving chunk still resolves; the failed one reads as all-miss.
	assert.Equal(t, map[string]string{"c": "C"}, found)
}

func TestCacheGateway_MarkUsedAbsorbsErrors(t *testing.T) {
	st := newFakeStore()
	st.touchErr = errors.New("write blocked")

	g := NewCacheGateway(st, 500)
	// Must not panic or propagate.
	g.MarkUsed(context.Background(), []string{"a", "b"})
	assert.Empty(t, st.touched)
}

func TestCacheGateway_MarkUsed(t *testing.T) {
	st := newFakeStore()
	g := NewCacheGateway(st, 2)

	g.MarkUsed(context.Background(), []string{"a", "b", "c"})
	assert.ElementsMatch(t, []string{"a", "b", "c"}, st.touched)
}

func TestCacheGateway_Write(t *testing.T) {
	st := newFakeStore()
	g := NewCacheGateway(st, 2)

	entries := []model.CacheEntry{
		{OriginalName: "a", NaturalName: "A"},
		{OriginalName: "b", NaturalName: "B"},
		{OriginalName: "c", NaturalName: "C"},
	}
	require.NoError(t, g.Write(context.Background(), entries))
	assert.Len(t, st.upserts, 3)
	assert.Equal(t, "A", st.cache["a"])
}

func TestCacheGateway_WriteError(t *testing.T) {
	st := newFakeStore()
	st.upsertErr = errors.New("disk full")

	g := NewCacheGateway(st, 500)
	err := g.Write(context.Background(), []model.CacheEntry{{OriginalName: "a", NaturalName: "A"}})
	require.Error(t, err)
}
