package model

import "time"

// CacheEntry is one row of the persistent name cache. OriginalName is the
// unique key; two records sharing a display name always resolve through the
// same entry. UsageCount is incremented on every reuse, never reset.
type CacheEntry struct {
	OriginalName string    `json:"original_name"`
	NaturalName  string    `json:"natural_name"`
	UsageCount   int64     `json:"usage_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsedAt   time.Time `json:"last_used_at"`
}

// Identity reports whether the entry is an identity fallback (the natural
// name equals the original). These are written so a poisoned name is not
// retried on every run; purging them is an operator action, not pipeline work.
func (e CacheEntry) Identity() bool {
	return e.OriginalName == e.NaturalName
}

// CacheStats summarizes the name cache for the maintenance commands.
type CacheStats struct {
	Entries         int64 `json:"entries"`
	IdentityEntries int64 `json:"identity_entries"`
	TotalUsage      int64 `json:"total_usage"`
}
