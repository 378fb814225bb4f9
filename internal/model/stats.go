package model

import "time"

// RunStatus tracks a pipeline run through its state machine.
type RunStatus string

const (
	RunStatusStarted      RunStatus = "started"
	RunStatusFetched      RunStatus = "fetched"
	RunStatusDeduped      RunStatus = "deduped"
	RunStatusCacheChecked RunStatus = "cache_checked"
	RunStatusResolving    RunStatus = "resolving"
	RunStatusCacheWritten RunStatus = "cache_written"
	RunStatusPropagated   RunStatus = "propagated"
	RunStatusCompleted    RunStatus = "completed"
	RunStatusFailed       RunStatus = "failed"
	RunStatusEmpty        RunStatus = "empty"
)

// Terminal reports whether the status ends a run.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusEmpty
}

// RunStats aggregates counters for a single pipeline execution. It is
// ephemeral: callers that want history persist it themselves.
type RunStats struct {
	RunID        string    `json:"run_id"`
	Status       RunStatus `json:"status"`
	Fetched      int       `json:"fetched"`
	SkippedBlank int       `json:"skipped_blank"`
	UniqueNames  int       `json:"unique_names"`
	CacheHits    int       `json:"cache_hits"`
	APICalls     int       `json:"api_calls"`
	Resolved     int       `json:"resolved"`
	// IdentityFallbacks counts names returned unchanged after retries were
	// exhausted. They are cached but not counted as Resolved.
	IdentityFallbacks int           `json:"identity_fallbacks"`
	RecordsUpdated    int           `json:"records_updated"`
	Errors            int           `json:"errors"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"-"`
	DurationMS        int64         `json:"duration_ms"`
	FatalError        string        `json:"fatal_error,omitempty"`
}

// Finish stamps the duration and terminal status.
func (s *RunStats) Finish(status RunStatus) {
	s.Status = status
	s.Duration = time.Since(s.StartedAt)
	s.DurationMS = s.Duration.Milliseconds()
}
