// Package naturalize implements the name naturalization pipeline: dedupe
// pending records, check the persistent name cache, resolve misses through
// the generation API under bounded concurrency, and propagate results back.
package naturalize

import (
	"strings"

	"github.com/sells-group/naturalize-cli/internal/model"
)

// DedupeResult is the output of one deduplication pass.
type DedupeResult struct {
	// Names holds the distinct non-blank display names in first-seen order.
	Names []string
	// Index maps each distinct display name to every record id sharing it.
	Index map[string][]string
	// SkippedBlank counts records whose display name was empty or whitespace.
	// They cannot be resolved and are not errors.
	SkippedBlank int
}

// Dedupe reduces a batch of records to the set of unique display names that
// need resolution. Names are matched exactly: the cache key is the raw
// display name, so no folding or trimming is applied to the key itself.
func Dedupe(records []model.SourceRecord) DedupeResult {
	result := DedupeResult{
		Index: make(map[string][]string),
	}

	for _, r := range records {
		if strings.TrimSpace(r.DisplayName) == "" {
			result.SkippedBlank++
			continue
		}
		if _, seen := result.Index[r.DisplayName]; !seen {
			result.Names = append(result.Names, r.DisplayName)
		}
		result.Index[r.DisplayName] = append(result.Index[r.DisplayName], r.ID)
	}

	return result
}
