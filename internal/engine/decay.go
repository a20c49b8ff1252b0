package engine

import (
	"context"
	"time"

	"github.com/scrypster/exocortex/pkg/types"
)

// ArchiveResult reports how many memories the decay/archive job touched.
type ArchiveResult struct {
	Stale     int
	Abandoned int
}

// ArchiveStaleAndAbandoned soft-deletes memories matching either disjunct
// of the decay/archive job (spec C6): stale (importance < 0.3, age > 90
// days, access_count < 2) or abandoned (age > 365 days, access_count == 0).
// Already-inactive memories are never candidates.
func (e *Engine) ArchiveStaleAndAbandoned(ctx context.Context) (*ArchiveResult, error) {
	result := &ArchiveResult{}
	now := time.Now()

	stale, err := e.intel.CandidatesForDecay(ctx, 90, 1000)
	if err != nil {
		return nil, err
	}
	for _, m := range stale {
		if m.Pinned() || m.Importance >= 0.3 || m.AccessCount >= 2 {
			continue
		}
		if age(now, m) <= 90 {
			continue
		}
		if err := e.memories.Delete(ctx, m.ID); err != nil {
			e.log.LogError("archive_stale", err, "memory_id", m.ID)
			continue
		}
		result.Stale++
	}

	abandoned, err := e.intel.CandidatesForDecay(ctx, 365, 1000)
	if err != nil {
		return nil, err
	}
	for _, m := range abandoned {
		if m.Pinned() || m.AccessCount != 0 {
			continue
		}
		if age(now, m) <= 365 {
			continue
		}
		if err := e.memories.Delete(ctx, m.ID); err != nil {
			e.log.LogError("archive_abandoned", err, "memory_id", m.ID)
			continue
		}
		result.Abandoned++
	}

	return result, nil
}

func age(now time.Time, m types.Memory) float64 {
	reference := m.CreatedAt
	if m.LastAccessedAt != nil {
		reference = *m.LastAccessedAt
	}
	return now.Sub(reference).Hours() / 24
}

// Purge wraps the memory store's purge operation, removing inactive
// memories older than trash.auto_purge_days (spec C6 purge job).
func (e *Engine) Purge(ctx context.Context) (int, error) {
	days := e.settings.GetInt(ctx, "trash.auto_purge_days", 30)
	if days <= 0 {
		return 0, nil
	}
	return e.memories.Purge(ctx, days)
}
