package engine

import (
	"context"

	"github.com/scrypster/exocortex/internal/storage"
)

// BackfillEntities re-runs entity extraction over active memories that have
// no linked entities yet, for content created before an entity existed to
// link against, or added while extraction was skipped (spec C9's
// entity-backfill job).
func (e *Engine) BackfillEntities(ctx context.Context, maxMemories int) (int, error) {
	if maxMemories <= 0 {
		maxMemories = 1000
	}

	page, err := e.memories.List(ctx, storage.ListOptions{Limit: maxMemories, SortBy: "created_at", SortOrder: "desc"})
	if err != nil {
		return 0, err
	}

	backfilled := 0
	for i := range page.Items {
		m := &page.Items[i]
		linked, err := e.entities.GetMemoryEntities(ctx, m.ID)
		if err != nil {
			e.log.LogError("entity_backfill_lookup", err, "memory_id", m.ID)
			continue
		}
		if len(linked) > 0 {
			continue
		}
		e.extractEntities(ctx, m)
		backfilled++
	}

	return backfilled, nil
}
