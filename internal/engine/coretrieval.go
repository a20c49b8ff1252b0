package engine

import (
	"context"

	"github.com/scrypster/exocortex/pkg/types"
)

const (
	defaultMinCoRetrievals = 3
	defaultMaxLinks        = 200
)

// BuildCoRetrievalLinks turns frequently co-retrieved memory pairs into
// "related" links (spec C6 co-retrieval-link-build job): pairs seen at
// least minCoRetrievals times (default 3) become links with strength
// min(0.9, 0.3 + 0.03*count); an existing link instead strengthens by +0.05,
// capped at 0.9. At most maxLinks (default 200) pairs are processed per run.
func (e *Engine) BuildCoRetrievalLinks(ctx context.Context, minCoRetrievals, maxLinks int) (int, error) {
	if minCoRetrievals <= 0 {
		minCoRetrievals = defaultMinCoRetrievals
	}
	if maxLinks <= 0 {
		maxLinks = defaultMaxLinks
	}

	pairs, err := e.intel.TopCoRetrievedPairs(ctx, minCoRetrievals, maxLinks)
	if err != nil {
		return 0, err
	}

	built := 0
	for _, pair := range pairs {
		strength := 0.3 + 0.03*float64(pair.Count)
		if strength > 0.9 {
			strength = 0.9
		}

		existing, err := e.links.GetLinkedRefs(ctx, pair.MemoryA, 500)
		if err == nil {
			for _, ref := range existing {
				if ref.MemoryID == pair.MemoryB {
					strength = minF(0.9, ref.Strength+0.05)
					break
				}
			}
		}

		if err := e.links.UpsertLink(ctx, &types.MemoryLink{
			SourceID: pair.MemoryA,
			TargetID: pair.MemoryB,
			LinkType: types.LinkRelated,
			Strength: strength,
		}); err != nil {
			e.log.LogError("build_co_retrieval_link", err)
			continue
		}
		built++
	}

	return built, nil
}

// PruneCoRetrievals deletes co-retrieval observations older than
// olderThanDays, returning how many rows were removed (spec C9's 05:30
// cleanup of co_retrieval rows older than 60d).
func (e *Engine) PruneCoRetrievals(ctx context.Context, olderThanDays int) (int, error) {
	return e.intel.PruneCoRetrievals(ctx, olderThanDays)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
