package engine

import (
	"context"

	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

// DensifyGraph proposes entity relationships from pairs of entities that
// co-occur in at least minCoOccurrence memories, creating a "related"
// relationship for each such pair (spec C6 graph-densify job). A pair that
// already has a "related" relationship in the same direction is left as it
// is by CreateRelationship and is still counted in the returned total.
func (e *Engine) DensifyGraph(ctx context.Context, minCoOccurrence int) (int, error) {
	if minCoOccurrence <= 0 {
		minCoOccurrence = 3
	}

	page, err := e.memories.List(ctx, storage.ListOptions{Limit: 100})
	if err != nil {
		return 0, err
	}
	for p := 2; page.HasMore; p++ {
		next, err := e.memories.List(ctx, storage.ListOptions{Page: p, Limit: 100})
		if err != nil {
			return 0, err
		}
		page.Items = append(page.Items, next.Items...)
		page.HasMore = next.HasMore
	}

	coOccur := make(map[[2]string]int)
	for i := range page.Items {
		entities, err := e.entities.GetMemoryEntities(ctx, page.Items[i].ID)
		if err != nil || len(entities) < 2 {
			continue
		}
		for a := 0; a < len(entities); a++ {
			for b := a + 1; b < len(entities); b++ {
				coOccur[orderedPair(entities[a].ID, entities[b].ID)]++
			}
		}
	}

	created := 0
	for pair, count := range coOccur {
		if count < minCoOccurrence {
			continue
		}
		rel := &types.EntityRelationship{
			SourceID:     pair[0],
			TargetID:     pair[1],
			Relationship: "related",
			Confidence:   coOccurrenceConfidence(count),
		}
		if err := e.entities.CreateRelationship(ctx, rel); err != nil {
			e.log.LogError("graph_densify", err)
			continue
		}
		created++
	}

	return created, nil
}

func coOccurrenceConfidence(count int) float64 {
	c := 0.3 + 0.1*float64(count)
	if c > 0.9 {
		c = 0.9
	}
	return c
}
