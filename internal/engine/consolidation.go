package engine

import (
	"context"
	"strconv"

	"github.com/scrypster/exocortex/internal/idgen"
	"github.com/scrypster/exocortex/internal/scoring"
	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

// ConsolidationResult reports what the consolidation job did.
type ConsolidationResult struct {
	ClustersFound int
	Consolidated  []types.Consolidation
}

// Consolidate greedily clusters active, embedded memories by cosine
// similarity and merges clusters at or above minClusterSize into a single
// summary memory (spec C6 consolidation job). The default threshold is a
// cosine of 0.75 and a minimum cluster size of 3.
func (e *Engine) Consolidate(ctx context.Context, minSimilarity float64, minClusterSize int) (*ConsolidationResult, error) {
	if minSimilarity <= 0 {
		minSimilarity = 0.75
	}
	if minClusterSize <= 0 {
		minClusterSize = 3
	}

	page, err := e.memories.List(ctx, storage.ListOptions{Limit: 100, SortBy: "created_at", SortOrder: "desc"})
	if err != nil {
		return nil, err
	}
	for p := 2; page.HasMore && p <= 10; p++ {
		next, err := e.memories.List(ctx, storage.ListOptions{Page: p, Limit: 100, SortBy: "created_at", SortOrder: "desc"})
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, next.Items...)
		page.HasMore = next.HasMore
	}

	var candidates []*types.Memory
	for i := range page.Items {
		if len(page.Items[i].Embedding) > 0 {
			candidates = append(candidates, &page.Items[i])
		}
	}

	clusters := greedyCluster(candidates, minSimilarity)

	result := &ConsolidationResult{}
	for _, cluster := range clusters {
		if len(cluster) < minClusterSize {
			continue
		}
		result.ClustersFound++

		summaryContent := summarizeCluster(cluster)
		sourceIDs := make([]string, len(cluster))
		for i, m := range cluster {
			sourceIDs[i] = m.ID
		}

		created, err := e.memories.Create(ctx, types.CreateMemoryInput{
			Content:     summaryContent,
			ContentType: types.ContentTypeSummary,
			Source:      types.SourceConsolidation,
			Importance:  floatPtr(0.8),
			Metadata: map[string]interface{}{
				"strategy":    "agglomerative-cosine",
				"source_count": len(cluster),
				"source_ids":  sourceIDs,
			},
		})
		if err != nil {
			e.log.LogError("consolidate_create_summary", err)
			continue
		}

		for _, m := range cluster {
			if err := e.memories.Supersede(ctx, m.ID, created.Memory.ID); err != nil {
				e.log.LogError("consolidate_supersede", err, "memory_id", m.ID)
			}
		}

		record := types.Consolidation{
			ID:             idgen.New("cons"),
			SummaryID:      created.Memory.ID,
			SourceIDs:      sourceIDs,
			Strategy:       "agglomerative-cosine",
			MemoriesMerged: len(cluster),
		}
		if e.intel != nil {
			if err := e.intel.RecordConsolidation(ctx, &record); err != nil {
				e.log.LogError("record_consolidation", err)
			}
		}
		result.Consolidated = append(result.Consolidated, record)
	}

	return result, nil
}

// greedyCluster performs single-linkage agglomerative clustering: each
// unclustered memory seeds a new cluster that greedily absorbs every
// remaining memory within minSimilarity of any current cluster member.
func greedyCluster(memories []*types.Memory, minSimilarity float64) [][]*types.Memory {
	assigned := make([]bool, len(memories))
	var clusters [][]*types.Memory

	for i := range memories {
		if assigned[i] {
			continue
		}
		cluster := []*types.Memory{memories[i]}
		assigned[i] = true

		grew := true
		for grew {
			grew = false
			for j := range memories {
				if assigned[j] {
					continue
				}
				for _, member := range cluster {
					if scoring.Cosine(member.Embedding, memories[j].Embedding) >= minSimilarity {
						cluster = append(cluster, memories[j])
						assigned[j] = true
						grew = true
						break
					}
				}
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

func summarizeCluster(cluster []*types.Memory) string {
	out := "Consolidated summary of " + strconv.Itoa(len(cluster)) + " related memories:\n"
	for _, m := range cluster {
		out += "- " + truncate(m.Content, 200) + "\n"
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func floatPtr(f float64) *float64 { return &f }
