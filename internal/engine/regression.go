package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/scrypster/exocortex/internal/idgen"
	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

// RegressionAlert is one golden query whose current results drifted enough
// from its baseline to alert.
type RegressionAlert struct {
	QueryID      string
	Overlap      float64
	ExactOrder   bool
	AvgRankShift float64
}

// RunRetrievalRegression executes every golden query against the hybrid
// search pipeline, compares the result against its stored baseline, and
// records a run for each (spec C7). A query's first run ever initializes
// its baseline without alerting. All runs in one call share runID.
func (e *Engine) RunRetrievalRegression(ctx context.Context, runID string, queries []types.GoldenQuery) ([]RegressionAlert, error) {
	if runID == "" {
		runID = idgen.New("rrun")
	}
	minOverlap := e.settings.GetFloat(ctx, "retrieval_regression.min_overlap", 0.5)
	maxAvgShift := e.settings.GetFloat(ctx, "retrieval_regression.max_avg_shift", 3)
	defaultLimit := e.settings.GetInt(ctx, "retrieval_regression.limit", 10)

	var alerts []RegressionAlert

	for _, gq := range queries {
		queryID := goldenQueryID(gq)
		limit := gq.Limit
		if limit <= 0 {
			limit = defaultLimit
		}

		results, err := e.Search(ctx, storage.SearchOptions{
			Query:           gq.Query,
			Tags:            gq.Tags,
			ContentType:     gq.ContentType,
			IncludeMetadata: gq.IncludeMetadata,
			Limit:           limit,
		})
		if err != nil {
			return nil, err
		}
		currentIDs := make([]string, len(results))
		for i, r := range results {
			currentIDs[i] = r.Memory.ID
		}

		baseline, err := e.regress.GetBaseline(ctx, queryID)
		initialized := err == nil && baseline != nil && baseline.Initialized

		run := &types.RegressionRun{
			RunID:      runID,
			QueryID:    queryID,
			CurrentIDs: currentIDs,
		}

		if !initialized {
			run.Initialized = true
			if err := e.regress.SaveBaseline(ctx, &types.RegressionBaseline{QueryID: queryID, IDs: currentIDs, Initialized: true}); err != nil {
				return nil, err
			}
		} else {
			overlap, exactOrder, avgShift := compareToBaseline(baseline.IDs, currentIDs)
			run.Overlap = overlap
			run.ExactOrder = exactOrder
			run.AvgRankShift = avgShift
			run.Alert = overlap < minOverlap || avgShift > maxAvgShift
			if run.Alert {
				alerts = append(alerts, RegressionAlert{QueryID: queryID, Overlap: overlap, ExactOrder: exactOrder, AvgRankShift: avgShift})
			}
		}

		if err := e.regress.RecordRun(ctx, run); err != nil {
			return nil, err
		}
	}

	if len(alerts) > 0 && e.settings.GetBool(ctx, "retrieval_regression.create_alert_memory", false) {
		e.emitAlertMemory(ctx, runID, alerts)
	}

	return alerts, nil
}

// UpdateBaselines replaces the baseline of each query in queryIDs with that
// query's current_ids from run runID.
func (e *Engine) UpdateBaselines(ctx context.Context, runID string, queryIDs []string) error {
	for _, queryID := range queryIDs {
		runs, err := e.regress.ListRuns(ctx, runID)
		if err != nil {
			return err
		}
		for _, run := range runs {
			if run.QueryID != queryID {
				continue
			}
			if err := e.regress.SaveBaseline(ctx, &types.RegressionBaseline{QueryID: queryID, IDs: run.CurrentIDs, Initialized: true}); err != nil {
				return err
			}
		}
	}
	return nil
}

// PromoteFromRun promotes every query's current_ids in a specific run to
// its new baseline ("promote_from_run" operation).
func (e *Engine) PromoteFromRun(ctx context.Context, runID string) error {
	runs, err := e.regress.ListRuns(ctx, runID)
	if err != nil {
		return err
	}
	for _, run := range runs {
		if err := e.regress.SaveBaseline(ctx, &types.RegressionBaseline{QueryID: run.QueryID, IDs: run.CurrentIDs, Initialized: true}); err != nil {
			return err
		}
	}
	return nil
}

// ResetBaseline clears a query's baseline so the next run reinitializes it
// without alerting ("reset" operation).
func (e *Engine) ResetBaseline(ctx context.Context, queryID string) error {
	return e.regress.SaveBaseline(ctx, &types.RegressionBaseline{QueryID: queryID, IDs: nil, Initialized: false})
}

func goldenQueryID(gq types.GoldenQuery) string {
	if gq.ID != "" {
		return gq.ID
	}
	h := sha256.Sum256([]byte(gq.Query))
	return hex.EncodeToString(h[:])[:16]
}

// compareToBaseline returns overlap@k (fraction of baseline ids still
// present), whether the order is identical, and the average absolute rank
// shift of ids common to both lists (spec C7 comparison).
func compareToBaseline(baseline, current []string) (overlap float64, exactOrder bool, avgShift float64) {
	if len(baseline) == 0 {
		return 1, true, 0
	}

	currentRank := make(map[string]int, len(current))
	for i, id := range current {
		currentRank[id] = i
	}

	var present int
	var shiftSum float64
	exactOrder = len(baseline) == len(current)
	for i, id := range baseline {
		rank, ok := currentRank[id]
		if !ok {
			exactOrder = false
			continue
		}
		present++
		if rank != i {
			exactOrder = false
		}
		shiftSum += absInt(rank - i)
	}

	overlap = float64(present) / float64(len(baseline))
	if present > 0 {
		avgShift = shiftSum / float64(present)
	}
	return overlap, exactOrder, avgShift
}

func absInt(n int) float64 {
	if n < 0 {
		return float64(-n)
	}
	return float64(n)
}

// emitAlertMemory records a benchmark-tagged summary memory documenting a
// regression run's alerts, so the alert itself is retrievable and audit-able.
func (e *Engine) emitAlertMemory(ctx context.Context, runID string, alerts []RegressionAlert) {
	content := "retrieval-regression alert for run " + runID
	ids := make([]string, len(alerts))
	for i, a := range alerts {
		ids[i] = a.QueryID
	}
	_, err := e.memories.Create(ctx, types.CreateMemoryInput{
		Content:     content,
		ContentType: types.ContentTypeSummary,
		Benchmark:   true,
		Metadata:    map[string]interface{}{"run_id": runID, "alerted_query_ids": ids},
	})
	if err != nil {
		e.log.LogError("emit_alert_memory", err)
	}
}
