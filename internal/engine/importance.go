package engine

import (
	"context"
	"math"
	"sort"

	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

// ImportanceAdjustResult reports how many memories the importance-adjust
// job boosted or decayed.
type ImportanceAdjustResult struct {
	Boosted int
	Decayed int
}

// AdjustImportance boosts frequently-accessed memories and decays untouched
// ones (spec C6 importance-adjust job). Pinned memories (importance == 1.0)
// are never touched. Boost: access_count >= boostThreshold and importance
// < 0.8 gets +0.1 capped at 0.9. Decay: access_count == 0 and age >
// decayAgeDays and importance > 0.3 gets -0.05 floored at 0.1.
func (e *Engine) AdjustImportance(ctx context.Context, boostThreshold, decayAgeDays int) (*ImportanceAdjustResult, error) {
	result := &ImportanceAdjustResult{}

	boostCandidates, err := e.intel.CandidatesForBoost(ctx, boostThreshold, 1000)
	if err != nil {
		return nil, err
	}
	for _, m := range boostCandidates {
		if m.Pinned() || m.Importance >= 0.8 {
			continue
		}
		next := math.Min(0.9, m.Importance+0.1)
		if err := e.memories.SetImportance(ctx, m.ID, next); err != nil {
			e.log.LogError("importance_boost", err, "memory_id", m.ID)
			continue
		}
		result.Boosted++
	}

	decayCandidates, err := e.intel.CandidatesForDecay(ctx, decayAgeDays, 1000)
	if err != nil {
		return nil, err
	}
	for _, m := range decayCandidates {
		if m.Pinned() || m.AccessCount != 0 || m.Importance <= 0.3 {
			continue
		}
		next := math.Max(0.1, m.Importance-0.05)
		if err := e.memories.SetImportance(ctx, m.ID, next); err != nil {
			e.log.LogError("importance_decay", err, "memory_id", m.ID)
			continue
		}
		result.Decayed++
	}

	return result, nil
}

// Recalibrate normalizes active, non-pinned importances into a
// percentile-rank distribution within [0.10, 0.90] and reports the
// before/after mean, standard deviation, and quartiles (spec C6
// recalibrate job).
func (e *Engine) Recalibrate(ctx context.Context) (*types.RecalibrateStats, error) {
	page, err := e.memories.List(ctx, storage.ListOptions{Limit: 100})
	if err != nil {
		return nil, err
	}
	for p := 2; page.HasMore; p++ {
		next, err := e.memories.List(ctx, storage.ListOptions{Page: p, Limit: 100})
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, next.Items...)
		page.HasMore = next.HasMore
	}

	var eligible []*types.Memory
	for i := range page.Items {
		if !page.Items[i].Pinned() {
			eligible = append(eligible, &page.Items[i])
		}
	}
	if len(eligible) == 0 {
		return &types.RecalibrateStats{}, nil
	}

	before := make([]float64, len(eligible))
	for i, m := range eligible {
		before[i] = m.Importance
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Importance < eligible[j].Importance })
	n := len(eligible)
	after := make([]float64, n)
	for rank, m := range eligible {
		percentile := float64(rank) / float64(maxInt(1, n-1))
		next := 0.10 + percentile*0.80
		after[rank] = next
		if err := e.memories.SetImportance(ctx, m.ID, next); err != nil {
			e.log.LogError("recalibrate", err, "memory_id", m.ID)
		}
	}

	stats := &types.RecalibrateStats{Adjusted: n}
	stats.BeforeMean, stats.BeforeStdDev = meanStdDev(before)
	stats.AfterMean, stats.AfterStdDev = meanStdDev(after)
	stats.BeforeQuartiles = quartiles(before)
	stats.AfterQuartiles = quartiles(after)
	return stats, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func meanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// quartiles returns the Q1/median/Q3 of values, each linearly interpolated
// between the two nearest sorted positions.
func quartiles(values []float64) [3]float64 {
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	return [3]float64{
		percentileOf(sorted, 0.25),
		percentileOf(sorted, 0.50),
		percentileOf(sorted, 0.75),
	}
}

func percentileOf(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
