package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

const (
	weightTuneMinSamples = 5
	weightTuneStep        = 0.02
	weightTuneMin         = 0.02
	weightTuneMax         = 0.40
)

// TuneWeights compares accessed memories that were marked useful against
// those that were retrieved but never marked useful, and nudges the
// recency/frequency/graph scoring weights by +-0.02 toward whichever group's
// average age/access-count/link-count the useful group favors (spec C6
// weight-tune job). Requires at least 5 samples in each group; otherwise
// reports Applied=false.
func (e *Engine) TuneWeights(ctx context.Context) (*types.WeightTuneResult, error) {
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

	var useful, notUseful []*types.Memory
	for i := range page.Items {
		m := &page.Items[i]
		if m.AccessCount == 0 {
			continue
		}
		if m.UsefulCount > 0 {
			useful = append(useful, m)
		} else {
			notUseful = append(notUseful, m)
		}
	}

	if len(useful) < weightTuneMinSamples || len(notUseful) < weightTuneMinSamples {
		return &types.WeightTuneResult{Applied: false, Reason: "insufficient samples"}, nil
	}

	usefulAge, usefulAccess, usefulLinks := e.groupMeans(ctx, useful)
	notUsefulAge, notUsefulAccess, notUsefulLinks := e.groupMeans(ctx, notUseful)

	deltas := make(map[string]float64)

	if d := nudge(ctx, e, "scoring.recency_weight", notUsefulAge > usefulAge); d != 0 {
		deltas["scoring.recency_weight"] = d
	}
	if d := nudge(ctx, e, "scoring.frequency_weight", usefulAccess > notUsefulAccess); d != 0 {
		deltas["scoring.frequency_weight"] = d
	}
	if d := nudge(ctx, e, "scoring.graph_weight", usefulLinks > notUsefulLinks); d != 0 {
		deltas["scoring.graph_weight"] = d
	}

	return &types.WeightTuneResult{Applied: len(deltas) > 0, Deltas: deltas}, nil
}

// groupMeans returns the mean age in days, mean access_count, and mean
// linked-reference count for a group of memories.
func (e *Engine) groupMeans(ctx context.Context, group []*types.Memory) (meanAge, meanAccess, meanLinks float64) {
	if len(group) == 0 {
		return 0, 0, 0
	}
	now := time.Now()
	var sumAge, sumAccess, sumLinks float64
	for _, m := range group {
		sumAge += now.Sub(m.CreatedAt).Hours() / 24
		sumAccess += float64(m.AccessCount)
		refs, err := e.links.GetLinkedRefs(ctx, m.ID, 100)
		if err == nil {
			sumLinks += float64(len(refs))
		}
	}
	n := float64(len(group))
	return sumAge / n, sumAccess / n, sumLinks / n
}

// nudge raises a setting by weightTuneStep when favorUp is true or lowers
// it otherwise, clamped to [weightTuneMin, weightTuneMax]. Returns the
// signed delta actually applied, or 0 if already at the bound.
func nudge(ctx context.Context, e *Engine, key string, favorUp bool) float64 {
	current := e.settings.GetFloat(ctx, key, 0.10)
	next := current
	if favorUp {
		next += weightTuneStep
	} else {
		next -= weightTuneStep
	}
	if next < weightTuneMin {
		next = weightTuneMin
	}
	if next > weightTuneMax {
		next = weightTuneMax
	}
	if next == current {
		return 0
	}
	if err := e.settings.Set(ctx, key, strconv.FormatFloat(next, 'f', -1, 64)); err != nil {
		e.log.LogError("weight_tune_set", err, "key", key)
		return 0
	}
	return next - current
}
