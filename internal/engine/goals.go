package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/scrypster/exocortex/internal/scoring"
	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

const (
	goalProgressTag         = "goal-progress"
	goalProgressImplicitTag = "goal-progress-implicit"
	goalRelevanceThreshold  = 0.4
	goalKeywordOverlap      = 0.5
)

var goalStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "of": true, "and": true,
	"or": true, "for": true, "in": true, "on": true, "is": true, "are": true,
	"with": true, "by": true, "at": true, "it": true, "be": true, "this": true,
}

// LogProgress creates a memory tagged goal-progress with metadata.goal_id
// referencing goalID and touches the goal's updated_at (spec C8).
func (e *Engine) LogProgress(ctx context.Context, goalID, content string) (*types.CreateMemoryResult, error) {
	result, err := e.Create(ctx, types.CreateMemoryInput{
		Content:  content,
		Tags:     []string{goalProgressTag},
		Metadata: map[string]interface{}{"goal_id": goalID},
	})
	if err != nil {
		return nil, err
	}
	if _, err := e.goals.UpdateGoal(ctx, goalID, func(g *types.Goal) { g.UpdatedAt = time.Now() }); err != nil {
		e.log.LogError("log_progress_touch_goal", err, "goal_id", goalID)
	}
	return result, nil
}

// GoalMatch is one candidate returned by DetectRelevantGoals, ranked best
// first.
type GoalMatch struct {
	Goal  *types.Goal
	Score float64
}

// DetectRelevantGoals ranks active goals against content: by cosine (>=0.4)
// when embedding is supplied, otherwise by keyword overlap (>=50% of the
// goal title's non-stop-words appear in content) (spec C8).
func (e *Engine) DetectRelevantGoals(ctx context.Context, content string, embedding []float32) ([]GoalMatch, error) {
	page, err := e.goals.ListGoals(ctx, types.GoalActive, storage.ListOptions{Limit: 100})
	if err != nil {
		return nil, err
	}
	for p := 2; page.HasMore && p <= 10; p++ {
		next, err := e.goals.ListGoals(ctx, types.GoalActive, storage.ListOptions{Page: p, Limit: 100})
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, next.Items...)
		page.HasMore = next.HasMore
	}

	var matches []GoalMatch
	for i := range page.Items {
		g := &page.Items[i]
		if len(embedding) > 0 && len(g.Embedding) > 0 {
			sim := scoring.Cosine(embedding, g.Embedding)
			if sim >= goalRelevanceThreshold {
				matches = append(matches, GoalMatch{Goal: g, Score: sim})
			}
			continue
		}
		overlap := titleKeywordOverlap(g.Title, content)
		if overlap >= goalKeywordOverlap {
			matches = append(matches, GoalMatch{Goal: g, Score: overlap})
		}
	}

	sortMatchesDesc(matches)
	return matches, nil
}

// AutoLinkProgress finds the best-matching active goal for a memory's
// content and, if one clears the relevance threshold, tags the memory
// goal-progress + goal-progress-implicit and sets metadata.goal_id (spec
// C8's auto_link_progress, distinct from the explicit LogProgress call).
func (e *Engine) AutoLinkProgress(ctx context.Context, memoryID, content string, embedding []float32) (*types.Goal, error) {
	matches, err := e.DetectRelevantGoals(ctx, content, embedding)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	best := matches[0].Goal

	m, err := e.memories.Get(ctx, memoryID)
	if err != nil {
		return nil, err
	}

	metadata := map[string]interface{}{"goal_id": best.ID}
	tags := appendTag(appendTag(m.Tags, goalProgressTag), goalProgressImplicitTag)
	if _, err := e.memories.Update(ctx, memoryID, types.UpdateMemoryInput{Tags: tags, Metadata: metadata}); err != nil {
		return nil, err
	}
	return best, nil
}

// StalledGoal pairs an active goal with how long it has gone without a
// goal-progress memory.
type StalledGoal struct {
	Goal     *types.Goal
	IdleDays float64
}

// FindStalled flags active goals with no goal-progress memory in the last
// days window (spec C8's find_stalled).
func (e *Engine) FindStalled(ctx context.Context, days int) ([]StalledGoal, error) {
	if days <= 0 {
		days = 14
	}

	page, err := e.goals.ListGoals(ctx, types.GoalActive, storage.ListOptions{Limit: 100})
	if err != nil {
		return nil, err
	}
	for p := 2; page.HasMore && p <= 10; p++ {
		next, err := e.goals.ListGoals(ctx, types.GoalActive, storage.ListOptions{Page: p, Limit: 100})
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, next.Items...)
		page.HasMore = next.HasMore
	}

	now := time.Now()
	var stalled []StalledGoal
	for i := range page.Items {
		g := &page.Items[i]
		memIDs, err := e.goals.LinkedMemoryIDs(ctx, g.ID)
		if err != nil {
			e.log.LogError("find_stalled_linked_ids", err, "goal_id", g.ID)
			continue
		}

		lastProgress := g.CreatedAt
		for _, id := range memIDs {
			mem, err := e.memories.Get(ctx, id)
			if err != nil {
				continue
			}
			if !hasTag(mem.Tags, goalProgressTag) {
				continue
			}
			if mem.CreatedAt.After(lastProgress) {
				lastProgress = mem.CreatedAt
			}
		}

		idleDays := now.Sub(lastProgress).Hours() / 24
		if idleDays > float64(days) {
			stalled = append(stalled, StalledGoal{Goal: g, IdleDays: idleDays})
		}
	}

	return stalled, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func titleKeywordOverlap(title, content string) float64 {
	words := keywordsOf(title)
	if len(words) == 0 {
		return 0
	}
	contentLower := strings.ToLower(content)
	matched := 0
	for _, w := range words {
		if strings.Contains(contentLower, w) {
			matched++
		}
	}
	return float64(matched) / float64(len(words))
}

func keywordsOf(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if w == "" || goalStopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

func sortMatchesDesc(matches []GoalMatch) {
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
}
