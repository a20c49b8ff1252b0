package engine

import (
	"context"
	"regexp"
	"strings"

	"github.com/scrypster/exocortex/internal/idgen"
	"github.com/scrypster/exocortex/internal/scoring"
	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

var negationPattern = regexp.MustCompile(`\b(not|never|no longer|isn't|doesn't|won't|can't|stopped)\b`)

// DetectContradictions pairwise-compares up to maxMemories recent active
// embedded memories: a pair is flagged when cosine similarity is at or
// above threshold (default 0.7) AND either disagrees on negation ("uses X"
// vs "no longer uses X") or disagrees on an extracted value for the same
// subject (spec C6 contradiction-detection job). Pairs already recorded are
// skipped regardless of id order.
func (e *Engine) DetectContradictions(ctx context.Context, threshold float64, maxMemories int) (int, error) {
	if threshold <= 0 {
		threshold = 0.7
	}
	if maxMemories <= 0 {
		maxMemories = 500
	}

	page, err := e.memories.List(ctx, storage.ListOptions{Limit: maxMemories, SortBy: "created_at", SortOrder: "desc"})
	if err != nil {
		return 0, err
	}

	var candidates []*types.Memory
	for i := range page.Items {
		if len(page.Items[i].Embedding) > 0 {
			candidates = append(candidates, &page.Items[i])
		}
	}

	existing := make(map[[2]string]bool)
	if e.intel != nil {
		recorded, err := e.intel.ListContradictions(ctx, "")
		if err == nil {
			for _, c := range recorded {
				existing[orderedPair(c.MemoryAID, c.MemoryBID)] = true
			}
		}
	}

	found := 0
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			pair := orderedPair(a.ID, b.ID)
			if existing[pair] {
				continue
			}
			sim := scoring.Cosine(a.Embedding, b.Embedding)
			if sim < threshold {
				continue
			}
			if !signalsDisagreement(a.Content, b.Content) {
				continue
			}

			c := &types.Contradiction{
				ID:          idgen.New("contra"),
				MemoryAID:   pair[0],
				MemoryBID:   pair[1],
				Description: "similar content with conflicting negation or values",
				Status:      types.ContradictionPending,
			}
			if e.intel != nil {
				if err := e.intel.RecordContradiction(ctx, c); err != nil {
					e.log.LogError("record_contradiction", err)
					continue
				}
			}
			existing[pair] = true
			found++

			_ = e.links.UpsertLink(ctx, &types.MemoryLink{SourceID: pair[0], TargetID: pair[1], LinkType: types.LinkContradicts, Strength: sim})
		}
	}

	return found, nil
}

func orderedPair(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// signalsDisagreement reports whether two similar passages disagree: one
// negates what the other asserts, or they name different values for what
// looks like the same "X is/are/was Y" subject.
func signalsDisagreement(a, b string) bool {
	if negationPattern.MatchString(strings.ToLower(a)) != negationPattern.MatchString(strings.ToLower(b)) {
		return true
	}
	va, oka := extractValue(a)
	vb, okb := extractValue(b)
	return oka && okb && va != vb
}

var valuePattern = regexp.MustCompile(`(?i)\b(\w+)\s+(?:is|are|was|were)\s+(\w+)`)

// extractValue pulls the subject+value from the first "X is/are/was Y"
// clause found, used as a crude signal for value-mismatch contradictions.
func extractValue(s string) (string, bool) {
	m := valuePattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1] + "=" + m[2]), true
}
