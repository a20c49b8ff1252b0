package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/exocortex/pkg/types"
)

func createTestGoal(t *testing.T, e *Engine, title string) *types.Goal {
	t.Helper()
	g, err := e.goals.CreateGoal(context.Background(), &types.Goal{
		Title:  title,
		Status: types.GoalActive,
	})
	require.NoError(t, err)
	return g
}

func TestLogProgressTagsAndLinksMemory(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	goal := createTestGoal(t, e, "ship the quarterly release")

	result, err := e.LogProgress(ctx, goal.ID, "finished the release notes draft")
	require.NoError(t, err)

	assert.Contains(t, result.Memory.Tags, goalProgressTag)
	assert.Equal(t, goal.ID, result.Memory.Metadata["goal_id"])
}

func TestDetectRelevantGoalsByKeywordOverlap(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_ = createTestGoal(t, e, "launch marketing campaign")
	target := createTestGoal(t, e, "migrate database to new cluster")

	matches, err := e.DetectRelevantGoals(ctx, "finished migrating the database cluster today", nil)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, target.ID, matches[0].Goal.ID)
}

func TestAutoLinkProgressSetsImplicitTagAndMetadata(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	goal := createTestGoal(t, e, "renovate the garden shed")

	created, err := e.Create(ctx, types.CreateMemoryInput{Content: "bought lumber for the garden shed renovation"})
	require.NoError(t, err)

	linked, err := e.AutoLinkProgress(ctx, created.Memory.ID, created.Memory.Content, nil)
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, goal.ID, linked.ID)

	updated, err := e.memories.Get(ctx, created.Memory.ID)
	require.NoError(t, err)
	assert.Contains(t, updated.Tags, goalProgressImplicitTag)
	assert.Equal(t, goal.ID, updated.Metadata["goal_id"])
}

func TestFindStalledFlagsGoalWithoutRecentProgress(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	goal := createTestGoal(t, e, "write the annual report")
	_, err := store.DB().ExecContext(ctx, `UPDATE goals SET created_at = ?, updated_at = ? WHERE id = ?`,
		time.Now().AddDate(0, 0, -30), time.Now().AddDate(0, 0, -30), goal.ID)
	require.NoError(t, err)

	stalled, err := e.FindStalled(ctx, 14)
	require.NoError(t, err)

	var found bool
	for _, s := range stalled {
		if s.Goal.ID == goal.ID {
			found = true
		}
	}
	assert.True(t, found)
}
