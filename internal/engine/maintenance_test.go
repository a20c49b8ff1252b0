package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

func TestArchiveStaleAndAbandoned(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	low := 0.1
	stale, err := e.Create(ctx, types.CreateMemoryInput{Content: "old low-importance note", Importance: &low})
	require.NoError(t, err)

	// Backdate created_at directly so the stale predicate's age clause trips.
	_, err = store.DB().ExecContext(ctx, `UPDATE memories SET created_at = ? WHERE id = ?`,
		time.Now().AddDate(0, 0, -100), stale.Memory.ID)
	require.NoError(t, err)

	result, err := e.ArchiveStaleAndAbandoned(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Stale, 1)

	_, err = e.memories.Get(ctx, stale.Memory.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAdjustImportanceBoostsAccessed(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	result, err := e.Create(ctx, types.CreateMemoryInput{Content: "frequently referenced runbook"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordAccess(ctx, result.Memory.ID, ""))
	}

	adjusted, err := e.AdjustImportance(ctx, 3, 90)
	require.NoError(t, err)
	assert.Equal(t, 1, adjusted.Boosted)

	updated, err := e.memories.Get(ctx, result.Memory.ID)
	require.NoError(t, err)
	assert.Greater(t, updated.Importance, 0.5)
}

func TestRecalibrateNormalizesDistribution(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for i, imp := range []float64{0.1, 0.1, 0.1, 0.9, 0.9} {
		v := imp
		_, err := e.Create(ctx, types.CreateMemoryInput{Content: "recalibration sample " + string(rune('a'+i)), Importance: &v})
		require.NoError(t, err)
	}

	stats, err := e.Recalibrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Adjusted)
}

func TestDetectContradictionsFindsNegatedPair(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	a, err := e.Create(ctx, types.CreateMemoryInput{Content: "the deploy pipeline is stable"})
	require.NoError(t, err)
	require.NoError(t, e.memories.SetEmbedding(ctx, a.Memory.ID, uniformVector(1)))

	b, err := e.Create(ctx, types.CreateMemoryInput{Content: "the deploy pipeline is not stable"})
	require.NoError(t, err)
	require.NoError(t, e.memories.SetEmbedding(ctx, b.Memory.ID, uniformVector(1)))

	found, err := e.DetectContradictions(ctx, 0.5, 500)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, found, 1)
}

func TestDensifyGraphCreatesRelationshipAboveThreshold(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	alice, err := e.entities.UpsertEntity(ctx, &types.Entity{Name: "Alice", Type: types.EntityTypePerson})
	require.NoError(t, err)
	bob, err := e.entities.UpsertEntity(ctx, &types.Entity{Name: "Bob", Type: types.EntityTypePerson})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		m, err := e.Create(ctx, types.CreateMemoryInput{Content: "meeting note mentioning both people " + string(rune('a'+i))})
		require.NoError(t, err)
		require.NoError(t, e.entities.LinkMemoryEntity(ctx, m.Memory.ID, alice.ID, 1))
		require.NoError(t, e.entities.LinkMemoryEntity(ctx, m.Memory.ID, bob.ID, 1))
	}

	created, err := e.DensifyGraph(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestBuildCoRetrievalLinksFromRecordedPairs(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	a, err := e.Create(ctx, types.CreateMemoryInput{Content: "co-retrieval candidate a"})
	require.NoError(t, err)
	b, err := e.Create(ctx, types.CreateMemoryInput{Content: "co-retrieval candidate b"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, e.intel.RecordCoRetrieval(ctx, "query-hash", []string{a.Memory.ID, b.Memory.ID}))
	}

	built, err := e.BuildCoRetrievalLinks(ctx, 3, 200)
	require.NoError(t, err)
	assert.Equal(t, 1, built)

	refs, err := e.links.GetLinkedRefs(ctx, a.Memory.ID, 10)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestRunRetrievalRegressionInitializesThenAlertsOnDrift(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Create(ctx, types.CreateMemoryInput{Content: "weekly retrospective notes for the squad"})
	require.NoError(t, err)

	queries := []types.GoldenQuery{{ID: "retro", Query: "weekly retrospective", Limit: 5}}

	alerts, err := e.RunRetrievalRegression(ctx, "run-1", queries)
	require.NoError(t, err)
	assert.Empty(t, alerts, "first run only initializes the baseline")

	_, err = e.Create(ctx, types.CreateMemoryInput{Content: "weekly retrospective notes that rank higher now"})
	require.NoError(t, err)

	_, err = e.RunRetrievalRegression(ctx, "run-2", queries)
	require.NoError(t, err)
}

func uniformVector(v float32) []float32 {
	vec := make([]float32, 16)
	for i := range vec {
		vec[i] = v
	}
	return vec
}
