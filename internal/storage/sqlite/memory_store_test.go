package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	store, err := NewMemoryStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result, err := store.Create(ctx, types.CreateMemoryInput{Content: "remember to water the plants"})
	require.NoError(t, err)
	assert.Equal(t, types.DedupNone, result.DedupAction)
	assert.NotEmpty(t, result.Memory.ID)
	assert.True(t, result.Memory.IsActive)
	assert.Equal(t, 0.5, result.Memory.Importance)

	fetched, err := store.Get(ctx, result.Memory.ID)
	require.NoError(t, err)
	assert.Equal(t, "remember to water the plants", fetched.Content)
}

func TestCreateHashDedupSkips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, types.CreateMemoryInput{Content: "duplicate content"})
	require.NoError(t, err)

	second, err := store.Create(ctx, types.CreateMemoryInput{Content: "duplicate content"})
	require.NoError(t, err)

	assert.Equal(t, types.DedupSkipped, second.DedupAction)
	assert.Equal(t, first.Memory.ID, second.Memory.ID)

	count, err := store.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "mem_doesnotexist00000000")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteAndRestore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result, err := store.Create(ctx, types.CreateMemoryInput{Content: "transient note"})
	require.NoError(t, err)
	id := result.Memory.ID

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Restore(ctx, id))
	restored, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, restored.ID)
}

func TestUpdateClearsEmbeddingOnContentChange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result, err := store.Create(ctx, types.CreateMemoryInput{Content: "original content"})
	require.NoError(t, err)

	newContent := "revised content"
	updated, err := store.Update(ctx, result.Memory.ID, types.UpdateMemoryInput{Content: &newContent})
	require.NoError(t, err)
	assert.Equal(t, newContent, updated.Content)
	assert.Nil(t, updated.Embedding)
}

func TestEvolutionChainFollowsParentID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v1, err := store.Create(ctx, types.CreateMemoryInput{Content: "draft v1"})
	require.NoError(t, err)

	v2, err := store.Create(ctx, types.CreateMemoryInput{Content: "draft v2", ParentID: v1.Memory.ID})
	require.NoError(t, err)

	chain, err := store.GetEvolutionChain(ctx, v2.Memory.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, v1.Memory.ID, chain[0].ID)
	assert.Equal(t, v2.Memory.ID, chain[1].ID)
}

func TestRecordAccessIncrementsCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result, err := store.Create(ctx, types.CreateMemoryInput{Content: "accessed memory"})
	require.NoError(t, err)

	require.NoError(t, store.RecordAccess(ctx, result.Memory.ID, "test query"))
	require.NoError(t, store.RecordAccess(ctx, result.Memory.ID, "another query"))

	fetched, err := store.Get(ctx, result.Memory.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fetched.AccessCount)
	assert.NotNil(t, fetched.LastAccessedAt)
}

func TestPurgeShieldsReferencedAncestors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v1, err := store.Create(ctx, types.CreateMemoryInput{Content: "ancestor"})
	require.NoError(t, err)
	v2, err := store.Create(ctx, types.CreateMemoryInput{Content: "descendant", ParentID: v1.Memory.ID})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, v1.Memory.ID))

	purged, err := store.Purge(ctx, -1) // olderThanDays negative: cutoff is in the future, everything eligible
	require.NoError(t, err)
	assert.Equal(t, 0, purged, "ancestor is still referenced by v2.parent_id and must be shielded")

	_, err = store.GetIncludingInactive(ctx, v1.Memory.ID)
	require.NoError(t, err)
	_ = v2
}

func TestListFiltersInactiveByDefault(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result, err := store.Create(ctx, types.CreateMemoryInput{Content: "will be trashed"})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, result.Memory.ID))

	page, err := store.List(ctx, storage.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	page, err = store.List(ctx, storage.ListOptions{IncludeInactive: true, OnlyInactive: true})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}
