package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

func TestUpsertEntityIsCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	entities := NewEntityStore(store.DB())
	ctx := context.Background()

	a, err := entities.UpsertEntity(ctx, &types.Entity{Name: "Ada Lovelace", Type: types.EntityTypePerson})
	require.NoError(t, err)

	b, err := entities.UpsertEntity(ctx, &types.Entity{Name: "ada lovelace", Type: types.EntityTypePerson})
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
}

func TestLinkMemoryEntityKeepsHigherRelevance(t *testing.T) {
	store := newTestStore(t)
	entities := NewEntityStore(store.DB())
	ctx := context.Background()

	memResult, err := store.Create(ctx, types.CreateMemoryInput{Content: "met with Ada about the engine"})
	require.NoError(t, err)

	entity, err := entities.UpsertEntity(ctx, &types.Entity{Name: "Ada", Type: types.EntityTypePerson})
	require.NoError(t, err)

	require.NoError(t, entities.LinkMemoryEntity(ctx, memResult.Memory.ID, entity.ID, 0.3))
	require.NoError(t, entities.LinkMemoryEntity(ctx, memResult.Memory.ID, entity.ID, 0.9))

	linked, err := entities.GetMemoryEntities(ctx, memResult.Memory.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, entity.ID, linked[0].ID)

	var relevance float64
	require.NoError(t, store.DB().QueryRowContext(ctx,
		`SELECT relevance FROM memory_entities WHERE memory_id = ? AND entity_id = ?`,
		memResult.Memory.ID, entity.ID).Scan(&relevance))
	assert.Equal(t, 0.9, relevance)
}

func TestCreateRelationshipRejectsDuplicateTriple(t *testing.T) {
	store := newTestStore(t)
	entities := NewEntityStore(store.DB())
	ctx := context.Background()

	a, err := entities.UpsertEntity(ctx, &types.Entity{Name: "exocortex", Type: types.EntityTypeProject})
	require.NoError(t, err)
	b, err := entities.UpsertEntity(ctx, &types.Entity{Name: "Go", Type: types.EntityTypeTechnology})
	require.NoError(t, err)

	rel := &types.EntityRelationship{SourceID: a.ID, TargetID: b.ID, Relationship: "uses"}
	require.NoError(t, entities.CreateRelationship(ctx, rel))
	require.NoError(t, entities.CreateRelationship(ctx, rel))

	rels, err := entities.GetRelationships(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, rels, 1)
}

func TestGetLinkedRefsReturnsMaxStrength(t *testing.T) {
	store := newTestStore(t)
	links := NewLinkStore(store.DB())
	ctx := context.Background()

	m1, err := store.Create(ctx, types.CreateMemoryInput{Content: "first"})
	require.NoError(t, err)
	m2, err := store.Create(ctx, types.CreateMemoryInput{Content: "second"})
	require.NoError(t, err)

	require.NoError(t, links.UpsertLink(ctx, &types.MemoryLink{SourceID: m1.Memory.ID, TargetID: m2.Memory.ID, LinkType: types.LinkRelated, Strength: 0.4}))
	require.NoError(t, links.UpsertLink(ctx, &types.MemoryLink{SourceID: m1.Memory.ID, TargetID: m2.Memory.ID, LinkType: types.LinkRelated, Strength: 0.9}))

	refs, err := links.GetLinkedRefs(ctx, m1.Memory.ID, 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, m2.Memory.ID, refs[0].MemoryID)
	assert.Equal(t, 0.9, refs[0].Strength)
}

func TestTraverseRespectsMaxHops(t *testing.T) {
	store := newTestStore(t)
	links := NewLinkStore(store.DB())
	ctx := context.Background()

	m1, _ := store.Create(ctx, types.CreateMemoryInput{Content: "a"})
	m2, _ := store.Create(ctx, types.CreateMemoryInput{Content: "b"})
	m3, _ := store.Create(ctx, types.CreateMemoryInput{Content: "c"})

	require.NoError(t, links.UpsertLink(ctx, &types.MemoryLink{SourceID: m1.Memory.ID, TargetID: m2.Memory.ID, LinkType: types.LinkRelated, Strength: 1}))
	require.NoError(t, links.UpsertLink(ctx, &types.MemoryLink{SourceID: m2.Memory.ID, TargetID: m3.Memory.ID, LinkType: types.LinkRelated, Strength: 1}))

	result, err := links.Traverse(ctx, m1.Memory.ID, storage.GraphBounds{MaxHops: 1})
	require.NoError(t, err)
	assert.Contains(t, result.Nodes, m2.Memory.ID)
	assert.NotContains(t, result.Nodes, m3.Memory.ID)
}
