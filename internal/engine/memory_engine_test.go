package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

func TestCreateEmbedsAndExtractsNothingWithoutEntities(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	result, err := e.Create(ctx, types.CreateMemoryInput{Content: "the cat sat on the mat"})
	require.NoError(t, err)
	assert.Equal(t, types.DedupNone, result.DedupAction)
	assert.NotEmpty(t, result.Memory.Embedding, "embedder should have populated the vector")
}

func TestCreateHashDedupMergesTags(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Create(ctx, types.CreateMemoryInput{Content: "same content", Tags: []string{"a"}})
	require.NoError(t, err)

	second, err := e.Create(ctx, types.CreateMemoryInput{Content: "same content", Tags: []string{"b"}})
	require.NoError(t, err)

	assert.Equal(t, types.DedupSkipped, second.DedupAction)
	assert.Equal(t, first.Memory.ID, second.Memory.ID)
	assert.ElementsMatch(t, []string{"a", "b"}, second.Memory.Tags)
}

func TestCreateBenchmarkSkipsPipeline(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	result, err := e.Create(ctx, types.CreateMemoryInput{Content: "benchmark probe content", Benchmark: true})
	require.NoError(t, err)

	assert.True(t, result.Memory.IsMetadata)
	assert.Equal(t, 0.15, result.Memory.Importance)
	assert.Contains(t, result.Memory.Tags, benchmarkTag)
	assert.Empty(t, result.Memory.Embedding, "benchmark memories skip embedding")
}

func TestCreateChunksLongContent(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	word := "lorem ipsum dolor sit amet "
	long := strings.Repeat(word, 100) // well over the 1500-char default threshold

	result, err := e.Create(ctx, types.CreateMemoryInput{Content: long})
	require.NoError(t, err)

	children, err := e.memories.Children(ctx, result.Memory.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, children, "content over the chunking threshold should produce chunk children")
	for _, c := range children {
		assert.Equal(t, result.Memory.ID, c.ParentID)
	}
}

func TestUpdateDechunksWhenContentShrinks(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	word := "lorem ipsum dolor sit amet "
	long := strings.Repeat(word, 100)

	result, err := e.Create(ctx, types.CreateMemoryInput{Content: long})
	require.NoError(t, err)

	children, err := e.memories.Children(ctx, result.Memory.ID)
	require.NoError(t, err)
	require.NotEmpty(t, children)

	shortContent := "a short replacement"
	updated, err := e.Update(ctx, result.Memory.ID, types.UpdateMemoryInput{Content: &shortContent})
	require.NoError(t, err)
	assert.Equal(t, shortContent, updated.Content)

	remaining, err := e.memories.Children(ctx, result.Memory.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining, "shrinking below the chunk threshold should dechunk")
}

func TestUpdateMergesMetadata(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	result, err := e.Create(ctx, types.CreateMemoryInput{
		Content:  "metadata merge target",
		Metadata: map[string]interface{}{"a": "1"},
	})
	require.NoError(t, err)

	updated, err := e.memories.Update(ctx, result.Memory.ID, types.UpdateMemoryInput{
		Metadata: map[string]interface{}{"b": "2"},
	})
	require.NoError(t, err)

	assert.Equal(t, "1", updated.Metadata["a"])
	assert.Equal(t, "2", updated.Metadata["b"])
}

func TestSemanticDedupSupersedesNearDuplicate(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	older, err := e.Create(ctx, types.CreateMemoryInput{
		Content: "the quarterly report is due next friday",
		Tags:    []string{"work"},
	})
	require.NoError(t, err)
	vec := make([]float32, 16)
	vec[0] = 1
	require.NoError(t, e.memories.SetEmbedding(ctx, older.Memory.ID, vec))

	// Build the "new" memory directly with the same near-identical vector
	// and an overlapping tag, then run the dedup step in isolation -- this
	// avoids depending on the Fake hash-based embedder happening to put two
	// different strings within the similarity threshold of each other.
	newer, err := e.memories.Create(ctx, types.CreateMemoryInput{
		Content: "quarterly report due this friday",
		Tags:    []string{"work"},
	})
	require.NoError(t, err)
	newer.Memory.Embedding = vec

	dedup, err := e.semanticDedup(ctx, newer.Memory)
	require.NoError(t, err)
	require.NotNil(t, dedup)
	assert.Equal(t, older.Memory.ID, dedup.SupersededID)
	assert.Equal(t, 1.0, dedup.DedupSimilarity)

	_, err = e.memories.Get(ctx, older.Memory.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
