package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

func TestSearchFindsLexicalMatch(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Create(ctx, types.CreateMemoryInput{Content: "the rocket launch was delayed due to weather"})
	require.NoError(t, err)
	_, err = e.Create(ctx, types.CreateMemoryInput{Content: "baked a loaf of sourdough bread this morning"})
	require.NoError(t, err)

	results, err := e.Search(ctx, storage.SearchOptions{Query: "rocket launch", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Memory.Content, "rocket")
}

func TestSearchTagsFilterRestrictsToMatchingTags(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Create(ctx, types.CreateMemoryInput{Content: "project status update for the team", Tags: []string{"important"}})
	require.NoError(t, err)
	_, err = e.Create(ctx, types.CreateMemoryInput{Content: "project status update for everyone else"})
	require.NoError(t, err)

	results, err := e.Search(ctx, storage.SearchOptions{Query: "project status update", Tags: []string{"important"}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Memory.Tags, "important")
}

func TestSearchTagBoostDerivedFromQueryWordsWithNoTagsFilter(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Create(ctx, types.CreateMemoryInput{Content: "notes from the planning meeting", Tags: []string{"meeting-notes"}})
	require.NoError(t, err)
	_, err = e.Create(ctx, types.CreateMemoryInput{Content: "notes from the planning meeting, take two"})
	require.NoError(t, err)

	// No explicit Tags filter: the boost must come from "meeting" (a >=3
	// char query word) appearing as a substring of the "meeting-notes" tag.
	results, err := e.Search(ctx, storage.SearchOptions{Query: "planning meeting", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Memory.Tags, "meeting-notes")
}

func TestSearchPaginationRespectsOffsetAndLimit(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := e.Create(ctx, types.CreateMemoryInput{Content: "paginated entry about gardening tips " + string(rune('a'+i))})
		require.NoError(t, err)
	}

	page1, err := e.Search(ctx, storage.SearchOptions{Query: "gardening tips", Limit: 2, Offset: 0})
	require.NoError(t, err)
	page2, err := e.Search(ctx, storage.SearchOptions{Query: "gardening tips", Limit: 2, Offset: 2})
	require.NoError(t, err)

	assert.Len(t, page1, 2)
	assert.Len(t, page2, 2)
	assert.NotEqual(t, page1[0].Memory.ID, page2[0].Memory.ID)
}

func TestSearchNoResultsReturnsEmptyNotError(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	results, err := e.Search(ctx, storage.SearchOptions{Query: "nothing matches this at all", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}
