package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrypster/exocortex/internal/embedding"
	"github.com/scrypster/exocortex/internal/settings"
	"github.com/scrypster/exocortex/internal/storage/sqlite"
)

// newTestEngine wires an Engine over an in-memory SQLite database with a
// deterministic fake embedder, mirroring how cmd/exocortex wires a real one.
func newTestEngine(t *testing.T) (*Engine, *sqlite.MemoryStore) {
	t.Helper()

	memStore, err := sqlite.NewMemoryStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = memStore.Close() })

	db := memStore.DB()
	settingsStore := settings.New(db)
	require.NoError(t, settingsStore.Bootstrap(context.Background()))

	embedder := embedding.NewClient(embedding.NewFake(16), embedding.DefaultClientConfig())

	e, err := New(Deps{
		Memories: memStore,
		Search:   sqlite.NewSearchProvider(db),
		Entities: sqlite.NewEntityStore(db),
		Links:    sqlite.NewLinkStore(db),
		Goals:    sqlite.NewGoalStore(db),
		Intel:    sqlite.NewIntelligenceStore(db),
		Regress:  sqlite.NewRegressionStore(db),
		Settings: settingsStore,
		Embedder: embedder,
	}, DefaultConfig())
	require.NoError(t, err)

	return e, memStore
}
