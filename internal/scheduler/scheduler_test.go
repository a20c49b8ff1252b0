package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/exocortex/internal/embedding"
	"github.com/scrypster/exocortex/internal/engine"
	"github.com/scrypster/exocortex/internal/settings"
	"github.com/scrypster/exocortex/internal/storage/sqlite"
	"github.com/scrypster/exocortex/pkg/types"
)

func newTestSetup(t *testing.T) (*engine.Engine, *settings.Store, *sqlite.MemoryStore) {
	t.Helper()
	memStore, err := sqlite.NewMemoryStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = memStore.Close() })

	db := memStore.DB()
	set := settings.New(db)
	require.NoError(t, set.Bootstrap(context.Background()))

	e, err := engine.New(engine.Deps{
		Memories: memStore,
		Search:   sqlite.NewSearchProvider(db),
		Entities: sqlite.NewEntityStore(db),
		Links:    sqlite.NewLinkStore(db),
		Goals:    sqlite.NewGoalStore(db),
		Intel:    sqlite.NewIntelligenceStore(db),
		Regress:  sqlite.NewRegressionStore(db),
		Settings: set,
		Embedder: embedding.NewClient(embedding.NewFake(8), embedding.DefaultClientConfig()),
	}, engine.DefaultConfig())
	require.NoError(t, err)

	return e, set, memStore
}

func TestOnMemoryWrittenTriggersLightPassEvery50Writes(t *testing.T) {
	e, set, store := newTestSetup(t)
	ctx := context.Background()

	low := 0.05
	m, err := e.Create(ctx, types.CreateMemoryInput{Content: "light pass candidate", Importance: &low})
	require.NoError(t, err)

	s := New(e, set, Config{DBPath: ":memory:", BackupDir: t.TempDir()})
	hook := s.OnMemoryWritten(ctx)

	for i := 0; i < lightPassWriteInterval-1; i++ {
		hook("ignored")
	}
	before, err := store.Get(ctx, m.Memory.ID)
	require.NoError(t, err)
	assert.Equal(t, low, before.Importance, "under the write threshold, the light pass has not run yet")

	hook("ignored") // crosses the 50-write threshold, firing the light pass synchronously
	after, err := store.Get(ctx, m.Memory.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after.Importance, before.Importance)
}

func TestTickRunsJobOnceEvenIfCalledTwiceSameMinute(t *testing.T) {
	e, set, _ := newTestSetup(t)
	s := New(e, set, Config{DBPath: ":memory:", BackupDir: t.TempDir()})

	now := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC) // matches the consolidation job's clock time
	s.tick(context.Background(), now)
	s.mu.Lock()
	ranDay := s.lastRunDay["consolidation"]
	s.mu.Unlock()
	assert.Equal(t, now.YearDay(), ranDay)

	// A second tick in the same minute/day must not re-run the job; verified
	// indirectly by lastRunDay staying pinned to the same yday rather than
	// panicking on a double-run side effect.
	s.tick(context.Background(), now)
	s.mu.Lock()
	ranDayAgain := s.lastRunDay["consolidation"]
	s.mu.Unlock()
	assert.Equal(t, ranDay, ranDayAgain)
}
