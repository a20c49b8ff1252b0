package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scrypster/exocortex/internal/embedding"
	"github.com/scrypster/exocortex/internal/engine"
	"github.com/scrypster/exocortex/internal/server"
	"github.com/scrypster/exocortex/internal/settings"
	"github.com/scrypster/exocortex/internal/storage/sqlite"
	"github.com/scrypster/exocortex/internal/surface"
	"github.com/scrypster/exocortex/pkg/types"
)

func newTestServer(t *testing.T) (string, func()) {
	t.Helper()
	db, err := sqlite.NewMemoryStore(":memory:")
	require.NoError(t, err)

	set := settings.New(db.DB())
	require.NoError(t, set.Bootstrap(context.Background()))

	e, err := engine.New(engine.Deps{
		Memories: db,
		Search:   sqlite.NewSearchProvider(db.DB()),
		Entities: sqlite.NewEntityStore(db.DB()),
		Links:    sqlite.NewLinkStore(db.DB()),
		Goals:    sqlite.NewGoalStore(db.DB()),
		Intel:    sqlite.NewIntelligenceStore(db.DB()),
		Regress:  sqlite.NewRegressionStore(db.DB()),
		Settings: set,
		Embedder: embedding.NewClient(embedding.NewFake(8), embedding.DefaultClientConfig()),
	}, engine.DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	addr, err := server.Start(ctx, "127.0.0.1:0", server.Deps{
		Engine:   e,
		Memories: db,
		Entities: sqlite.NewEntityStore(db.DB()),
		Intel:    sqlite.NewIntelligenceStore(db.DB()),
		Hub:      surface.NewHub(),
	})
	require.NoError(t, err)

	return addr, func() {
		cancel()
		_ = db.Close()
	}
}

func TestCreateAndGetMemory(t *testing.T) {
	addr, cleanup := newTestServer(t)
	defer cleanup()
	base := "http://" + addr

	body := strings.NewReader(`{"content":"remember the launch retro notes"}`)
	resp, err := http.Post(base+"/api/memories", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created types.CreateMemoryResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.Memory.ID)

	getResp, err := http.Get(fmt.Sprintf("%s/api/memories/%s", base, created.Memory.ID))
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var fetched types.Memory
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&fetched))
	require.Equal(t, created.Memory.ID, fetched.ID)
}

func TestGetMemory_NotFound(t *testing.T) {
	addr, cleanup := newTestServer(t)
	defer cleanup()

	resp, err := http.Get("http://" + addr + "/api/memories/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearch_RequiresQueryParam(t *testing.T) {
	addr, cleanup := newTestServer(t)
	defer cleanup()

	resp, err := http.Get("http://" + addr + "/api/search")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatsReflectsCreatedMemory(t *testing.T) {
	addr, cleanup := newTestServer(t)
	defer cleanup()
	base := "http://" + addr

	_, err := http.Post(base+"/api/memories", "application/json", strings.NewReader(`{"content":"stats check"}`))
	require.NoError(t, err)

	resp, err := http.Get(base + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.GreaterOrEqual(t, stats["active_memories"], 1)
}

func TestSecurityHeadersArePresent(t *testing.T) {
	addr, cleanup := newTestServer(t)
	defer cleanup()

	resp, err := http.Get("http://" + addr + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestShutdownStopsServer(t *testing.T) {
	db, err := sqlite.NewMemoryStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	set := settings.New(db.DB())
	require.NoError(t, set.Bootstrap(context.Background()))

	e, err := engine.New(engine.Deps{
		Memories: db,
		Search:   sqlite.NewSearchProvider(db.DB()),
		Entities: sqlite.NewEntityStore(db.DB()),
		Links:    sqlite.NewLinkStore(db.DB()),
		Settings: set,
		Embedder: embedding.NewClient(embedding.NewFake(8), embedding.DefaultClientConfig()),
	}, engine.DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	addr, err := server.Start(ctx, "127.0.0.1:0", server.Deps{
		Engine:   e,
		Memories: db,
		Entities: sqlite.NewEntityStore(db.DB()),
		Intel:    sqlite.NewIntelligenceStore(db.DB()),
	})
	require.NoError(t, err)

	cancel()
	time.Sleep(100 * time.Millisecond)

	_, err = http.Get("http://" + addr + "/api/stats")
	require.Error(t, err, "server should have stopped accepting connections after shutdown")
}
