package surface_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/scrypster/exocortex/internal/surface"
)

func TestHubBroadcastsToConnectedClient(t *testing.T) {
	hub := surface.NewHub()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		unregister := hub.Register(conn)
		defer unregister()
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + server.URL[len("http"):]
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	// Give the server goroutine a moment to register before broadcasting.
	time.Sleep(50 * time.Millisecond)
	hub.OnMemoryCreated(ctx)("mem:test:abc123")

	var event surface.Event
	require.NoError(t, wsjson.Read(ctx, conn, &event))
	assert.Equal(t, "memory_created", event.Type)
	assert.Equal(t, "mem:test:abc123", event.MemoryID)
}

func TestHubBroadcastWithNoClientsDoesNotBlock(t *testing.T) {
	hub := surface.NewHub()
	done := make(chan struct{})
	go func() {
		hub.Broadcast(context.Background(), surface.Event{Type: "memory_created", MemoryID: "mem:test:1"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked with no registered clients")
	}
}
