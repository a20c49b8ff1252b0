// Package server exposes exocortex's engine over a small JSON HTTP API (the
// "serve" command of spec.md §6) plus a websocket endpoint that mirrors
// memory-lifecycle events to connected clients via internal/surface.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/scrypster/exocortex/internal/embedding"
	"github.com/scrypster/exocortex/internal/engine"
	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/internal/surface"
	"github.com/scrypster/exocortex/pkg/types"
	"nhooyr.io/websocket"
)

// securityHeadersMiddleware adds the same baseline headers to every
// response regardless of route.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware rejects requests once the shared limiter's burst is
// exhausted, same shape as the teacher's: 10 req/s sustained, burst 20.
func rateLimitMiddleware(next http.Handler, limiter *rate.Limiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Deps are the dependencies the API handlers need.
type Deps struct {
	Engine   *engine.Engine
	Memories storage.MemoryStore
	Entities storage.EntityStore
	Intel    storage.IntelligenceStore
	Embedder *embedding.Client
	Hub      *surface.Hub
}

// Start builds the mux, binds addr ("host:port"), and serves in a
// background goroutine. It returns the actual listening address (useful
// when port 0 is requested) and shuts down cleanly when ctx is cancelled.
func Start(ctx context.Context, addr string, deps Deps) (string, error) {
	h := &handlers{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/memories", h.createMemory)
	mux.HandleFunc("GET /api/memories/{id}", h.getMemory)
	mux.HandleFunc("GET /api/search", h.search)
	mux.HandleFunc("GET /api/stats", h.stats)
	mux.HandleFunc("GET /api/entities", h.listEntities)
	mux.HandleFunc("GET /api/contradictions", h.listContradictions)
	mux.HandleFunc("POST /api/contradictions/{id}/resolve", h.resolveContradiction)
	mux.HandleFunc("GET /ws", h.websocket)

	limiter := rate.NewLimiter(rate.Every(100*time.Millisecond), 20) // 10 req/s, burst 20
	handler := securityHeadersMiddleware(rateLimitMiddleware(mux, limiter))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	httpServer := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown error: %v", err)
		}
	}()

	return actualAddr, nil
}

type handlers struct {
	deps Deps
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handlers) createMemory(w http.ResponseWriter, r *http.Request) {
	var input types.CreateMemoryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.deps.Engine.Create(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *handlers) getMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m, err := h.deps.Memories.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}

	opts := storage.SearchOptions{Query: query}
	if h.deps.Embedder != nil {
		if vec, err := h.deps.Embedder.Embed(r.Context(), query); err == nil {
			opts.QueryEmbedding = vec
		}
	}

	results, err := h.deps.Engine.Search(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	active, err := h.deps.Memories.CountActive(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entityPage, err := h.deps.Entities.ListEntities(ctx, storage.ListOptions{Page: 1, Limit: 1})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	pending, err := h.deps.Intel.ListContradictions(ctx, types.ContradictionPending)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"active_memories":      active,
		"entities":             entityPage.Total,
		"pending_contradictions": len(pending),
	})
}

func (h *handlers) listEntities(w http.ResponseWriter, r *http.Request) {
	page, err := h.deps.Entities.ListEntities(r.Context(), storage.ListOptions{Page: 1, Limit: 100})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handlers) listContradictions(w http.ResponseWriter, r *http.Request) {
	status := types.ContradictionStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = types.ContradictionPending
	}
	list, err := h.deps.Intel.ListContradictions(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) resolveContradiction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Status     types.ContradictionStatus `json:"status"`
		Resolution string                    `json:"resolution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.deps.Intel.ResolveContradiction(r.Context(), id, body.Status, body.Resolution); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// websocket upgrades the connection and registers it with the hub for the
// lifetime of the connection; it blocks until the client disconnects.
func (h *handlers) websocket(w http.ResponseWriter, r *http.Request) {
	if h.deps.Hub == nil {
		writeError(w, http.StatusNotImplemented, "live updates not configured")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	unregister := h.deps.Hub.Register(conn)
	defer unregister()

	<-r.Context().Done()
}
