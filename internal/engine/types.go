// Package engine implements the synchronous memory-creation pipeline (spec
// C3), the hybrid retrieval pipeline (C5), and the intelligence maintenance
// jobs (C6) on top of the storage and settings layers. Unlike an
// async-enrichment-queue design, every Create call returns only once dedup,
// chunking, embedding, and linking have all completed — there is no
// background worker pool to start or drain.
package engine

import (
	"fmt"
	"sync"

	"github.com/scrypster/exocortex/internal/embedding"
	"github.com/scrypster/exocortex/internal/logging"
	"github.com/scrypster/exocortex/internal/settings"
	"github.com/scrypster/exocortex/internal/storage"
)

// Config configures an Engine's static (non-settings-table) behavior.
type Config struct {
	// MaxEvolutionChain caps GetEvolutionChain traversal depth.
	MaxEvolutionChain int
}

// Validate applies defaults and rejects out-of-range values.
func (c *Config) Validate() error {
	if c.MaxEvolutionChain < 0 {
		return fmt.Errorf("engine: MaxEvolutionChain must be >= 0")
	}
	if c.MaxEvolutionChain == 0 {
		c.MaxEvolutionChain = 50
	}
	return nil
}

// DefaultConfig returns sane defaults.
func DefaultConfig() Config {
	return Config{MaxEvolutionChain: 50}
}

// Engine is the core orchestrator composing the storage layer, the settings
// substrate, and the embedding provider into the creation, search, and
// maintenance operations spec.md describes.
type Engine struct {
	config Config

	memories storage.MemoryStore
	search   storage.SearchProvider
	entities storage.EntityStore
	links    storage.LinkStore
	goals    storage.GoalStore
	intel    storage.IntelligenceStore
	regress  storage.RegressionStore

	settings *settings.Store
	embedder *embedding.Client
	log      *logging.Logger

	mu              sync.RWMutex
	onMemoryCreated func(memoryID string)
}

// Deps bundles an Engine's collaborators. New requires Memories, Search,
// Entities, Links, and Settings; it does not check Goals, Intel, or Regress,
// which are used only by the goal, maintenance, and regression operations.
// Embedder may be nil (embedding is then skipped for every memory, same as
// a provider failure).
type Deps struct {
	Memories storage.MemoryStore
	Search   storage.SearchProvider
	Entities storage.EntityStore
	Links    storage.LinkStore
	Goals    storage.GoalStore
	Intel    storage.IntelligenceStore
	Regress  storage.RegressionStore
	Settings *settings.Store
	Embedder *embedding.Client
}

// New creates an Engine. Use DefaultConfig() for cfg unless a caller needs
// to override evolution-chain depth.
func New(deps Deps, cfg Config) (*Engine, error) {
	if deps.Memories == nil || deps.Search == nil || deps.Entities == nil || deps.Links == nil || deps.Settings == nil {
		return nil, fmt.Errorf("engine: Memories, Search, Entities, Links, and Settings are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		config:   cfg,
		memories: deps.Memories,
		search:   deps.Search,
		entities: deps.Entities,
		links:    deps.Links,
		goals:    deps.Goals,
		intel:    deps.Intel,
		regress:  deps.Regress,
		settings: deps.Settings,
		embedder: deps.Embedder,
		log:      logging.GetLogger("engine"),
	}, nil
}

// SetOnMemoryCreated registers a callback fired after a memory is durably
// created (after dedup/chunking/embedding/linking), used by the external
// surface layer to push live updates.
func (e *Engine) SetOnMemoryCreated(callback func(memoryID string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onMemoryCreated = callback
}

func (e *Engine) fireMemoryCreated(id string) {
	e.mu.RLock()
	cb := e.onMemoryCreated
	e.mu.RUnlock()
	if cb != nil {
		cb(id)
	}
}
