// Package storage provides composable storage interfaces for the exocortex
// memory engine. The storage layer is designed with small, focused
// interfaces that can be implemented independently and composed as needed,
// following the Interface Segregation Principle.
package storage

import (
	"context"

	"github.com/scrypster/exocortex/pkg/types"
)

// MemoryStore provides CRUD, soft-delete/restore, and the evolution-chain
// read path for memories (spec C3).
type MemoryStore interface {
	// Create stores a new memory, or returns the existing active memory with
	// identical content (by content hash) and DedupSkipped without inserting.
	// Semantic dedup, chunking and the embedding-provider call are done by
	// the engine's creation pipeline around Create, not by Create itself.
	Create(ctx context.Context, input types.CreateMemoryInput) (*types.CreateMemoryResult, error)

	// Get retrieves an active memory by ID. Returns ErrNotFound otherwise.
	Get(ctx context.Context, id string) (*types.Memory, error)

	// GetIncludingInactive retrieves a memory regardless of its is_active
	// flag, used by evolution-chain traversal and restore.
	GetIncludingInactive(ctx context.Context, id string) (*types.Memory, error)

	// List retrieves memories with pagination and filtering.
	List(ctx context.Context, opts ListOptions) (*PaginatedResult[types.Memory], error)

	// Update applies a partial update to an existing memory.
	// Returns ErrNotFound if the memory doesn't exist.
	Update(ctx context.Context, id string, input types.UpdateMemoryInput) (*types.Memory, error)

	// Delete soft-deletes a memory (sets is_active = false).
	// Returns ErrNotFound if the memory doesn't exist.
	Delete(ctx context.Context, id string) error

	// Restore un-deletes a soft-deleted memory (sets is_active = true).
	// Returns ErrNotFound if the memory doesn't exist.
	Restore(ctx context.Context, id string) error

	// Purge permanently removes memories that have been inactive for at
	// least olderThanDays. Supersede-chain ancestors still referenced by an
	// active memory's parent_id/superseded_by are shielded from deletion.
	// Returns the number of memories purged.
	Purge(ctx context.Context, olderThanDays int) (int, error)

	// GetEvolutionChain returns the full supersede history for a memory,
	// ordered oldest to newest. Capped at 50 versions; cycle-guarded.
	GetEvolutionChain(ctx context.Context, memoryID string) ([]*types.Memory, error)

	// RecordAccess appends an access-log entry and atomically increments
	// access_count and last_accessed_at.
	RecordAccess(ctx context.Context, id string, query string) error

	// IncrementUseful atomically increments useful_count.
	IncrementUseful(ctx context.Context, id string) error

	// SetImportance sets a memory's importance directly, bypassing the
	// dedup/chunking pipeline. Used by the intelligence jobs.
	SetImportance(ctx context.Context, id string, importance float64) error

	// SetEmbedding persists a computed embedding vector for a memory,
	// called by the engine pipeline once the embedding provider returns.
	SetEmbedding(ctx context.Context, id string, vec []float32) error

	// Supersede marks oldID inactive with superseded_by = newID, used by
	// semantic dedup (C3) and consolidation (C6).
	Supersede(ctx context.Context, oldID, newID string) error

	// Children returns the chunk children of a parent memory, ordered by
	// chunk_index ascending.
	Children(ctx context.Context, parentID string) ([]*types.Memory, error)

	// DeleteChildren hard-deletes every chunk child of parentID, used to
	// dechunk a parent edited back below the chunking threshold.
	DeleteChildren(ctx context.Context, parentID string) error

	// CountActive returns the number of active memories, used to compute
	// frequency-score normalization (nMax) and job batch sizing.
	CountActive(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// SearchProvider provides full-text and vector search capabilities (spec
// C5's lexical and vector passes).
type SearchProvider interface {
	// FullTextSearch performs FTS-backed lexical search across memory
	// content and keywords.
	FullTextSearch(ctx context.Context, opts SearchOptions) (*PaginatedResult[types.Memory], error)

	// VectorSearch ranks active memories with an embedding by cosine
	// similarity to query.
	VectorSearch(ctx context.Context, query []float32, opts SearchOptions) (*PaginatedResult[types.Memory], error)
}

// EntityStore manages entities, their relationships, and the memory-entity
// join (spec C4).
type EntityStore interface {
	// UpsertEntity creates an entity or returns the existing one matching
	// name (case-insensitive) and type.
	UpsertEntity(ctx context.Context, entity *types.Entity) (*types.Entity, error)

	// GetEntity retrieves an entity by ID.
	GetEntity(ctx context.Context, id string) (*types.Entity, error)

	// FindEntityByName looks up an entity case-insensitively by name and type.
	FindEntityByName(ctx context.Context, name string, entityType types.EntityType) (*types.Entity, error)

	// ListEntities lists entities with pagination, newest first. It does not
	// filter by entity type.
	ListEntities(ctx context.Context, opts ListOptions) (*PaginatedResult[types.Entity], error)

	// LinkMemoryEntity upserts a memory-entity association, keeping the
	// higher relevance on conflict.
	LinkMemoryEntity(ctx context.Context, memoryID, entityID string, relevance float64) error

	// GetMemoryEntities returns the entities linked to a memory.
	GetMemoryEntities(ctx context.Context, memoryID string) ([]*types.Entity, error)

	// GetEntityMemories returns the ids of memories linked to an entity.
	GetEntityMemories(ctx context.Context, entityID string) ([]string, error)

	// CreateRelationship creates a labeled (source, target, label) triple.
	// Duplicate triples are rejected silently (no-op).
	CreateRelationship(ctx context.Context, rel *types.EntityRelationship) error

	// GetRelationships returns relationships where entityID is either
	// endpoint.
	GetRelationships(ctx context.Context, entityID string) ([]*types.EntityRelationship, error)
}

// LinkStore manages directed memory-to-memory links and bounded graph
// traversal (spec C4).
type LinkStore interface {
	// UpsertLink creates or updates a directed link between two memories.
	UpsertLink(ctx context.Context, link *types.MemoryLink) error

	// GetLinkedRefs returns neighbors of memoryID across either link
	// direction, the maximum-strength reference per neighbor, sorted by
	// strength descending.
	GetLinkedRefs(ctx context.Context, memoryID string, limit int) ([]types.LinkedRef, error)

	// Traverse performs bounded graph traversal from a starting memory,
	// following memory_links and shared-entity edges up to bounds.MaxHops.
	Traverse(ctx context.Context, startID string, bounds GraphBounds) (*GraphResult, error)
}

// GoalStore manages longer-running objectives (spec C8).
type GoalStore interface {
	CreateGoal(ctx context.Context, goal *types.Goal) (*types.Goal, error)
	GetGoal(ctx context.Context, id string) (*types.Goal, error)
	ListGoals(ctx context.Context, status types.GoalStatus, opts ListOptions) (*PaginatedResult[types.Goal], error)
	UpdateGoal(ctx context.Context, id string, mutate func(*types.Goal)) (*types.Goal, error)
	DeleteGoal(ctx context.Context, id string) error

	// LinkedMemoryIDs returns the ids of memories whose metadata.goal_id
	// weak-references goalID.
	LinkedMemoryIDs(ctx context.Context, goalID string) ([]string, error)
}

// IntelligenceStore persists the side effects of the maintenance jobs (spec
// C6): consolidations, contradictions, access history, and co-retrieval
// observations.
type IntelligenceStore interface {
	RecordConsolidation(ctx context.Context, c *types.Consolidation) error
	RecordContradiction(ctx context.Context, c *types.Contradiction) error
	ListContradictions(ctx context.Context, status types.ContradictionStatus) ([]*types.Contradiction, error)
	ResolveContradiction(ctx context.Context, id string, status types.ContradictionStatus, resolution string) error

	RecordCoRetrieval(ctx context.Context, queryHash string, memoryIDs []string) error
	// PruneCoRetrievals deletes co-retrieval rows older than olderThanDays,
	// returning how many were removed.
	PruneCoRetrievals(ctx context.Context, olderThanDays int) (int, error)
	// TopCoRetrievedPairs returns memory-id pairs that co-occurred at least
	// minCount times, most frequent first, for the graph-densify job.
	TopCoRetrievedPairs(ctx context.Context, minCount int, limit int) ([]CoRetrievedPair, error)

	// CandidatesForDecay returns active, non-pinned memories whose
	// last_accessed_at (or created_at if never accessed) is older than
	// olderThanDays, for the importance-decay job.
	CandidatesForDecay(ctx context.Context, olderThanDays int, limit int) ([]types.Memory, error)

	// CandidatesForBoost returns active memories with access_count at or
	// above accessThreshold, for the importance-boost job.
	CandidatesForBoost(ctx context.Context, accessThreshold int, limit int) ([]types.Memory, error)
}

// CoRetrievedPair is a graph-densify candidate edge.
type CoRetrievedPair struct {
	MemoryA string
	MemoryB string
	Count   int
}

// RegressionStore persists golden-query baselines and per-run drift records
// (spec C7).
type RegressionStore interface {
	GetBaseline(ctx context.Context, queryID string) (*types.RegressionBaseline, error)
	SaveBaseline(ctx context.Context, baseline *types.RegressionBaseline) error
	RecordRun(ctx context.Context, run *types.RegressionRun) error
	ListRuns(ctx context.Context, runID string) ([]*types.RegressionRun, error)
}
