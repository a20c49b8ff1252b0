package storage

import (
	"errors"
	"time"

	"github.com/scrypster/exocortex/pkg/types"
)

// IsTransient reports whether err represents retryable store contention
// (spec failure semantics: "a transaction conflict is retried once then
// surfaced as Conflict").
func IsTransient(err error) bool {
	return errors.Is(err, types.ErrTransient)
}

// Re-exported sentinel errors so storage-layer callers can keep using the
// storage.Err* spelling; the canonical definitions live in pkg/types since
// callers outside this package need them too.
var (
	ErrNotFound            = types.ErrNotFound
	ErrInvalidInput        = types.ErrInvalidInput
	ErrGraphBoundsExceeded = types.ErrConflict
)

// PaginatedResult represents a paginated result set with type safety using generics.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current page.
	Items []T

	// Total is the total number of items across all pages.
	Total int

	// Page is the current page number (1-indexed).
	Page int

	// PageSize is the number of items per page.
	PageSize int

	// HasMore indicates whether there are more pages available.
	HasMore bool
}

// ListOptions provides pagination and filtering options for list operations.
type ListOptions struct {
	// Page is the page number to retrieve (1-indexed, default: 1).
	Page int

	// Limit is the number of items per page (default: 10, max: 100).
	Limit int

	// SortBy specifies the field to sort by.
	SortBy string

	// SortOrder specifies the sort direction ("asc" or "desc", default: "desc").
	SortOrder string

	// ContentType filters to a single content type. Empty means no filter.
	ContentType types.ContentType

	// Tags filters to memories carrying every tag listed (AND semantics).
	Tags []string

	// CreatedAfter filters to memories created strictly after this time.
	CreatedAfter time.Time

	// CreatedBefore filters to memories created strictly before this time.
	CreatedBefore time.Time

	// MinImportance filters to memories with importance >= this value.
	MinImportance float64

	// IncludeInactive includes soft-deleted (trashed) memories in results.
	IncludeInactive bool

	// OnlyInactive restricts results to soft-deleted memories only. It
	// takes precedence over IncludeInactive, whichever value that has.
	OnlyInactive bool

	// IncludeMetadata includes is_metadata memories (benchmark/system rows)
	// that are excluded by default.
	IncludeMetadata bool
}

// Normalize applies defaults and validates the ListOptions.
func (o *ListOptions) Normalize() {
	allowedSortFields := map[string]bool{
		"created_at":   true,
		"updated_at":   true,
		"id":           true,
		"importance":   true,
		"access_count": true,
	}

	if !allowedSortFields[o.SortBy] {
		o.SortBy = "created_at"
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		o.SortOrder = "desc"
	}

	if o.Page < 1 {
		o.Page = 1
	}

	if o.Limit < 1 {
		o.Limit = 10
	}

	if o.Limit > 100 {
		o.Limit = 100
	}
}

// Offset calculates the offset for SQL queries based on page and limit.
func (o *ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// SearchOptions provides options for search operations (spec C5).
type SearchOptions struct {
	// Query is the search query string.
	Query string

	// QueryEmbedding is the caller-supplied query vector for the vector
	// pass, or nil if vector search should be skipped.
	QueryEmbedding []float32

	// Limit is the maximum number of results to return (default: 10, max: 100).
	Limit int

	// Offset is the number of results to skip.
	Offset int

	// MinScore is the minimum fused/legacy score admitted into results.
	MinScore float64

	// Tags, when non-empty, restricts the candidate pool to memories whose
	// tags intersect this set (spec step 1 base filter). The post-fusion
	// tag boost (spec step 8) is separate: it is derived from the query
	// text itself and applies regardless of this filter.
	Tags []string

	// ContentType restricts results to a single content type. Empty means
	// no filter.
	ContentType types.ContentType

	// IncludeMetadata includes is_metadata memories, gated by
	// search.metadata_mode / search.metadata_tags settings.
	IncludeMetadata bool
}

// Normalize applies defaults and validates the SearchOptions.
func (o *SearchOptions) Normalize() {
	if o.Limit < 1 {
		o.Limit = 10
	}

	if o.Limit > 100 {
		o.Limit = 100
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	if o.MinScore < 0.0 {
		o.MinScore = 0.0
	}

	if o.MinScore > 1.0 {
		o.MinScore = 1.0
	}
}

// GraphBounds prevents combinatorial explosion during graph traversal. Spec
// C4 caps traversal at 2 hops by default.
type GraphBounds struct {
	// MaxHops is the maximum number of hops from the starting node.
	MaxHops int

	// MaxNodes is the maximum number of nodes to return.
	MaxNodes int

	// MaxEdges is the maximum number of edges to traverse.
	MaxEdges int

	// Timeout is the maximum duration for the traversal operation.
	Timeout time.Duration

	// CreatedAfter restricts traversal to memories created strictly after
	// this time. Zero value means no lower bound.
	CreatedAfter time.Time

	// CreatedBefore restricts traversal to memories created strictly before
	// this time. Zero value means no upper bound.
	CreatedBefore time.Time
}

// Normalize applies defaults and validates the GraphBounds.
func (g *GraphBounds) Normalize() {
	if g.MaxHops < 1 {
		g.MaxHops = 2
	}

	if g.MaxHops > 5 {
		g.MaxHops = 5
	}

	if g.MaxNodes < 1 {
		g.MaxNodes = 100
	}

	if g.MaxNodes > 1000 {
		g.MaxNodes = 1000
	}

	if g.MaxEdges < 1 {
		g.MaxEdges = 500
	}

	if g.MaxEdges > 5000 {
		g.MaxEdges = 5000
	}

	if g.Timeout == 0 {
		g.Timeout = 10 * time.Second
	}

	if g.Timeout > time.Minute {
		g.Timeout = time.Minute
	}
}

// MatchesTemporalBounds reports whether the given createdAt timestamp falls
// within the temporal window defined by CreatedAfter and CreatedBefore.
func (g *GraphBounds) MatchesTemporalBounds(createdAt time.Time) bool {
	if !g.CreatedAfter.IsZero() && !createdAt.After(g.CreatedAfter) {
		return false
	}
	if !g.CreatedBefore.IsZero() && !createdAt.Before(g.CreatedBefore) {
		return false
	}
	return true
}

// GraphResult represents the result of a graph traversal operation.
type GraphResult struct {
	// Nodes is the list of memory IDs in the graph, closest-first.
	Nodes []string

	// Edges represents connections between nodes (from -> to).
	Edges []GraphEdge

	// BoundsReached names which bounds were hit during traversal (e.g.
	// "max_hops", "max_nodes", "timeout"), empty if none were.
	BoundsReached []string
}

// GraphEdge represents a directed edge in the memory graph.
type GraphEdge struct {
	// From is the source memory ID.
	From string

	// To is the target memory ID.
	To string

	// RelationType is the type of relationship (e.g. a MemoryLinkType, or
	// "shared_entity" for entity-proximity edges).
	RelationType string

	// Weight is the strength of the relationship (0.0 to 1.0).
	Weight float64
}
