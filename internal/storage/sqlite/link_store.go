package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/scrypster/exocortex/internal/idgen"
	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

// LinkStore implements storage.LinkStore using SQLite.
type LinkStore struct {
	db *sql.DB
}

// NewLinkStore wraps an existing connection.
func NewLinkStore(db *sql.DB) *LinkStore {
	return &LinkStore{db: db}
}

// UpsertLink creates or updates a directed link between two memories.
func (s *LinkStore) UpsertLink(ctx context.Context, link *types.MemoryLink) error {
	if link == nil || link.SourceID == "" || link.TargetID == "" || link.LinkType == "" {
		return fmt.Errorf("%w: source, target, and link type are required", storage.ErrInvalidInput)
	}

	now := time.Now()
	strength := link.Strength
	if strength == 0 {
		strength = 1.0
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_links (id, source_id, target_id, link_type, strength, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, link_type) DO UPDATE SET strength = excluded.strength, updated_at = excluded.updated_at`,
		idgen.New("lnk"), link.SourceID, link.TargetID, string(link.LinkType), strength, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert link: %w", err)
	}
	return nil
}

// GetLinkedRefs returns neighbors of memoryID across either link direction,
// the maximum-strength reference per neighbor, sorted by strength descending.
func (s *LinkStore) GetLinkedRefs(ctx context.Context, memoryID string, limit int) ([]types.LinkedRef, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT neighbor, MAX(strength) AS max_strength, link_type FROM (
			SELECT target_id AS neighbor, strength, link_type FROM memory_links WHERE source_id = ?
			UNION ALL
			SELECT source_id AS neighbor, strength, link_type FROM memory_links WHERE target_id = ?
		)
		GROUP BY neighbor
		ORDER BY max_strength DESC
		LIMIT ?`, memoryID, memoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get linked refs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.LinkedRef
	for rows.Next() {
		var ref types.LinkedRef
		var linkType string
		if err := rows.Scan(&ref.MemoryID, &ref.Strength, &linkType); err != nil {
			return nil, fmt.Errorf("sqlite: get linked refs scan: %w", err)
		}
		ref.LinkType = types.MemoryLinkType(linkType)
		out = append(out, ref)
	}
	return out, nil
}

// Traverse performs bounded graph traversal from a starting memory, following
// memory_links and shared-entity edges breadth-first up to bounds.MaxHops,
// bounds.MaxNodes, bounds.MaxEdges, or bounds.Timeout — whichever is hit
// first. BoundsReached reports which limit stopped the walk.
func (s *LinkStore) Traverse(ctx context.Context, startID string, bounds storage.GraphBounds) (*storage.GraphResult, error) {
	bounds.Normalize()

	ctx, cancel := context.WithTimeout(ctx, bounds.Timeout)
	defer cancel()

	result := &storage.GraphResult{Nodes: []string{startID}}
	visited := map[string]bool{startID: true}
	frontier := []string{startID}

	for hop := 0; hop < bounds.MaxHops; hop++ {
		if len(frontier) == 0 {
			break
		}
		if len(result.Nodes) >= bounds.MaxNodes {
			result.BoundsReached = append(result.BoundsReached, "max_nodes")
			break
		}
		if len(result.Edges) >= bounds.MaxEdges {
			result.BoundsReached = append(result.BoundsReached, "max_edges")
			break
		}
		select {
		case <-ctx.Done():
			result.BoundsReached = append(result.BoundsReached, "timeout")
			return result, nil
		default:
		}

		edges, err := s.neighborEdges(ctx, frontier)
		if err != nil {
			return nil, err
		}

		var nextFrontier []string
		for _, edge := range edges {
			if len(result.Edges) >= bounds.MaxEdges {
				result.BoundsReached = append(result.BoundsReached, "max_edges")
				break
			}
			result.Edges = append(result.Edges, edge)

			for _, candidate := range []string{edge.From, edge.To} {
				if candidate == "" || visited[candidate] {
					continue
				}
				visited[candidate] = true
				if len(result.Nodes) >= bounds.MaxNodes {
					continue
				}
				result.Nodes = append(result.Nodes, candidate)
				nextFrontier = append(nextFrontier, candidate)
			}
		}
		frontier = nextFrontier
	}

	if len(frontier) > 0 && len(result.BoundsReached) == 0 {
		result.BoundsReached = append(result.BoundsReached, "max_hops")
	}

	return result, nil
}

// neighborEdges returns memory_links edges touching any memory in ids, plus
// synthetic shared_entity edges from each memory in ids to every other
// memory that shares an entity with it, as a graph-proximity signal (spec
// C4's entity co-occurrence edges).
func (s *LinkStore) neighborEdges(ctx context.Context, ids []string) ([]storage.GraphEdge, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders, args := placeholderList(ids)

	linkRows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT source_id, target_id, link_type, strength FROM memory_links
		WHERE source_id IN (%s) OR target_id IN (%s)`, placeholders, placeholders),
		append(append([]interface{}{}, args...), args...)...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: neighbor link edges: %w", err)
	}
	defer func() { _ = linkRows.Close() }()

	var edges []storage.GraphEdge
	for linkRows.Next() {
		var e storage.GraphEdge
		var linkType string
		if err := linkRows.Scan(&e.From, &e.To, &linkType, &e.Weight); err != nil {
			return nil, fmt.Errorf("sqlite: neighbor link edges scan: %w", err)
		}
		e.RelationType = linkType
		edges = append(edges, e)
	}

	entityRows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT DISTINCT a.memory_id, b.memory_id
		FROM memory_entities a
		JOIN memory_entities b ON a.entity_id = b.entity_id AND a.memory_id != b.memory_id
		WHERE a.memory_id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: neighbor entity edges: %w", err)
	}
	defer func() { _ = entityRows.Close() }()

	for entityRows.Next() {
		var from, to string
		if err := entityRows.Scan(&from, &to); err != nil {
			return nil, fmt.Errorf("sqlite: neighbor entity edges scan: %w", err)
		}
		edges = append(edges, storage.GraphEdge{From: from, To: to, RelationType: "shared_entity", Weight: 0.5})
	}

	return edges, nil
}

func placeholderList(ids []string) (string, []interface{}) {
	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}
	return string(placeholders), args
}
