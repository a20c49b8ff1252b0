package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/scrypster/exocortex/internal/idgen"
	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

// IntelligenceStore implements storage.IntelligenceStore using SQLite. It
// backs the maintenance jobs: consolidation, contradiction detection,
// importance decay/boost, and graph densification from co-retrieval.
type IntelligenceStore struct {
	db *sql.DB
}

// NewIntelligenceStore wraps an existing connection.
func NewIntelligenceStore(db *sql.DB) *IntelligenceStore {
	return &IntelligenceStore{db: db}
}

// RecordConsolidation persists an immutable consolidation record.
func (s *IntelligenceStore) RecordConsolidation(ctx context.Context, c *types.Consolidation) error {
	sourceIDsJSON, err := json.Marshal(c.SourceIDs)
	if err != nil {
		return fmt.Errorf("sqlite: marshal source ids: %w", err)
	}

	id := c.ID
	if id == "" {
		id = idgen.New("cons")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO consolidations (id, summary_id, source_ids, strategy, memories_merged, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, c.SummaryID, string(sourceIDsJSON), c.Strategy, c.MemoriesMerged, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: record consolidation: %w", err)
	}
	return nil
}

// RecordContradiction persists a detected contradiction. The pair is
// normalized so (a,b) and (b,a) collide on the same row; a re-detection of
// an already-pending pair is a no-op.
func (s *IntelligenceStore) RecordContradiction(ctx context.Context, c *types.Contradiction) error {
	a, b := c.MemoryAID, c.MemoryBID
	if a > b {
		a, b = b, a
	}

	if c.Status == "" {
		c.Status = types.ContradictionPending
	}
	now := time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contradictions (id, memory_a_id, memory_b_id, description, status, resolution, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(memory_a_id, memory_b_id) DO NOTHING`,
		idgen.New("contra"), a, b, c.Description, string(c.Status), nullableString(c.Resolution), now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: record contradiction: %w", err)
	}
	return nil
}

// ListContradictions lists contradictions by status, or all if status is empty.
func (s *IntelligenceStore) ListContradictions(ctx context.Context, status types.ContradictionStatus) ([]*types.Contradiction, error) {
	where, args := "", []interface{}{}
	if status != "" {
		where = "WHERE status = ?"
		args = append(args, string(status))
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, memory_a_id, memory_b_id, description, status, resolution, created_at, updated_at
		FROM contradictions %s ORDER BY created_at DESC`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list contradictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Contradiction
	for rows.Next() {
		var c types.Contradiction
		var status, resolution string
		var resolutionNull sql.NullString
		if err := rows.Scan(&c.ID, &c.MemoryAID, &c.MemoryBID, &c.Description, &status, &resolutionNull, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: list contradictions scan: %w", err)
		}
		c.Status = types.ContradictionStatus(status)
		c.Resolution = resolutionNull.String
		_ = resolution
		out = append(out, &c)
	}
	return out, nil
}

// ResolveContradiction updates a contradiction's status and resolution note.
func (s *IntelligenceStore) ResolveContradiction(ctx context.Context, id string, status types.ContradictionStatus, resolution string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contradictions SET status = ?, resolution = ?, updated_at = ? WHERE id = ?`,
		string(status), nullableString(resolution), time.Now(), id)
	if err != nil {
		return fmt.Errorf("sqlite: resolve contradiction: %w", err)
	}
	return requireRowAffected(res)
}

// RecordCoRetrieval logs a set of memories that co-occurred in one ranked
// result set, keyed by a hash of the originating query.
func (s *IntelligenceStore) RecordCoRetrieval(ctx context.Context, queryHash string, memoryIDs []string) error {
	if len(memoryIDs) < 2 {
		return nil
	}
	idsJSON, err := json.Marshal(memoryIDs)
	if err != nil {
		return fmt.Errorf("sqlite: marshal co-retrieval ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO co_retrievals (id, query_hash, memory_ids, created_at) VALUES (?, ?, ?, ?)`,
		idgen.New("coret"), queryHash, string(idsJSON), time.Now())
	if err != nil {
		return fmt.Errorf("sqlite: record co-retrieval: %w", err)
	}
	return nil
}

// PruneCoRetrievals deletes co_retrievals rows older than olderThanDays,
// returning the number removed (spec C9's 05:30 cleanup).
func (s *IntelligenceStore) PruneCoRetrievals(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	res, err := s.db.ExecContext(ctx, `DELETE FROM co_retrievals WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune co-retrievals: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune co-retrievals rows affected: %w", err)
	}
	return int(n), nil
}

// TopCoRetrievedPairs aggregates co_retrievals into unordered memory-id
// pairs, returning those that co-occurred at least minCount times, most
// frequent first. Aggregation happens in Go since pair extraction from the
// JSON array column is awkward to express purely in SQL.
func (s *IntelligenceStore) TopCoRetrievedPairs(ctx context.Context, minCount int, limit int) ([]storage.CoRetrievedPair, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT memory_ids FROM co_retrievals`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: top co-retrieved pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[[2]string]int)
	for rows.Next() {
		var idsJSON string
		if err := rows.Scan(&idsJSON); err != nil {
			return nil, fmt.Errorf("sqlite: top co-retrieved pairs scan: %w", err)
		}
		var ids []string
		if err := json.Unmarshal([]byte(idsJSON), &ids); err != nil {
			continue
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a, b := ids[i], ids[j]
				if a > b {
					a, b = b, a
				}
				counts[[2]string{a, b}]++
			}
		}
	}

	var pairs []storage.CoRetrievedPair
	for pair, count := range counts {
		if count >= minCount {
			pairs = append(pairs, storage.CoRetrievedPair{MemoryA: pair[0], MemoryB: pair[1], Count: count})
		}
	}

	sortPairsByCountDesc(pairs)
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs, nil
}

func sortPairsByCountDesc(pairs []storage.CoRetrievedPair) {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Count > pairs[j].Count })
}

// CandidatesForDecay returns active, non-pinned memories whose
// last_accessed_at (or created_at, if never accessed) is older than
// olderThanDays.
func (s *IntelligenceStore) CandidatesForDecay(ctx context.Context, olderThanDays int, limit int) ([]types.Memory, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM memories
		WHERE is_active = 1 AND importance < 1.0
		  AND COALESCE(last_accessed_at, created_at) < ?
		ORDER BY COALESCE(last_accessed_at, created_at) ASC
		LIMIT ?`, selectMemoryColumns), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: candidates for decay: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.Memory
	for rows.Next() {
		m, err := scanMemoryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: candidates for decay scan: %w", err)
		}
		out = append(out, *m)
	}
	return out, nil
}

// CandidatesForBoost returns active memories with access_count at or above
// accessThreshold, for the importance-boost job.
func (s *IntelligenceStore) CandidatesForBoost(ctx context.Context, accessThreshold int, limit int) ([]types.Memory, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM memories
		WHERE is_active = 1 AND importance < 1.0 AND access_count >= ?
		ORDER BY access_count DESC
		LIMIT ?`, selectMemoryColumns), accessThreshold, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: candidates for boost: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.Memory
	for rows.Next() {
		m, err := scanMemoryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: candidates for boost scan: %w", err)
		}
		out = append(out, *m)
	}
	return out, nil
}
