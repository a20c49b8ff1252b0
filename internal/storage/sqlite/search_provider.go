package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/scrypster/exocortex/internal/scoring"
	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

// SearchProvider implements storage.SearchProvider using the memories_fts
// FTS5 index for the lexical pass and an in-process cosine scan for the
// vector pass. A brute-force scan is appropriate at this scale — spec.md
// targets a personal, single-user memory store — and keeps the vector path
// free of an external ANN index dependency.
type SearchProvider struct {
	db *sql.DB
}

// NewSearchProvider wraps an existing connection.
func NewSearchProvider(db *sql.DB) *SearchProvider {
	return &SearchProvider{db: db}
}

// FullTextSearch performs FTS5-backed lexical search across memory content
// and keywords, ranked by SQLite's bm25(). The result's Total is the number
// of items on the returned page, not the total number of matches.
func (s *SearchProvider) FullTextSearch(ctx context.Context, opts storage.SearchOptions) (*storage.PaginatedResult[types.Memory], error) {
	opts.Normalize()

	if opts.Query == "" {
		return &storage.PaginatedResult[types.Memory]{Page: 1, PageSize: opts.Limit}, nil
	}

	where := []string{"memories_fts MATCH ?", "m.is_active = 1"}
	args := []interface{}{opts.Query}

	if !opts.IncludeMetadata {
		where = append(where, "m.is_metadata = 0")
	}
	if opts.ContentType != "" {
		where = append(where, "m.content_type = ?")
		args = append(args, string(opts.ContentType))
	}

	query := fmt.Sprintf(`
		SELECT %s FROM memories m
		JOIN memories_fts ON memories_fts.rowid = m.rowid
		WHERE %s
		ORDER BY bm25(memories_fts)
		LIMIT ? OFFSET ?`, qualifiedMemoryColumns("m"), joinWhere(where))
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: full text search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []types.Memory
	for rows.Next() {
		m, err := scanMemoryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: full text search scan: %w", err)
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: full text search rows: %w", err)
	}

	return &storage.PaginatedResult[types.Memory]{
		Items: items, Total: len(items), Page: 1, PageSize: opts.Limit,
	}, nil
}

// VectorSearch ranks active memories with a stored embedding by cosine
// similarity to query, descending.
func (s *SearchProvider) VectorSearch(ctx context.Context, query []float32, opts storage.SearchOptions) (*storage.PaginatedResult[types.Memory], error) {
	opts.Normalize()

	if len(query) == 0 {
		return &storage.PaginatedResult[types.Memory]{Page: 1, PageSize: opts.Limit}, nil
	}

	where := []string{"is_active = 1", "embedding IS NOT NULL"}
	args := []interface{}{}

	if !opts.IncludeMetadata {
		where = append(where, "is_metadata = 0")
	}
	if opts.ContentType != "" {
		where = append(where, "content_type = ?")
		args = append(args, string(opts.ContentType))
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM memories WHERE %s", selectMemoryColumns, joinWhere(where)), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type scored struct {
		memory *types.Memory
		score  float64
	}
	var candidates []scored
	for rows.Next() {
		m, err := scanMemoryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: vector search scan: %w", err)
		}
		candidates = append(candidates, scored{memory: m, score: scoring.Cosine(query, m.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: vector search rows: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	start := opts.Offset
	if start > len(candidates) {
		start = len(candidates)
	}
	end := start + opts.Limit
	if end > len(candidates) {
		end = len(candidates)
	}

	var items []types.Memory
	for _, c := range candidates[start:end] {
		items = append(items, *c.memory)
	}

	return &storage.PaginatedResult[types.Memory]{
		Items: items, Total: len(candidates), Page: 1, PageSize: opts.Limit,
	}, nil
}

func joinWhere(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += " AND "
		}
		out += c
	}
	return out
}

var memoryColumnNames = []string{
	"id", "content", "content_type", "source", "source_uri", "embedding", "importance",
	"access_count", "useful_count", "last_accessed_at",
	"parent_id", "superseded_by",
	"is_active", "is_metadata", "is_indexed", "chunk_index",
	"metadata", "keywords", "tags", "content_hash",
	"created_at", "updated_at",
}

// qualifiedMemoryColumns rewrites the bare memories column list with an
// alias prefix, needed once FullTextSearch joins memories to memories_fts.
func qualifiedMemoryColumns(alias string) string {
	out := ""
	for i, n := range memoryColumnNames {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + n
	}
	return out
}
