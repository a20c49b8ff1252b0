package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/exocortex/internal/idgen"
	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

// MemoryStore implements storage.MemoryStore using SQLite.
type MemoryStore struct {
	db *sql.DB
}

// NewMemoryStore creates a new SQLite memory store with WAL self-healing.
// If the initial open fails due to stale WAL files (left behind by a crashed
// process), it verifies no other process holds them and retries once after
// removing the stale -shm/-wal files.
func NewMemoryStore(dsn string) (*MemoryStore, error) {
	store, err := openMemoryStore(dsn)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || dbPath == ":memory:" {
		return nil, err
	}

	if !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath)

	store, retryErr := openMemoryStore(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return store, nil
}

// openMemoryStore opens a SQLite database, configures WAL mode, and creates the schema.
func openMemoryStore(dsn string) (*MemoryStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows only one writer at a time. A single open connection
	// serializes writes and avoids SQLITE_BUSY; WAL mode lets concurrent
	// readers proceed without blocking that writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &MemoryStore{db: db}, nil
}

// DB exposes the underlying handle so sibling stores in this package
// (entities, links, goals, intelligence jobs) share the single connection
// rather than opening a second one.
func (s *MemoryStore) DB() *sql.DB {
	return s.db
}

// Create inserts a new memory after hash dedup. The caller (the memory
// creation pipeline in internal/engine) is responsible for computing the
// embedding, chunking long content, and performing semantic dedup/supersede
// before calling Create, since those require the embedding provider and
// similarity-search collaborators this package does not depend on.
func (s *MemoryStore) Create(ctx context.Context, input types.CreateMemoryInput) (*types.CreateMemoryResult, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", storage.ErrInvalidInput)
	}

	hash := contentHash(input.Content)

	var existingID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM memories WHERE content_hash = ? AND is_active = 1 LIMIT 1`, hash).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("sqlite: Create hash lookup: %w", err)
	}
	if existingID != "" {
		existing, getErr := s.Get(ctx, existingID)
		if getErr != nil {
			return nil, getErr
		}
		return &types.CreateMemoryResult{Memory: existing, DedupAction: types.DedupSkipped}, nil
	}

	now := time.Now()
	importance := 0.5
	if input.Importance != nil {
		importance = *input.Importance
	}

	m := &types.Memory{
		ID:          idgen.New("mem"),
		Content:     input.Content,
		ContentType: input.ContentType,
		Source:      input.Source,
		SourceURI:   input.SourceURI,
		Importance:  importance,
		ParentID:    input.ParentID,
		IsActive:    true,
		IsMetadata:  input.IsMetadata,
		IsIndexed:   true,
		Metadata:    input.Metadata,
		Tags:        input.Tags,
		ContentHash: hash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m.ContentType == "" {
		m.ContentType = types.ContentTypeText
	}
	if m.Source == "" {
		m.Source = types.SourceManual
	}

	if err := s.insert(ctx, m); err != nil {
		return nil, err
	}

	return &types.CreateMemoryResult{Memory: m}, nil
}

func (s *MemoryStore) insert(ctx context.Context, m *types.Memory) error {
	metadataJSON, err := marshalOrNil(m.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal metadata: %w", err)
	}
	tagsJSON, err := marshalOrNil(m.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (
			id, content, content_type, source, source_uri, embedding, importance,
			access_count, useful_count, last_accessed_at,
			parent_id, superseded_by,
			is_active, is_metadata, is_indexed, chunk_index,
			metadata, keywords, tags, content_hash,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID, m.Content, string(m.ContentType), string(m.Source), nullableString(m.SourceURI),
		encodeEmbedding(m.Embedding), m.Importance,
		m.AccessCount, m.UsefulCount, nullableTime(m.LastAccessedAt),
		nullableString(m.ParentID), nullableString(m.SupersededBy),
		boolToInt(m.IsActive), boolToInt(m.IsMetadata), boolToInt(m.IsIndexed), nullableInt(m.ChunkIndex),
		nullableBytes(metadataJSON), nullableString(m.Keywords), nullableBytes(tagsJSON), m.ContentHash,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert memory: %w", err)
	}
	return nil
}

const selectMemoryColumns = `
	id, content, content_type, source, source_uri, embedding, importance,
	access_count, useful_count, last_accessed_at,
	parent_id, superseded_by,
	is_active, is_metadata, is_indexed, chunk_index,
	metadata, keywords, tags, content_hash,
	created_at, updated_at
`

func scanMemoryRow(row interface{ Scan(...interface{}) error }) (*types.Memory, error) {
	var m types.Memory
	var sourceURI, parentID, supersededBy, keywords sql.NullString
	var metadataJSON, tagsJSON sql.NullString
	var embeddingBlob []byte
	var lastAccessedAt sql.NullTime
	var isActive, isMetadata, isIndexed int
	var chunkIndex sql.NullInt64
	var contentType, source string

	if err := row.Scan(
		&m.ID, &m.Content, &contentType, &source, &sourceURI, &embeddingBlob, &m.Importance,
		&m.AccessCount, &m.UsefulCount, &lastAccessedAt,
		&parentID, &supersededBy,
		&isActive, &isMetadata, &isIndexed, &chunkIndex,
		&metadataJSON, &keywords, &tagsJSON, &m.ContentHash,
		&m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	m.ContentType = types.ContentType(contentType)
	m.Source = types.Source(source)
	m.SourceURI = sourceURI.String
	m.ParentID = parentID.String
	m.SupersededBy = supersededBy.String
	m.Keywords = keywords.String
	m.IsActive = isActive != 0
	m.IsMetadata = isMetadata != 0
	m.IsIndexed = isIndexed != 0

	if chunkIndex.Valid {
		v := int(chunkIndex.Int64)
		m.ChunkIndex = &v
	}
	if lastAccessedAt.Valid {
		t := lastAccessedAt.Time
		m.LastAccessedAt = &t
	}

	embedding, err := decodeEmbedding(embeddingBlob)
	if err != nil {
		return nil, err
	}
	m.Embedding = embedding

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &m.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &m.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}

	return &m, nil
}

// Get retrieves an active memory by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*types.Memory, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+selectMemoryColumns+` FROM memories WHERE id = ? AND is_active = 1`, id)
	m, err := scanMemoryRow(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get memory: %w", err)
	}
	return m, nil
}

// GetIncludingInactive retrieves a memory regardless of is_active.
func (s *MemoryStore) GetIncludingInactive(ctx context.Context, id string) (*types.Memory, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+selectMemoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemoryRow(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get memory: %w", err)
	}
	return m, nil
}

// List retrieves memories with pagination and filtering.
func (s *MemoryStore) List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Memory], error) {
	opts.Normalize()

	where := []string{}
	args := []interface{}{}

	switch {
	case opts.OnlyInactive:
		where = append(where, "is_active = 0")
	case opts.IncludeInactive:
		// no filter on is_active
	default:
		where = append(where, "is_active = 1")
	}

	if !opts.IncludeMetadata {
		where = append(where, "is_metadata = 0")
	}
	if opts.ContentType != "" {
		where = append(where, "content_type = ?")
		args = append(args, string(opts.ContentType))
	}
	if !opts.CreatedAfter.IsZero() {
		where = append(where, "created_at > ?")
		args = append(args, opts.CreatedAfter)
	}
	if !opts.CreatedBefore.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, opts.CreatedBefore)
	}
	if opts.MinImportance > 0 {
		where = append(where, "importance >= ?")
		args = append(args, opts.MinImportance)
	}
	for _, tag := range opts.Tags {
		where = append(where, "tags LIKE ?")
		args = append(args, "%\""+tag+"\"%")
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM memories %s", whereClause)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: list count: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM memories %s ORDER BY %s %s LIMIT ? OFFSET ?",
		selectMemoryColumns, whereClause, opts.SortBy, strings.ToUpper(opts.SortOrder))
	queryArgs := append(append([]interface{}{}, args...), opts.Limit, opts.Offset())

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []types.Memory
	for rows.Next() {
		m, err := scanMemoryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list scan: %w", err)
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list rows: %w", err)
	}

	return &storage.PaginatedResult[types.Memory]{
		Items:    items,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(items) < total,
	}, nil
}

// Update applies a partial update. Changing Content clears the stored
// embedding (the caller recomputes and stores it separately) and
// recomputes content_hash.
func (s *MemoryStore) Update(ctx context.Context, id string, input types.UpdateMemoryInput) (*types.Memory, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Content != nil {
		existing.Content = *input.Content
		existing.ContentHash = contentHash(*input.Content)
		existing.Embedding = nil
	}
	if input.Importance != nil {
		existing.Importance = *input.Importance
	}
	if input.Tags != nil {
		existing.Tags = input.Tags
	}
	if input.Metadata != nil {
		if existing.Metadata == nil {
			existing.Metadata = make(map[string]interface{}, len(input.Metadata))
		}
		for k, v := range input.Metadata {
			existing.Metadata[k] = v
		}
	}
	existing.UpdatedAt = time.Now()

	metadataJSON, err := marshalOrNil(existing.Metadata)
	if err != nil {
		return nil, fmt.Errorf("sqlite: marshal metadata: %w", err)
	}
	tagsJSON, err := marshalOrNil(existing.Tags)
	if err != nil {
		return nil, fmt.Errorf("sqlite: marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE memories SET content = ?, content_hash = ?, embedding = ?, importance = ?,
			metadata = ?, tags = ?, updated_at = ?
		WHERE id = ?`,
		existing.Content, existing.ContentHash, encodeEmbedding(existing.Embedding), existing.Importance,
		nullableBytes(metadataJSON), nullableBytes(tagsJSON), existing.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: update memory: %w", err)
	}

	return existing, nil
}

// Delete soft-deletes a memory (is_active = false).
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("sqlite: delete memory: %w", err)
	}
	return requireRowAffected(res)
}

// Restore un-deletes a soft-deleted memory.
func (s *MemoryStore) Restore(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET is_active = 1, updated_at = ? WHERE id = ? AND is_active = 0`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("sqlite: restore memory: %w", err)
	}
	return requireRowAffected(res)
}

// Purge permanently removes memories inactive for at least olderThanDays,
// shielding any memory still referenced by an active memory's parent_id or
// superseded_by — an evolution-chain ancestor stays recoverable as long as
// something live still points at it.
func (s *MemoryStore) Purge(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM memories
		WHERE is_active = 0
		  AND updated_at < ?
		  AND id NOT IN (
		      SELECT parent_id FROM memories WHERE parent_id IS NOT NULL AND is_active = 1
		      UNION
		      SELECT superseded_by FROM memories WHERE superseded_by IS NOT NULL AND is_active = 1
		  )`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge rows affected: %w", err)
	}
	return int(affected), nil
}

// GetEvolutionChain returns the full supersede history for a memory, oldest
// to newest, walking parent_id backward and superseded_by forward, capped
// at 50 versions with a cycle guard.
func (s *MemoryStore) GetEvolutionChain(ctx context.Context, memoryID string) ([]*types.Memory, error) {
	if memoryID == "" {
		return nil, fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	const maxChain = 50

	current, err := s.GetIncludingInactive(ctx, memoryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: GetEvolutionChain: %w", err)
	}

	chain := []*types.Memory{current}
	visited := map[string]bool{current.ID: true}

	node := current
	for len(chain) < maxChain {
		prevID := node.ParentID
		if prevID == "" {
			_ = s.db.QueryRowContext(ctx, `SELECT id FROM memories WHERE superseded_by = ? LIMIT 1`, node.ID).Scan(&prevID)
		}
		if prevID == "" || visited[prevID] {
			break
		}
		parent, err := s.GetIncludingInactive(ctx, prevID)
		if err != nil {
			break
		}
		visited[parent.ID] = true
		chain = append([]*types.Memory{parent}, chain...)
		node = parent
	}

	tip := chain[len(chain)-1]
	for len(chain) < maxChain {
		nextID := tip.SupersededBy
		if nextID == "" {
			_ = s.db.QueryRowContext(ctx, `SELECT id FROM memories WHERE parent_id = ? LIMIT 1`, tip.ID).Scan(&nextID)
		}
		if nextID == "" || visited[nextID] {
			break
		}
		next, err := s.GetIncludingInactive(ctx, nextID)
		if err != nil {
			break
		}
		visited[nextID] = true
		chain = append(chain, next)
		tip = next
	}

	return chain, nil
}

// RecordAccess appends an access-log entry and atomically bumps access_count
// and last_accessed_at, in a transaction so the counter and the log are
// never observed out of sync.
func (s *MemoryStore) RecordAccess(ctx context.Context, id string, query string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: RecordAccess begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("sqlite: RecordAccess update: %w", err)
	}
	if err := requireRowAffected(res); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO access_log (id, memory_id, query, created_at) VALUES (?, ?, ?, ?)`,
		idgen.New("acc"), id, nullableString(query), now)
	if err != nil {
		return fmt.Errorf("sqlite: RecordAccess log: %w", err)
	}

	return tx.Commit()
}

// IncrementUseful atomically increments useful_count.
func (s *MemoryStore) IncrementUseful(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET useful_count = useful_count + 1, updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("sqlite: IncrementUseful: %w", err)
	}
	return requireRowAffected(res)
}

// SetImportance sets importance directly; used by the intelligence jobs.
func (s *MemoryStore) SetImportance(ctx context.Context, id string, importance float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET importance = ?, updated_at = ? WHERE id = ?`, importance, time.Now(), id)
	if err != nil {
		return fmt.Errorf("sqlite: SetImportance: %w", err)
	}
	return requireRowAffected(res)
}

// SetEmbedding persists a computed embedding vector, called by the engine
// pipeline once the embedding provider returns.
func (s *MemoryStore) SetEmbedding(ctx context.Context, id string, vec []float32) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET embedding = ?, updated_at = ? WHERE id = ?`, encodeEmbedding(vec), time.Now(), id)
	if err != nil {
		return fmt.Errorf("sqlite: SetEmbedding: %w", err)
	}
	return requireRowAffected(res)
}

// Supersede marks oldID inactive with superseded_by = newID, used by
// semantic dedup (C3) and consolidation (C6).
func (s *MemoryStore) Supersede(ctx context.Context, oldID, newID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET is_active = 0, superseded_by = ?, updated_at = ? WHERE id = ? AND is_active = 1`,
		newID, time.Now(), oldID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: supersede: %w", err)
	}
	return requireRowAffected(res)
}

// Children returns the chunk children of a parent memory, ordered by
// chunk_index ascending. Children created by the engine's chunking step
// carry no chunk_index, so their relative order is not defined.
func (s *MemoryStore) Children(ctx context.Context, parentID string) ([]*types.Memory, error) {
	query := fmt.Sprintf(`SELECT %s FROM memories WHERE parent_id = ? ORDER BY chunk_index ASC`, selectMemoryColumns)
	rows, err := s.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: children: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Memory
	for rows.Next() {
		m, err := scanMemoryRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteChildren hard-deletes every chunk child of parentID, used to
// dechunk a parent whose content has been edited back below the chunking
// threshold.
func (s *MemoryStore) DeleteChildren(ctx context.Context, parentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE parent_id = ?`, parentID)
	if err != nil {
		return fmt.Errorf("sqlite: delete children: %w", err)
	}
	return nil
}

// CountActive returns the number of active memories.
func (s *MemoryStore) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE is_active = 1`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: CountActive: %w", err)
	}
	return count, nil
}

// Close checkpoints the WAL and releases the connection.
func (s *MemoryStore) Close() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Printf("sqlite: wal checkpoint on close failed: %v", err)
	}
	return s.db.Close()
}

func requireRowAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum)
}

func marshalOrNil(v interface{}) ([]byte, error) {
	switch value := v.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		if len(value) == 0 {
			return nil, nil
		}
	case []string:
		if len(value) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullableBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// dbPathFromDSN extracts the filesystem path from a SQLite DSN. Handles bare
// paths and file: URIs. Returns empty string for in-memory databases.
func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}

	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" || path == "" {
			return ""
		}
		return path
	}

	return dsn
}

// isRecoverableWALError returns true if the error matches patterns caused by
// stale WAL files left behind after a crash.
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") || strings.Contains(msg, "database is locked")
}

// isWALStale checks whether -shm/-wal files exist for the given database
// path AND no other process currently holds them open (via lsof). Returns
// false if lsof is unavailable (conservative: no deletion).
func isWALStale(dbPath string) bool {
	shmPath := dbPath + "-shm"
	walPath := dbPath + "-wal"

	if !fileExists(shmPath) && !fileExists(walPath) {
		return false
	}

	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		return false
	}

	cmd := exec.Command(lsofPath, "-t", dbPath, shmPath, walPath)
	output, err := cmd.Output()
	if err != nil {
		return true
	}

	return strings.TrimSpace(string(output)) == ""
}

// removeStaleWAL removes -shm and -wal files for the given database path.
func removeStaleWAL(dbPath string) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("sqlite: failed to remove stale %s: %v", path, err)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
