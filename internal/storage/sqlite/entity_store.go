package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scrypster/exocortex/internal/idgen"
	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

// EntityStore implements storage.EntityStore using SQLite.
type EntityStore struct {
	db *sql.DB
}

// NewEntityStore wraps an existing connection (normally the same *sql.DB
// a MemoryStore opened) so entity writes share the single-writer discipline.
func NewEntityStore(db *sql.DB) *EntityStore {
	return &EntityStore{db: db}
}

// UpsertEntity creates an entity or returns the existing one matching name
// (case-insensitive) and type.
func (s *EntityStore) UpsertEntity(ctx context.Context, entity *types.Entity) (*types.Entity, error) {
	if entity == nil || entity.Name == "" || entity.Type == "" {
		return nil, fmt.Errorf("%w: entity name and type are required", storage.ErrInvalidInput)
	}

	if existing, err := s.FindEntityByName(ctx, entity.Name, entity.Type); err == nil {
		return existing, nil
	} else if err != storage.ErrNotFound {
		return nil, err
	}

	now := time.Now()
	id := idgen.New("ent")

	aliasesJSON, err := marshalOrNil(entity.Aliases)
	if err != nil {
		return nil, fmt.Errorf("sqlite: marshal aliases: %w", err)
	}
	metadataJSON, err := marshalOrNil(entity.Metadata)
	if err != nil {
		return nil, fmt.Errorf("sqlite: marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (id, name, type, aliases, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, entity.Name, string(entity.Type), nullableBytes(aliasesJSON), nullableBytes(metadataJSON), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: insert entity: %w", err)
	}

	entity.ID = id
	entity.CreatedAt = now
	entity.UpdatedAt = now
	return entity, nil
}

const selectEntityColumns = `id, name, type, aliases, metadata, created_at, updated_at`

func scanEntityRow(row interface{ Scan(...interface{}) error }) (*types.Entity, error) {
	var e types.Entity
	var entityType string
	var aliasesJSON, metadataJSON sql.NullString

	if err := row.Scan(&e.ID, &e.Name, &entityType, &aliasesJSON, &metadataJSON, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Type = types.EntityType(entityType)

	if aliasesJSON.Valid && aliasesJSON.String != "" {
		if err := json.Unmarshal([]byte(aliasesJSON.String), &e.Aliases); err != nil {
			return nil, fmt.Errorf("unmarshal aliases: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &e, nil
}

// GetEntity retrieves an entity by ID.
func (s *EntityStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectEntityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntityRow(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get entity: %w", err)
	}
	return e, nil
}

// FindEntityByName looks up an entity case-insensitively by name and type.
func (s *EntityStore) FindEntityByName(ctx context.Context, name string, entityType types.EntityType) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectEntityColumns+` FROM entities WHERE LOWER(name) = LOWER(?) AND type = ?`, name, string(entityType))
	e, err := scanEntityRow(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find entity: %w", err)
	}
	return e, nil
}

// ListEntities lists entities with pagination, newest first. It does not
// filter by entity type; opts.ContentType is ignored.
func (s *EntityStore) ListEntities(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Entity], error) {
	opts.Normalize()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: list entities count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectEntityColumns+` FROM entities ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("sqlite: list entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []types.Entity
	for rows.Next() {
		e, err := scanEntityRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list entities scan: %w", err)
		}
		items = append(items, *e)
	}

	return &storage.PaginatedResult[types.Entity]{
		Items: items, Total: total, Page: opts.Page, PageSize: opts.Limit,
		HasMore: opts.Offset()+len(items) < total,
	}, nil
}

// LinkMemoryEntity upserts a memory-entity association, keeping the higher
// relevance on conflict.
func (s *EntityStore) LinkMemoryEntity(ctx context.Context, memoryID, entityID string, relevance float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_entities (memory_id, entity_id, relevance, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(memory_id, entity_id) DO UPDATE SET relevance = MAX(relevance, excluded.relevance)`,
		memoryID, entityID, relevance, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: link memory entity: %w", err)
	}
	return nil
}

// GetMemoryEntities returns the entities linked to a memory.
func (s *EntityStore) GetMemoryEntities(ctx context.Context, memoryID string) ([]*types.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.name, e.type, e.aliases, e.metadata, e.created_at, e.updated_at
		FROM entities e
		JOIN memory_entities me ON me.entity_id = e.id
		WHERE me.memory_id = ?
		ORDER BY me.relevance DESC`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get memory entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Entity
	for rows.Next() {
		e, err := scanEntityRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: get memory entities scan: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// GetEntityMemories returns the ids of memories linked to an entity.
func (s *EntityStore) GetEntityMemories(ctx context.Context, entityID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT me.memory_id FROM memory_entities me
		JOIN memories m ON m.id = me.memory_id
		WHERE me.entity_id = ? AND m.is_active = 1
		ORDER BY me.relevance DESC`, entityID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get entity memories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: get entity memories scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CreateRelationship creates a labeled (source, target, label) triple.
// Duplicate triples are rejected silently (no-op).
func (s *EntityStore) CreateRelationship(ctx context.Context, rel *types.EntityRelationship) error {
	if rel == nil || rel.SourceID == "" || rel.TargetID == "" || rel.Relationship == "" {
		return fmt.Errorf("%w: source, target, and relationship are required", storage.ErrInvalidInput)
	}

	id := idgen.New("rel")
	now := time.Now()
	confidence := rel.Confidence
	if confidence == 0 {
		confidence = 1.0
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_relationships (id, source_id, target_id, relationship, confidence, memory_id, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, relationship) DO NOTHING`,
		id, rel.SourceID, rel.TargetID, rel.Relationship, confidence,
		nullableString(rel.MemoryID), nullableString(rel.Context), now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: create relationship: %w", err)
	}
	return nil
}

// GetRelationships returns relationships where entityID is either endpoint.
func (s *EntityStore) GetRelationships(ctx context.Context, entityID string) ([]*types.EntityRelationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, relationship, confidence, memory_id, context, created_at
		FROM entity_relationships WHERE source_id = ? OR target_id = ?`, entityID, entityID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get relationships: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.EntityRelationship
	for rows.Next() {
		var r types.EntityRelationship
		var memoryID, context sql.NullString
		if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Relationship, &r.Confidence, &memoryID, &context, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: get relationships scan: %w", err)
		}
		r.MemoryID = memoryID.String
		r.Context = context.String
		out = append(out, &r)
	}
	return out, nil
}
