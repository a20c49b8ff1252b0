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

// GoalStore implements storage.GoalStore using SQLite.
type GoalStore struct {
	db *sql.DB
}

// NewGoalStore wraps an existing connection.
func NewGoalStore(db *sql.DB) *GoalStore {
	return &GoalStore{db: db}
}

// CreateGoal inserts a new goal.
func (s *GoalStore) CreateGoal(ctx context.Context, goal *types.Goal) (*types.Goal, error) {
	if goal == nil || goal.Title == "" {
		return nil, fmt.Errorf("%w: goal title is required", storage.ErrInvalidInput)
	}

	now := time.Now()
	goal.ID = idgen.New("goal")
	if goal.Status == "" {
		goal.Status = types.GoalActive
	}
	if goal.Priority == "" {
		goal.Priority = types.PriorityMedium
	}
	goal.CreatedAt = now
	goal.UpdatedAt = now

	milestonesJSON, err := marshalOrNil(goal.Milestones)
	if err != nil {
		return nil, fmt.Errorf("sqlite: marshal milestones: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO goals (id, title, description, status, priority, deadline, milestones, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		goal.ID, goal.Title, nullableString(goal.Description), string(goal.Status), string(goal.Priority),
		nullableTime(goal.Deadline), nullableBytes(milestonesJSON), encodeEmbedding(goal.Embedding),
		goal.CreatedAt, goal.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: create goal: %w", err)
	}
	return goal, nil
}

const selectGoalColumns = `id, title, description, status, priority, deadline, milestones, embedding, created_at, updated_at, completed_at`

func scanGoalRow(row interface{ Scan(...interface{}) error }) (*types.Goal, error) {
	var g types.Goal
	var description sql.NullString
	var status, priority string
	var deadline, completedAt sql.NullTime
	var milestonesJSON sql.NullString
	var embeddingBlob []byte

	if err := row.Scan(&g.ID, &g.Title, &description, &status, &priority, &deadline, &milestonesJSON,
		&embeddingBlob, &g.CreatedAt, &g.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}

	g.Description = description.String
	g.Status = types.GoalStatus(status)
	g.Priority = types.GoalPriority(priority)
	if deadline.Valid {
		t := deadline.Time
		g.Deadline = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		g.CompletedAt = &t
	}
	if milestonesJSON.Valid && milestonesJSON.String != "" {
		if err := json.Unmarshal([]byte(milestonesJSON.String), &g.Milestones); err != nil {
			return nil, fmt.Errorf("unmarshal milestones: %w", err)
		}
	}
	embedding, err := decodeEmbedding(embeddingBlob)
	if err != nil {
		return nil, err
	}
	g.Embedding = embedding

	return &g, nil
}

// GetGoal retrieves a goal by ID.
func (s *GoalStore) GetGoal(ctx context.Context, id string) (*types.Goal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectGoalColumns+` FROM goals WHERE id = ?`, id)
	g, err := scanGoalRow(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get goal: %w", err)
	}
	return g, nil
}

// ListGoals lists goals, optionally filtered by status.
func (s *GoalStore) ListGoals(ctx context.Context, status types.GoalStatus, opts storage.ListOptions) (*storage.PaginatedResult[types.Goal], error) {
	opts.Normalize()

	where, args := "", []interface{}{}
	if status != "" {
		where = "WHERE status = ?"
		args = append(args, string(status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM goals %s", where), args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: list goals count: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM goals %s ORDER BY created_at DESC LIMIT ? OFFSET ?", selectGoalColumns, where)
	rows, err := s.db.QueryContext(ctx, query, append(append([]interface{}{}, args...), opts.Limit, opts.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list goals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []types.Goal
	for rows.Next() {
		g, err := scanGoalRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list goals scan: %w", err)
		}
		items = append(items, *g)
	}

	return &storage.PaginatedResult[types.Goal]{
		Items: items, Total: total, Page: opts.Page, PageSize: opts.Limit,
		HasMore: opts.Offset()+len(items) < total,
	}, nil
}

// UpdateGoal loads the goal, applies mutate, and persists the result.
func (s *GoalStore) UpdateGoal(ctx context.Context, id string, mutate func(*types.Goal)) (*types.Goal, error) {
	g, err := s.GetGoal(ctx, id)
	if err != nil {
		return nil, err
	}

	mutate(g)
	g.UpdatedAt = time.Now()

	milestonesJSON, err := marshalOrNil(g.Milestones)
	if err != nil {
		return nil, fmt.Errorf("sqlite: marshal milestones: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE goals SET title = ?, description = ?, status = ?, priority = ?, deadline = ?,
			milestones = ?, embedding = ?, updated_at = ?, completed_at = ?
		WHERE id = ?`,
		g.Title, nullableString(g.Description), string(g.Status), string(g.Priority),
		nullableTime(g.Deadline), nullableBytes(milestonesJSON), encodeEmbedding(g.Embedding),
		g.UpdatedAt, nullableTime(g.CompletedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: update goal: %w", err)
	}
	return g, nil
}

// DeleteGoal permanently removes a goal. Memories that weak-reference it via
// metadata.goal_id are left untouched (no cascade; the reference simply
// stops resolving).
func (s *GoalStore) DeleteGoal(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete goal: %w", err)
	}
	return requireRowAffected(res)
}

// LinkedMemoryIDs returns the ids of memories whose metadata.goal_id
// weak-references goalID. metadata is stored as a JSON blob, so this uses
// SQLite's json_extract against the metadata column.
func (s *GoalStore) LinkedMemoryIDs(ctx context.Context, goalID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM memories
		WHERE is_active = 1 AND json_extract(metadata, '$.goal_id') = ?
		ORDER BY created_at DESC`, goalID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: linked memory ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: linked memory ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
