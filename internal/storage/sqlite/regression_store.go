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

// RegressionStore implements storage.RegressionStore using SQLite, backing
// the retrieval-regression job (spec C7).
type RegressionStore struct {
	db *sql.DB
}

// NewRegressionStore wraps an existing connection.
func NewRegressionStore(db *sql.DB) *RegressionStore {
	return &RegressionStore{db: db}
}

// GetBaseline returns the stored baseline for queryID, or ErrNotFound if one
// has never been saved.
func (s *RegressionStore) GetBaseline(ctx context.Context, queryID string) (*types.RegressionBaseline, error) {
	var b types.RegressionBaseline
	var idsJSON string
	var initialized int

	err := s.db.QueryRowContext(ctx, `SELECT query_id, ids, initialized, updated_at FROM regression_baselines WHERE query_id = ?`, queryID).
		Scan(&b.QueryID, &idsJSON, &initialized, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get baseline: %w", err)
	}
	b.Initialized = initialized != 0
	if err := json.Unmarshal([]byte(idsJSON), &b.IDs); err != nil {
		return nil, fmt.Errorf("unmarshal baseline ids: %w", err)
	}
	return &b, nil
}

// SaveBaseline upserts the baseline for baseline.QueryID.
func (s *RegressionStore) SaveBaseline(ctx context.Context, baseline *types.RegressionBaseline) error {
	idsJSON, err := json.Marshal(baseline.IDs)
	if err != nil {
		return fmt.Errorf("sqlite: marshal baseline ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO regression_baselines (query_id, ids, initialized, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(query_id) DO UPDATE SET ids = excluded.ids, initialized = excluded.initialized, updated_at = excluded.updated_at`,
		baseline.QueryID, string(idsJSON), boolToInt(baseline.Initialized), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save baseline: %w", err)
	}
	return nil
}

// RecordRun persists one evaluation of a golden query against its baseline.
func (s *RegressionStore) RecordRun(ctx context.Context, run *types.RegressionRun) error {
	idsJSON, err := json.Marshal(run.CurrentIDs)
	if err != nil {
		return fmt.Errorf("sqlite: marshal run ids: %w", err)
	}

	id := run.ID
	if id == "" {
		id = idgen.New("rrun")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO regression_runs (id, run_id, query_id, current_ids, overlap, exact_order, avg_rank_shift, alert, initialized, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, run.RunID, run.QueryID, string(idsJSON), run.Overlap, boolToInt(run.ExactOrder),
		run.AvgRankShift, boolToInt(run.Alert), boolToInt(run.Initialized), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: record run: %w", err)
	}
	return nil
}

// ListRuns returns all per-query runs for a given run_id (one scheduler
// invocation evaluates every golden query under the same run_id).
func (s *RegressionStore) ListRuns(ctx context.Context, runID string) ([]*types.RegressionRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, query_id, current_ids, overlap, exact_order, avg_rank_shift, alert, initialized, created_at
		FROM regression_runs WHERE run_id = ? ORDER BY created_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.RegressionRun
	for rows.Next() {
		var r types.RegressionRun
		var idsJSON string
		var exactOrder, alert, initialized int
		if err := rows.Scan(&r.ID, &r.RunID, &r.QueryID, &idsJSON, &r.Overlap, &exactOrder, &r.AvgRankShift, &alert, &initialized, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: list runs scan: %w", err)
		}
		r.ExactOrder = exactOrder != 0
		r.Alert = alert != 0
		r.Initialized = initialized != 0
		if err := json.Unmarshal([]byte(idsJSON), &r.CurrentIDs); err != nil {
			return nil, fmt.Errorf("unmarshal run ids: %w", err)
		}
		out = append(out, &r)
	}
	return out, nil
}
