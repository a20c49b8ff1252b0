// Package settings manages the flat, DB-resident key-value configuration
// table described by spec.md's Settings & schema substrate (C1). Unlike
// internal/config's static, env-first process settings, every value here
// lives in the settings table and is parsed fresh on every read — it is
// never cached across mutations, so a concurrent set is always visible to
// the next get.
package settings

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/scrypster/exocortex/pkg/types"
)

// Store is a typed KV accessor over the settings table.
type Store struct {
	db *sql.DB
}

// New wraps an already-open database handle. Bootstrap must be called once
// before Get/Set are used against a fresh file.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Bootstrap inserts every recognized default with insert-if-absent
// semantics, so existing values (set by the user or a prior run) are never
// overwritten.
func (s *Store) Bootstrap(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settings: bootstrap begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("settings: bootstrap prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, d := range types.SettingDefaults {
		if _, err := stmt.ExecContext(ctx, d.Key, d.DefaultValue); err != nil {
			return fmt.Errorf("settings: bootstrap insert %s: %w", d.Key, err)
		}
	}

	return tx.Commit()
}

// Get returns the raw string value for key. If the key has never been set
// and is not a recognized default, ok is false.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		if def, ok := types.DefaultValueFor(key); ok {
			return def, true, nil
		}
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settings: get %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key to value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	if err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	return nil
}

// All returns every setting currently in the table, including any defaults
// that have not yet been materialized by Bootstrap.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(types.SettingDefaults))
	for _, d := range types.SettingDefaults {
		out[d.Key] = d.DefaultValue
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("settings: all: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("settings: all scan: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// GetBool parses key as a boolean, defaulting to def on any error.
func (s *Store) GetBool(ctx context.Context, key string, def bool) bool {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// GetFloat parses key as a float64, defaulting to def on any error.
func (s *Store) GetFloat(ctx context.Context, key string, def float64) float64 {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

// GetInt parses key as an int, defaulting to def on any error.
func (s *Store) GetInt(ctx context.Context, key string, def int) int {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}

// GetStringSlice parses key as a comma-separated list, trimming whitespace
// and dropping empty entries.
func (s *Store) GetStringSlice(ctx context.Context, key string) []string {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
