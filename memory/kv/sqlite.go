// Package kv provides the durable key-value backend used for trace,
// penalty, and feedback records, plus an in-process read cache decorator.
package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements memory.KeyValue on a single sqlite table keyed by
// (scope, tenant, key). Writes are upserts; records are never deleted by
// the agent core.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and prepares the
// schema. Use ":memory:" for an ephemeral store in tests.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS records (
			scope_id   TEXT NOT NULL,
			tenant_id  TEXT NOT NULL,
			record_key TEXT NOT NULL,
			value      BLOB NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (scope_id, tenant_id, record_key)
		);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Set writes value under (scope, tenant, key), replacing any prior value.
func (s *SQLiteStore) Set(ctx context.Context, scopeID, tenantID, key string, value []byte) error {
	query := `
		INSERT INTO records (scope_id, tenant_id, record_key, value, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (scope_id, tenant_id, record_key)
		DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, scopeID, tenantID, key, value); err != nil {
		return fmt.Errorf("set %s/%s: %w", scopeID, key, err)
	}
	return nil
}

// Get reads the value under (scope, tenant, key).
func (s *SQLiteStore) Get(ctx context.Context, scopeID, tenantID, key string) ([]byte, bool, error) {
	query := `
		SELECT value FROM records
		WHERE scope_id = ? AND tenant_id = ? AND record_key = ?
	`
	var value []byte
	err := s.db.QueryRowContext(ctx, query, scopeID, tenantID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", scopeID, key, err)
	}
	return value, true, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
