package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// ExecutionRecord is one audited action invocation.
type ExecutionRecord struct {
	ID         int64     `db:"id" json:"id"`
	ActionID   string    `db:"action_id" json:"actionId"`
	ActionName string    `db:"action_name" json:"actionName"`
	Provider   string    `db:"provider" json:"provider"`
	// ParamsDigest is a hash of the validated parameters; raw values stay
	// out of the audit trail.
	ParamsDigest string    `db:"params_digest" json:"paramsDigest"`
	Success      bool      `db:"success" json:"success"`
	Error        string    `db:"error" json:"error,omitempty"`
	DurationMs   int64     `db:"duration_ms" json:"durationMs"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

const executionsSchema = `
CREATE TABLE IF NOT EXISTS tool_executions (
    id            BIGSERIAL PRIMARY KEY,
    action_id     TEXT NOT NULL,
    action_name   TEXT NOT NULL,
    provider      TEXT NOT NULL,
    params_digest TEXT NOT NULL DEFAULT '',
    success       BOOLEAN NOT NULL,
    error         TEXT NOT NULL DEFAULT '',
    duration_ms   BIGINT NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_tool_executions_action ON tool_executions(action_id);
CREATE INDEX IF NOT EXISTS idx_tool_executions_created ON tool_executions(created_at DESC);
`

// Store persists execution audit entries to Postgres.
type Store struct {
	db  *sqlx.DB
	log *zap.Logger
}

// New opens a Postgres connection and verifies it. An empty DSN is a
// configuration error; callers that want auditing off pass a nil store.
func New(dsn string, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an existing connection, mainly for tests.
func NewWithDB(db *sqlx.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, log: logger}
}

// EnsureSchema creates the executions table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, executionsSchema); err != nil {
		return fmt.Errorf("ensure executions schema: %w", err)
	}
	return nil
}

// RecordExecution inserts one audit row.
func (s *Store) RecordExecution(ctx context.Context, rec ExecutionRecord) error {
	const q = `
        INSERT INTO tool_executions (action_id, action_name, provider, params_digest, success, error, duration_ms)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.ExecContext(ctx, q,
		rec.ActionID, rec.ActionName, rec.Provider, rec.ParamsDigest, rec.Success, rec.Error, rec.DurationMs)
	if err != nil {
		return fmt.Errorf("insert execution record: %w", err)
	}
	return nil
}

// RecentExecutions returns the newest audit rows, most recent first.
func (s *Store) RecentExecutions(ctx context.Context, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
        SELECT id, action_id, action_name, provider, params_digest, success, error, duration_ms, created_at
        FROM tool_executions
        ORDER BY created_at DESC
        LIMIT $1`
	var out []ExecutionRecord
	if err := s.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, fmt.Errorf("query recent executions: %w", err)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
