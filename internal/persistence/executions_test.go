package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(sqlx.NewDb(db, "postgres"), zap.NewNop()), mock
}

func TestRecordExecution(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectExec(`INSERT INTO tool_executions`).
		WithArgs("id-1", "jupiter_swap", "jupiter", "d41d8cd98f00b204e9800998ecf8427e", true, "", int64(42)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.RecordExecution(context.Background(), ExecutionRecord{
		ActionID:     "id-1",
		ActionName:   "jupiter_swap",
		Provider:     "jupiter",
		ParamsDigest: "d41d8cd98f00b204e9800998ecf8427e",
		Success:      true,
		DurationMs:   42,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordExecutionFailureRow(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectExec(`INSERT INTO tool_executions`).
		WithArgs("id-2", "jupiter_swap", "jupiter", "", false, "slippage exceeded", int64(7)).
		WillReturnResult(sqlmock.NewResult(2, 1))

	err := store.RecordExecution(context.Background(), ExecutionRecord{
		ActionID:   "id-2",
		ActionName: "jupiter_swap",
		Provider:   "jupiter",
		Success:    false,
		Error:      "slippage exceeded",
		DurationMs: 7,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentExecutions(t *testing.T) {
	store, mock := mockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "action_id", "action_name", "provider", "params_digest", "success", "error", "duration_ms", "created_at",
	}).
		AddRow(int64(2), "id-2", "jupiter_swap", "jupiter", "abc123", false, "boom", int64(7), now).
		AddRow(int64(1), "id-1", "pyth_fetch_price", "pyth", "", true, "", int64(3), now.Add(-time.Minute))

	mock.ExpectQuery(`(?s)SELECT .* FROM tool_executions`).
		WithArgs(10).
		WillReturnRows(rows)

	recs, err := store.RecentExecutions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "jupiter_swap", recs[0].ActionName)
	assert.False(t, recs[0].Success)
	assert.Equal(t, "pyth", recs[1].Provider)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentExecutionsDefaultLimit(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM tool_executions`).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.RecentExecutions(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS tool_executions`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
