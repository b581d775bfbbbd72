package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/openbuilders/synapse-batch/internal/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var insertBatchPattern = regexp.QuoteMeta("INSERT INTO batch")

func testBatch() types.Batch {
	return types.Batch{
		UUID:   uuid.New(),
		Node:   types.Node{ID: "node-1", UserID: "user-1", Type: types.NodeDepositUS},
		JobIDs: []string{"job-a", "job-b"},
	}
}

func testResult() *types.BatchResult {
	record := func(id string) types.TransactionRecord {
		return types.TransactionRecord{
			ID:           id,
			Amount:       decimal.NewFromInt(5),
			Currency:     "USD",
			To:           types.Endpoint{ID: "to", Type: "ACH-US"},
			RecentStatus: types.TransactionStatus{Status: "CREATED"},
			Raw:          json.RawMessage(`{"_id": "` + id + `"}`),
		}
	}

	return &types.BatchResult{
		ErrorCode:  "0",
		HTTPCode:   "200",
		Success:    true,
		PageCount:  1,
		TransCount: 2,
		Trans:      []types.TransactionRecord{record("A"), record("B")},
	}
}

func TestPostgres_PersistBatchResult(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := New(mockPool, time.Second)
	batch := testBatch()

	mockPool.ExpectBegin()
	mockPool.ExpectExec(insertBatchPattern).
		WithArgs(batch.UUID, "node-1", "user-1", "success", "0", "200", 2, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCopyFrom(pgx.Identifier{"batch_transaction"}, transactionColumns).
		WillReturnResult(2)
	mockPool.ExpectCommit()

	err = repo.PersistBatchResult(context.Background(), batch, testResult())
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgres_PersistBatchResult_Unsuccessful(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := New(mockPool, time.Second)
	batch := testBatch()
	result := &types.BatchResult{ErrorCode: "410", HTTPCode: "202", Success: false}

	mockPool.ExpectBegin()
	mockPool.ExpectExec(insertBatchPattern).
		WithArgs(batch.UUID, "node-1", "user-1", "error", "410", "202", 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()

	err = repo.PersistBatchResult(context.Background(), batch, result)
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgres_PersistBatchResult_Duplicate(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := New(mockPool, time.Second)

	mockPool.ExpectBegin()
	mockPool.ExpectExec(insertBatchPattern).
		WillReturnError(&pgconn.PgError{Code: DuplicateKeyValue})
	mockPool.ExpectRollback()

	err = repo.PersistBatchResult(context.Background(), testBatch(), testResult())
	assert.ErrorIs(t, err, ErrDuplicateKeyValue)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgres_PersistBatchResult_CopyFails(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := New(mockPool, time.Second)

	mockPool.ExpectBegin()
	mockPool.ExpectExec(insertBatchPattern).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCopyFrom(pgx.Identifier{"batch_transaction"}, transactionColumns).
		WillReturnError(errors.New("connection reset"))
	mockPool.ExpectRollback()

	err = repo.PersistBatchResult(context.Background(), testBatch(), testResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy transactions")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgres_PersistBatchFailure(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := New(mockPool, time.Second)
	batch := testBatch()

	mockPool.ExpectExec(insertBatchPattern).
		WithArgs(batch.UUID, "node-1", "user-1", "error", pgxmock.AnyArg(),
			pgxmock.AnyArg(), 0, "invalid node type: unverified").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.PersistBatchFailure(context.Background(), batch,
		errors.New("invalid node type: unverified"))
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgres_Ping(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := New(mockPool, 50*time.Millisecond)

	mockPool.ExpectPing().WillReturnError(errors.New("not yet"))
	mockPool.ExpectPing()

	require.NoError(t, repo.Ping(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
