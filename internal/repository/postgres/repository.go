package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/openbuilders/synapse-batch/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DuplicateKeyValue string = "23505"
)

var (
	ErrDuplicateKeyValue = errors.New("duplicate key value")
)

const insertBatchSQL = `INSERT INTO batch
	(uuid, node_id, user_id, status, error_code, http_code, trans_count, error)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

var transactionColumns = []string{
	"batch_uuid", "job_id", "position", "transaction_id", "amount",
	"currency", "to_type", "to_id", "status", "raw",
}

// PersistBatchResult stores the batch and its returned transactions, each
// linked to the job it was created from by position.
func (p *Postgres) PersistBatchResult(ctx context.Context, batch types.Batch,
	result *types.BatchResult) error {

	status := types.StatusSuccess
	if !result.Success {
		status = types.StatusError
	}

	tx, err := p.pg.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	_, err = tx.Exec(ctx, insertBatchSQL,
		batch.UUID, batch.Node.ID, batch.Node.UserID, string(status),
		result.ErrorCode, result.HTTPCode, result.TransCount, nil)
	if err != nil {
		_ = tx.Rollback(ctx)
		return mapError("insert batch", err)
	}

	rows := make([][]any, len(result.Trans))
	for i, record := range result.Trans {
		var jobID any
		if i < len(batch.JobIDs) {
			jobID = batch.JobIDs[i]
		}

		rows[i] = []any{
			batch.UUID, jobID, i, record.ID, record.Amount,
			record.Currency, record.To.Type, record.To.ID,
			record.RecentStatus.Status, []byte(record.Raw),
		}
	}

	if len(rows) > 0 {
		p.log.Debug("COPY", "batch", batch.UUID, "rows", len(rows))

		_, err = tx.CopyFrom(ctx, pgx.Identifier{"batch_transaction"},
			transactionColumns, pgx.CopyFromRows(rows))
		if err != nil {
			_ = tx.Rollback(ctx)
			return mapError("copy transactions", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch %s: %w", batch.UUID, err)
	}

	return nil
}

// PersistBatchFailure records a batch the API never accepted.
func (p *Postgres) PersistBatchFailure(ctx context.Context, batch types.Batch,
	cause error) error {

	_, err := p.pg.Exec(ctx, insertBatchSQL,
		batch.UUID, batch.Node.ID, batch.Node.UserID, string(types.StatusError),
		nil, nil, 0, cause.Error())
	if err != nil {
		return mapError("insert failed batch", err)
	}

	return nil
}

func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == DuplicateKeyValue {
		return ErrDuplicateKeyValue
	}

	return fmt.Errorf("couldn't %s: %w", op, err)
}
