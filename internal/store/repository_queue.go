package store

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/bazaarlabs/go-market-sync/internal/logger"
	"github.com/bazaarlabs/go-market-sync/models"
)

var operationColumns = []string{
	"id",
	"entity_type",
	"entity_id",
	"operation",
	"payload",
	"ts",
	"retry_count",
	"status",
}

type queueRepository struct {
	*DB
	logger *logger.Logger
}

// NewQueueRepository wires a QueueRepository onto the outbox database.
func NewQueueRepository(db *DB, logger *logger.Logger) QueueRepository {
	return &queueRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *queueRepository) degraded() bool {
	return r.DB == nil || r.DB.DB == nil || !r.DB.Healthy()
}

func (r *queueRepository) Enqueue(ctx context.Context, op models.QueuedOperation) error {
	if r.degraded() {
		return ErrStorageUnhealthy
	}

	if op.Status == "" {
		op.Status = models.QueueStatusPending
	}

	_, err := r.DB.ExecContext(ctx, enqueueOperation,
		op.ID,
		op.EntityType,
		op.EntityID,
		string(op.Operation),
		string(op.Payload),
		op.Timestamp,
		op.RetryCount,
		op.Status,
	)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "queueRepository.Enqueue").
			Str("id", op.ID).
			Str("entity_type", op.EntityType).
			Msg("failed to enqueue operation")
		return fmt.Errorf("failed to enqueue operation (id=%s): %w", op.ID, err)
	}

	return nil
}

func (r *queueRepository) PendingOperations(ctx context.Context, maxRetries int) ([]models.QueuedOperation, error) {
	if r.degraded() {
		return nil, nil
	}

	// "sending" rows are included so operations orphaned by a crash
	// mid-flush are retried instead of stuck forever.
	query, args, err := qb.Select(operationColumns...).
		From("operations").
		Where(squirrel.Eq{"status": []string{
			models.QueueStatusPending,
			models.QueueStatusSending,
			models.QueueStatusFailed,
		}}).
		Where(squirrel.Lt{"retry_count": maxRetries}).
		OrderBy("ts ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "queueRepository.PendingOperations").
			Msg("failed to query pending operations")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var ops []models.QueuedOperation
	for rows.Next() {
		var (
			op        models.QueuedOperation
			operation string
			payload   string
		)
		err = rows.Scan(
			&op.ID,
			&op.EntityType,
			&op.EntityID,
			&operation,
			&payload,
			&op.Timestamp,
			&op.RetryCount,
			&op.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		op.Operation = models.Operation(operation)
		op.Payload = []byte(payload)
		ops = append(ops, op)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return ops, nil
}

func (r *queueRepository) MarkSending(ctx context.Context, id string) error {
	return r.execStatus(ctx, "queueRepository.MarkSending", markOperationSending, id)
}

func (r *queueRepository) MarkSent(ctx context.Context, id string) error {
	return r.execStatus(ctx, "queueRepository.MarkSent", markOperationSent, id)
}

func (r *queueRepository) MarkFailed(ctx context.Context, id string, maxRetries int) error {
	return r.execStatus(ctx, "queueRepository.MarkFailed", markOperationFailed, maxRetries, id)
}

func (r *queueRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	if r.degraded() {
		return 0, nil
	}

	query, args, err := qb.Select("COUNT(*)").
		From("operations").
		Where(squirrel.Eq{"status": status}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var count int
	if err = r.DB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return count, nil
}

func (r *queueRepository) PurgeDead(ctx context.Context) (int64, error) {
	if r.degraded() {
		return 0, nil
	}

	res, err := r.DB.ExecContext(ctx, purgeDeadOperations)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "queueRepository.PurgeDead").
			Msg("failed to purge dead operations")
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	purged, _ := res.RowsAffected()
	return purged, nil
}

func (r *queueRepository) execStatus(ctx context.Context, caller, query string, args ...any) error {
	if r.degraded() {
		return ErrStorageUnhealthy
	}

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", caller).
			Msg("failed to update operation status")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrOperationNotFound
	}

	return nil
}
