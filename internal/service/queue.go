// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaar Labs

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bazaarlabs/go-market-sync/internal/adapter"
	"github.com/bazaarlabs/go-market-sync/internal/logger"
	"github.com/bazaarlabs/go-market-sync/internal/store"
	"github.com/bazaarlabs/go-market-sync/internal/utils"
	"github.com/bazaarlabs/go-market-sync/models"
)

type offlineQueue struct {
	queue      store.QueueRepository
	uuid       *utils.UUIDGenerator
	logger     *logger.Logger
	maxRetries int
}

// NewOfflineQueue returns the durable FIFO of mutations deferred while the
// backend was unreachable.
func NewOfflineQueue(queue store.QueueRepository, maxRetries int, log *logger.Logger) OfflineQueue {
	return &offlineQueue{
		queue:      queue,
		uuid:       utils.NewUUIDGenerator(),
		logger:     log.GetChildLogger(),
		maxRetries: maxRetries,
	}
}

func (q *offlineQueue) Enqueue(ctx context.Context, entityType, entityID string, op models.Operation, payload json.RawMessage) (models.QueuedOperation, error) {
	if entityType == "" || entityID == "" {
		return models.QueuedOperation{}, fmt.Errorf("%w: entity type and id are required", ErrInvalidDataProvided)
	}

	record := models.QueuedOperation{
		ID:         q.uuid.Generate(),
		EntityType: entityType,
		EntityID:   entityID,
		Operation:  op,
		Payload:    payload,
		Timestamp:  time.Now(),
		Status:     models.QueueStatusPending,
	}

	if err := q.queue.Enqueue(ctx, record); err != nil {
		return models.QueuedOperation{}, fmt.Errorf("enqueue %s %s/%s: %w", op, entityType, entityID, err)
	}

	q.logger.Debug().
		Str("func", "Enqueue").
		Str("operation", string(op)).
		Str("entity", entityType+"/"+entityID).
		Msg("operation queued for later delivery")

	return record, nil
}

func (q *offlineQueue) Pending(ctx context.Context) ([]models.QueuedOperation, error) {
	ops, err := q.queue.PendingOperations(ctx, q.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("list pending operations: %w", err)
	}

	return ops, nil
}

func (q *offlineQueue) PendingCount(ctx context.Context) (int, error) {
	count, err := q.queue.CountByStatus(ctx, models.QueueStatusPending)
	if err != nil {
		return 0, fmt.Errorf("count pending operations: %w", err)
	}

	failed, err := q.queue.CountByStatus(ctx, models.QueueStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("count failed operations: %w", err)
	}

	return count + failed, nil
}

// Flush drains the queue through executor in timestamp order. Failures are
// isolated per operation; only a cancelled context stops the loop early.
func (q *offlineQueue) Flush(ctx context.Context, executor QueueExecutor) (FlushResult, error) {
	log := q.logger.With().Str("func", "Flush").Logger()

	ops, err := q.queue.PendingOperations(ctx, q.maxRetries)
	if err != nil {
		return FlushResult{}, fmt.Errorf("load queue for flush: %w", err)
	}

	var result FlushResult
	for _, op := range ops {
		if err = ctx.Err(); err != nil {
			return result, err
		}

		if err = q.queue.MarkSending(ctx, op.ID); err != nil {
			log.Error().Err(err).Str("op_id", op.ID).Msg("cannot mark operation sending")
			result.Failed++
			continue
		}

		if execErr := executor(ctx, op); execErr != nil {
			log.Warn().Err(execErr).
				Str("op_id", op.ID).
				Str("entity", op.EntityType+"/"+op.EntityID).
				Int("retry_count", op.RetryCount).
				Msg("queued operation failed")

			if err = q.queue.MarkFailed(ctx, op.ID, q.maxRetries); err != nil {
				log.Error().Err(err).Str("op_id", op.ID).Msg("cannot record operation failure")
			}
			if op.RetryCount+1 >= q.maxRetries {
				result.Dead++
			} else {
				result.Failed++
			}
			continue
		}

		if err = q.queue.MarkSent(ctx, op.ID); err != nil {
			log.Error().Err(err).Str("op_id", op.ID).Msg("cannot remove delivered operation")
		}
		result.Sent++
	}

	if result.Sent+result.Failed+result.Dead > 0 {
		log.Info().
			Int("sent", result.Sent).
			Int("failed", result.Failed).
			Int("dead", result.Dead).
			Msg("offline queue flushed")
	}

	return result, nil
}

// BackendExecutor adapts a RemoteBackend into the QueueExecutor a flush
// expects, dispatching each queued operation to the matching backend call.
func BackendExecutor(backend adapter.RemoteBackend) QueueExecutor {
	return func(ctx context.Context, op models.QueuedOperation) error {
		entity := models.Entity{
			EntityType: op.EntityType,
			ID:         op.EntityID,
			Payload:    op.Payload,
			UpdatedAt:  op.Timestamp,
		}

		switch op.Operation {
		case models.OperationCreate:
			_, err := backend.Insert(ctx, entity)
			return err
		case models.OperationDelete:
			return backend.Delete(ctx, op.EntityType, op.EntityID, 0)
		case models.OperationUpdate, models.OperationFavorite, models.OperationUnfavorite:
			_, err := backend.Push(ctx, entity)
			return err
		default:
			return fmt.Errorf("%w: unknown queued operation %q", ErrInvalidDataProvided, op.Operation)
		}
	}
}
