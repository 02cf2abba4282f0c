// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaar Labs

package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bazaarlabs/go-market-sync/internal/logger"
	"github.com/bazaarlabs/go-market-sync/internal/mock"
	"github.com/bazaarlabs/go-market-sync/models"
)

func newTestQueue(t *testing.T, ctrl *gomock.Controller) (OfflineQueue, *mock.MockQueueRepository) {
	t.Helper()
	repo := mock.NewMockQueueRepository(ctrl)
	return NewOfflineQueue(repo, testMaxRetries, logger.Nop()), repo
}

func TestEnqueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	queue, repo := newTestQueue(t, ctrl)
	ctx := context.Background()

	var stored models.QueuedOperation
	repo.EXPECT().Enqueue(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, op models.QueuedOperation) error {
		stored = op
		return nil
	})

	record, err := queue.Enqueue(ctx, models.EntityTypeListing, "42", models.OperationUpdate, json.RawMessage(`{"price":90}`))
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, models.QueueStatusPending, record.Status)
	assert.Zero(t, record.RetryCount)
	assert.False(t, record.Timestamp.IsZero())
	assert.Equal(t, stored.ID, record.ID)
}

func TestEnqueue_Invalid(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	queue, _ := newTestQueue(t, ctrl)

	_, err := queue.Enqueue(context.Background(), "", "42", models.OperationUpdate, nil)
	assert.ErrorIs(t, err, ErrInvalidDataProvided)
}

func TestPendingCount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	queue, repo := newTestQueue(t, ctrl)
	ctx := context.Background()

	repo.EXPECT().CountByStatus(ctx, models.QueueStatusPending).Return(3, nil)
	repo.EXPECT().CountByStatus(ctx, models.QueueStatusFailed).Return(2, nil)

	n, err := queue.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func queuedOp(id string, ts time.Time, retryCount int) models.QueuedOperation {
	return models.QueuedOperation{
		ID:         id,
		EntityType: models.EntityTypeListing,
		EntityID:   "e-" + id,
		Operation:  models.OperationUpdate,
		Payload:    json.RawMessage(`{}`),
		Timestamp:  ts,
		RetryCount: retryCount,
		Status:     models.QueueStatusPending,
	}
}

func TestFlush_AllDelivered(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	queue, repo := newTestQueue(t, ctrl)
	ctx := context.Background()

	now := time.Now()
	ops := []models.QueuedOperation{queuedOp("a", now, 0), queuedOp("b", now.Add(time.Second), 0)}
	repo.EXPECT().PendingOperations(ctx, testMaxRetries).Return(ops, nil)

	var executed []string
	for _, op := range ops {
		repo.EXPECT().MarkSending(ctx, op.ID).Return(nil)
		repo.EXPECT().MarkSent(ctx, op.ID).Return(nil)
	}

	result, err := queue.Flush(ctx, func(_ context.Context, op models.QueuedOperation) error {
		executed = append(executed, op.ID)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, FlushResult{Sent: 2}, result)
	assert.Equal(t, []string{"a", "b"}, executed, "flush preserves timestamp order")
}

func TestFlush_FailureIsolated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	queue, repo := newTestQueue(t, ctrl)
	ctx := context.Background()

	now := time.Now()
	ops := []models.QueuedOperation{queuedOp("a", now, 0), queuedOp("b", now.Add(time.Second), 0), queuedOp("c", now.Add(2*time.Second), 0)}
	repo.EXPECT().PendingOperations(ctx, testMaxRetries).Return(ops, nil)

	repo.EXPECT().MarkSending(ctx, "a").Return(nil)
	repo.EXPECT().MarkSent(ctx, "a").Return(nil)
	repo.EXPECT().MarkSending(ctx, "b").Return(nil)
	repo.EXPECT().MarkFailed(ctx, "b", testMaxRetries).Return(nil)
	repo.EXPECT().MarkSending(ctx, "c").Return(nil)
	repo.EXPECT().MarkSent(ctx, "c").Return(nil)

	result, err := queue.Flush(ctx, func(_ context.Context, op models.QueuedOperation) error {
		if op.ID == "b" {
			return errors.New("backend said no")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, FlushResult{Sent: 2, Failed: 1}, result)
}

func TestFlush_DeadLetterOnLastRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	queue, repo := newTestQueue(t, ctrl)
	ctx := context.Background()

	exhausted := queuedOp("x", time.Now(), testMaxRetries-1)
	repo.EXPECT().PendingOperations(ctx, testMaxRetries).Return([]models.QueuedOperation{exhausted}, nil)
	repo.EXPECT().MarkSending(ctx, "x").Return(nil)
	repo.EXPECT().MarkFailed(ctx, "x", testMaxRetries).Return(nil)

	result, err := queue.Flush(ctx, func(_ context.Context, _ models.QueuedOperation) error {
		return errors.New("still failing")
	})
	require.NoError(t, err)

	assert.Equal(t, FlushResult{Dead: 1}, result)
}

func TestFlush_ContextCancelledStopsEarly(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	queue, repo := newTestQueue(t, ctrl)
	ctx, cancel := context.WithCancel(context.Background())

	now := time.Now()
	ops := []models.QueuedOperation{queuedOp("a", now, 0), queuedOp("b", now.Add(time.Second), 0)}
	repo.EXPECT().PendingOperations(gomock.Any(), testMaxRetries).Return(ops, nil)
	repo.EXPECT().MarkSending(gomock.Any(), "a").Return(nil)
	repo.EXPECT().MarkSent(gomock.Any(), "a").Return(nil)

	result, err := queue.Flush(ctx, func(_ context.Context, op models.QueuedOperation) error {
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, FlushResult{Sent: 1}, result)
}

func TestBackendExecutor_Dispatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := mock.NewMockRemoteBackend(ctrl)
	exec := BackendExecutor(backend)
	ctx := context.Background()

	backend.EXPECT().Insert(ctx, gomock.Any()).Return(models.Ack{Version: 1}, nil)
	require.NoError(t, exec(ctx, models.QueuedOperation{Operation: models.OperationCreate, EntityType: models.EntityTypeListing, EntityID: "1"}))

	backend.EXPECT().Push(ctx, gomock.Any()).Return(models.Ack{Version: 2}, nil)
	require.NoError(t, exec(ctx, models.QueuedOperation{Operation: models.OperationUpdate, EntityType: models.EntityTypeListing, EntityID: "1"}))

	backend.EXPECT().Delete(ctx, models.EntityTypeListing, "1", int64(0)).Return(nil)
	require.NoError(t, exec(ctx, models.QueuedOperation{Operation: models.OperationDelete, EntityType: models.EntityTypeListing, EntityID: "1"}))

	backend.EXPECT().Push(ctx, gomock.Any()).Return(models.Ack{}, nil)
	require.NoError(t, exec(ctx, models.QueuedOperation{Operation: models.OperationFavorite, EntityType: models.EntityTypeFavorite, EntityID: "1"}))

	err := exec(ctx, models.QueuedOperation{Operation: "teleport"})
	assert.ErrorIs(t, err, ErrInvalidDataProvided)
}
