// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaar Labs

package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarlabs/go-market-sync/internal/config"
	"github.com/bazaarlabs/go-market-sync/internal/logger"
	"github.com/bazaarlabs/go-market-sync/migrations"
	"github.com/bazaarlabs/go-market-sync/models"
)

const testMaxRetries = 3

func openOutboxDB(t *testing.T, dsn string) *DB {
	t.Helper()

	db, err := NewConnectSQLite(context.Background(), config.DB{DSN: dsn}, logger.Nop())
	require.NoError(t, err)
	require.True(t, db.Healthy())
	require.NoError(t, migrations.Migrate(db.DB, migrations.TargetOutbox))

	t.Cleanup(func() { db.Close() })
	return db
}

func testOperation(id string, ts time.Time) models.QueuedOperation {
	return models.QueuedOperation{
		ID:         id,
		EntityType: models.EntityTypeListing,
		EntityID:   "e-" + id,
		Operation:  models.OperationUpdate,
		Payload:    json.RawMessage(`{"price":90}`),
		Timestamp:  ts,
		Status:     models.QueueStatusPending,
	}
}

func TestQueueRepository_EnqueueAndPending_FIFO(t *testing.T) {
	db := openOutboxDB(t, filepath.Join(t.TempDir(), "outbox.db"))
	repo := NewQueueRepository(db, logger.Nop())
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	require.NoError(t, repo.Enqueue(ctx, testOperation("b", now.Add(time.Second))))
	require.NoError(t, repo.Enqueue(ctx, testOperation("a", now)))
	require.NoError(t, repo.Enqueue(ctx, testOperation("c", now.Add(2*time.Second))))

	ops, err := repo.PendingOperations(ctx, testMaxRetries)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, "a", ops[0].ID)
	assert.Equal(t, "b", ops[1].ID)
	assert.Equal(t, "c", ops[2].ID)

	assert.Equal(t, models.OperationUpdate, ops[0].Operation)
	assert.JSONEq(t, `{"price":90}`, string(ops[0].Payload))
}

func TestQueueRepository_MarkSentRemoves(t *testing.T) {
	db := openOutboxDB(t, filepath.Join(t.TempDir(), "outbox.db"))
	repo := NewQueueRepository(db, logger.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, testOperation("a", time.Now())))
	require.NoError(t, repo.MarkSending(ctx, "a"))
	require.NoError(t, repo.MarkSent(ctx, "a"))

	ops, err := repo.PendingOperations(ctx, testMaxRetries)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestQueueRepository_SendingRowsAreRetried(t *testing.T) {
	db := openOutboxDB(t, filepath.Join(t.TempDir(), "outbox.db"))
	repo := NewQueueRepository(db, logger.Nop())
	ctx := context.Background()

	// A crash mid-flush leaves rows in "sending"; they must come back.
	require.NoError(t, repo.Enqueue(ctx, testOperation("a", time.Now())))
	require.NoError(t, repo.MarkSending(ctx, "a"))

	ops, err := repo.PendingOperations(ctx, testMaxRetries)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.QueueStatusSending, ops[0].Status)
}

func TestQueueRepository_DeadLetterAfterMaxRetries(t *testing.T) {
	db := openOutboxDB(t, filepath.Join(t.TempDir(), "outbox.db"))
	repo := NewQueueRepository(db, logger.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, testOperation("a", time.Now())))

	for i := 0; i < testMaxRetries-1; i++ {
		require.NoError(t, repo.MarkFailed(ctx, "a", testMaxRetries))

		ops, err := repo.PendingOperations(ctx, testMaxRetries)
		require.NoError(t, err)
		require.Len(t, ops, 1, "retries left after failure %d", i+1)
		assert.Equal(t, models.QueueStatusFailed, ops[0].Status)
	}

	// Final failure dead-letters the operation.
	require.NoError(t, repo.MarkFailed(ctx, "a", testMaxRetries))

	ops, err := repo.PendingOperations(ctx, testMaxRetries)
	require.NoError(t, err)
	assert.Empty(t, ops, "dead operations are never retried")

	dead, err := repo.CountByStatus(ctx, models.QueueStatusDead)
	require.NoError(t, err)
	assert.Equal(t, 1, dead, "dead operations are retained for inspection")
}

func TestQueueRepository_PurgeDead(t *testing.T) {
	db := openOutboxDB(t, filepath.Join(t.TempDir(), "outbox.db"))
	repo := NewQueueRepository(db, logger.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, testOperation("a", time.Now())))
	for i := 0; i < testMaxRetries; i++ {
		require.NoError(t, repo.MarkFailed(ctx, "a", testMaxRetries))
	}

	purged, err := repo.PurgeDead(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	dead, err := repo.CountByStatus(ctx, models.QueueStatusDead)
	require.NoError(t, err)
	assert.Zero(t, dead)
}

func TestQueueRepository_MarkMissing(t *testing.T) {
	db := openOutboxDB(t, filepath.Join(t.TempDir(), "outbox.db"))
	repo := NewQueueRepository(db, logger.Nop())
	ctx := context.Background()

	assert.ErrorIs(t, repo.MarkSending(ctx, "ghost"), ErrOperationNotFound)
	assert.ErrorIs(t, repo.MarkSent(ctx, "ghost"), ErrOperationNotFound)
	assert.ErrorIs(t, repo.MarkFailed(ctx, "ghost", testMaxRetries), ErrOperationNotFound)
}

func TestQueueRepository_SurvivesReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "outbox.db")
	ctx := context.Background()

	db := openOutboxDB(t, dsn)
	repo := NewQueueRepository(db, logger.Nop())
	require.NoError(t, repo.Enqueue(ctx, testOperation("a", time.Now())))
	require.NoError(t, db.Close())

	repo = NewQueueRepository(openOutboxDB(t, dsn), logger.Nop())
	ops, err := repo.PendingOperations(ctx, testMaxRetries)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "a", ops[0].ID)
}

func TestQueueRepository_Degraded(t *testing.T) {
	repo := NewQueueRepository(&DB{}, logger.Nop())
	ctx := context.Background()

	assert.ErrorIs(t, repo.Enqueue(ctx, testOperation("a", time.Now())), ErrStorageUnhealthy)

	ops, err := repo.PendingOperations(ctx, testMaxRetries)
	assert.NoError(t, err)
	assert.Empty(t, ops)
}
