package store

import (
	"context"
	"time"

	"github.com/bazaarlabs/go-market-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// EntityRepository is the single contract surface for the local entity cache.
// All cross-goroutine mutation of cached entities passes through it.
//
// Every write refreshes the entity's cached_at timestamp. When the backing
// database is unhealthy, read methods return empty results and a nil error so
// callers degrade to network-only mode; write methods return
// [ErrStorageUnhealthy].
type EntityRepository interface {
	// Get loads one entity. Returns ErrEntityNotFound if absent.
	Get(ctx context.Context, entityType, id string) (models.Entity, error)

	// Put upserts one or more entities, refreshing cached_at.
	Put(ctx context.Context, entities ...models.Entity) error

	// Delete removes an entity from the cache.
	Delete(ctx context.Context, entityType, id string) error

	// QueryDirty returns all entities of the given type carrying local edits
	// (locally_modified or pending_sync), oldest edit first.
	QueryDirty(ctx context.Context, entityType string) ([]models.Entity, error)

	// QueryByType returns up to limit entities of the given type, newest
	// first. limit <= 0 means no limit.
	QueryByType(ctx context.Context, entityType string, limit int) ([]models.Entity, error)

	// MarkModified flags an entity as locally edited and pending push.
	MarkModified(ctx context.Context, entityType, id string, modifiedAt time.Time) error

	// MarkSynced clears both dirty flags and records the server-assigned
	// version after a successful push.
	MarkSynced(ctx context.Context, entityType, id string, version int64) error

	// EvictOlderThan removes clean entities of the given type whose cached_at
	// is older than ttl. Dirty entities are never evicted. Returns the number
	// of evicted rows.
	EvictOlderThan(ctx context.Context, entityType string, ttl time.Duration) (int64, error)

	// LastSyncedAt returns the recorded completion time of the last sync for
	// the entity type, or the zero time if no sync has completed yet.
	LastSyncedAt(ctx context.Context, entityType string) (time.Time, error)

	// SetLastSyncedAt records the completion time of a sync pass.
	SetLastSyncedAt(ctx context.Context, entityType string, at time.Time) error
}

// QueueRepository is the durable FIFO of deferred mutations. Rows live in the
// outbox database, separate from the entity cache, so queued work survives a
// cache corruption recovery.
type QueueRepository interface {
	// Enqueue persists a new operation in status pending.
	Enqueue(ctx context.Context, op models.QueuedOperation) error

	// PendingOperations returns every operation a flush should attempt, in
	// timestamp order: status pending or failed with retries left, plus
	// sending rows orphaned by a crash mid-flush.
	PendingOperations(ctx context.Context, maxRetries int) ([]models.QueuedOperation, error)

	// MarkSending transitions an operation to sending.
	MarkSending(ctx context.Context, id string) error

	// MarkSent removes a successfully delivered operation.
	MarkSent(ctx context.Context, id string) error

	// MarkFailed increments the retry counter; once maxRetries is reached the
	// operation is dead-lettered (kept, never retried).
	MarkFailed(ctx context.Context, id string, maxRetries int) error

	// CountByStatus returns the number of operations in the given status.
	CountByStatus(ctx context.Context, status string) (int, error)

	// PurgeDead removes dead-lettered operations. The engine never calls
	// this on its own; it exists for explicit housekeeping.
	PurgeDead(ctx context.Context) (int64, error)
}

// ConflictRepository persists conflicts awaiting manual resolution.
type ConflictRepository interface {
	// Save upserts the pending conflict for an entity. An entity has at most
	// one open conflict at a time.
	Save(ctx context.Context, conflict models.ConflictInfo) error

	// Get returns the pending conflict for an entity, or ErrConflictNotFound.
	Get(ctx context.Context, entityType, entityID string) (models.ConflictInfo, error)

	// Pending lists pending conflicts, oldest first. entityType == "" lists
	// all types.
	Pending(ctx context.Context, entityType string) ([]models.ConflictInfo, error)

	// Remove deletes the conflict entry for an entity.
	Remove(ctx context.Context, entityType, entityID string) error

	// Clear bulk-deletes pending conflicts. entityType == "" clears all.
	Clear(ctx context.Context, entityType string) (int64, error)
}
