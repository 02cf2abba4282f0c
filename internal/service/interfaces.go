package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bazaarlabs/go-market-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/service_mock.go -package=mock

// ConflictResolver detects and resolves write-write conflicts between the
// local cache and the backend. Implementations serialize concurrent
// detect/resolve calls for the same entity id.
type ConflictResolver interface {
	// DetectConflict returns a non-nil ConflictInfo only when the local copy
	// carries unsynced edits AND its version differs from the remote copy.
	// In every other combination the remote value is authoritative and nil
	// is returned.
	DetectConflict(local, remote models.Entity) *models.ConflictInfo

	// Resolve applies the strategy to the conflict, persists the winner to
	// the local cache and returns it. Under StrategyManual the conflict is
	// persisted to the conflict queue instead and ErrConflictUnresolved is
	// returned.
	//
	// The winner always comes back with LocallyModified and PendingSync
	// cleared; when the local side wins, its version is set to the remote
	// version plus one so the next push is recognized as newer.
	Resolve(ctx context.Context, conflict models.ConflictInfo, strategy models.ConflictStrategy) (models.Entity, error)

	// ManuallyResolve applies a stored pending conflict's chosen side (or an
	// explicit custom payload) and removes it from the queue.
	ManuallyResolve(ctx context.Context, entityType, entityID string, choice models.ConflictChoice, custom json.RawMessage) (models.Entity, error)

	// PendingConflicts lists conflicts awaiting manual resolution, oldest
	// first. entityType == "" lists all types.
	PendingConflicts(ctx context.Context, entityType string) ([]models.ConflictInfo, error)

	// ClearPendingConflicts bulk-discards pending conflicts without
	// resolving them. entityType == "" clears all types.
	ClearPendingConflicts(ctx context.Context, entityType string) (int64, error)
}

// OptimisticUpdateManager owns the lifecycle of client-side speculative
// writes: apply immediately, confirm on backend ack, retry or roll back on
// failure.
type OptimisticUpdateManager interface {
	// CreateUpdate constructs an update in state Pending. Blank entity ids
	// and empty optimistic values are rejected with ErrInvalidDataProvided.
	CreateUpdate(entityType, entityID string, op models.Operation, original, optimistic json.RawMessage) (*models.OptimisticUpdate, error)

	// ApplyUpdate writes the optimistic value into the local cache and moves
	// the update Pending → Applied.
	ApplyUpdate(ctx context.Context, upd *models.OptimisticUpdate) error

	// MarkSyncing moves Applied → Syncing when the backend call starts.
	MarkSyncing(upd *models.OptimisticUpdate) error

	// ConfirmUpdate moves Applied/Syncing → Confirmed once the backend
	// acknowledged the mutation. Terminal.
	ConfirmUpdate(upd *models.OptimisticUpdate) error

	// MarkFailed moves Applied/Syncing → Failed after a backend error.
	MarkFailed(upd *models.OptimisticUpdate) error

	// Retry moves Failed → Pending and increments the retry counter.
	Retry(upd *models.OptimisticUpdate) error

	// ShouldRollback classifies err and decides between retry (with a
	// suggested backoff delay) and rollback. Exhausted retry budgets force
	// rollback regardless of category.
	ShouldRollback(err error, upd *models.OptimisticUpdate) models.RollbackDecision

	// Rollback restores the entity to its pre-update state and moves the
	// update to RolledBack. Terminal.
	Rollback(ctx context.Context, upd *models.OptimisticUpdate) error

	// CalculateBackoffDelay returns base*2^retryCount with ±25% jitter,
	// capped at the configured maximum.
	CalculateBackoffDelay(retryCount int) time.Duration

	// GenerateIdempotencyKey derives a deterministic key for resubmission
	// detection.
	GenerateIdempotencyKey(userID, entityType, entityID string, op models.Operation) string

	// IsDuplicate reports whether key was already seen inside the rolling
	// window, recording it as seen either way.
	IsDuplicate(key string) bool

	// DetectBatchConflicts splits concurrent updates targeting the same
	// entity: per (entityType, entityID) only the earliest-created update is
	// applicable, the rest are rejected.
	DetectBatchConflicts(updates []*models.OptimisticUpdate) (applicable, rejected []*models.OptimisticUpdate)
}

// QueueExecutor performs one deferred operation against the backend during
// a flush.
type QueueExecutor func(ctx context.Context, op models.QueuedOperation) error

// FlushResult counts the outcomes of one offline queue flush.
type FlushResult struct {
	Sent   int
	Failed int
	Dead   int
}

// OfflineQueue is the durable FIFO of mutations deferred while offline.
type OfflineQueue interface {
	// Enqueue persists a deferred mutation and returns the stored record.
	Enqueue(ctx context.Context, entityType, entityID string, op models.Operation, payload json.RawMessage) (models.QueuedOperation, error)

	// Pending returns every operation the next flush will attempt, in
	// timestamp order.
	Pending(ctx context.Context) ([]models.QueuedOperation, error)

	// PendingCount returns the number of operations waiting in the queue.
	PendingCount(ctx context.Context) (int, error)

	// Flush runs executor over the pending operations in timestamp order.
	// One operation's failure never halts the flush; it is recorded and the
	// flush moves on.
	Flush(ctx context.Context, executor QueueExecutor) (FlushResult, error)
}

// SyncService is the top-level coordinator exposed to the business layer.
type SyncService interface {
	// PerformFullSync runs one push-then-pull cycle across the configured
	// entity types. At most one full sync is in flight at a time; a
	// concurrent call is coalesced into a "syncing" state, never
	// interleaved.
	PerformFullSync(ctx context.Context) models.SyncState

	// LastStats returns the statistics of the most recent full sync.
	LastStats() models.SyncStats

	// MarkEntityModified flags a cached entity as locally edited.
	MarkEntityModified(ctx context.Context, entityType, id string) error

	// GetLocallyModifiedEntities lists cached entities carrying unsynced
	// edits.
	GetLocallyModifiedEntities(ctx context.Context, entityType string) ([]models.Entity, error)

	// PushLocalChanges runs the push phase only for one entity type.
	PushLocalChanges(ctx context.Context, entityType string) error

	// GetPendingConflicts lists conflicts awaiting manual resolution.
	GetPendingConflicts(ctx context.Context, entityType string) ([]models.ConflictInfo, error)

	// ResolveConflict applies a human decision to a stored conflict.
	// Returns false when no pending conflict exists for the entity.
	ResolveConflict(ctx context.Context, entityType, entityID string, choice models.ConflictChoice, custom json.RawMessage) (bool, error)

	// IsCacheStale reports whether the entity type's cache is due for
	// revalidation.
	IsCacheStale(ctx context.Context, entityType string) (bool, error)

	// CleanupExpiredCache evicts clean entities past their TTL across all
	// configured entity types. Returns the number of evicted entities.
	CleanupExpiredCache(ctx context.Context) (int64, error)
}

// SyncJob runs full syncs in the background: periodically, and immediately
// after every offline→online transition. Run starts the job detached from
// any caller-scoped context so it can be driven as a background worker.
type SyncJob interface {
	Start(ctx context.Context)
	Stop()
	Run()
}
