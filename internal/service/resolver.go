package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bazaarlabs/go-market-sync/internal/logger"
	"github.com/bazaarlabs/go-market-sync/internal/store"
	"github.com/bazaarlabs/go-market-sync/models"
)

type conflictResolver struct {
	entities  store.EntityRepository
	conflicts store.ConflictRepository
	logger    *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewConflictResolver constructs a ConflictResolver persisting deferred
// conflicts through the given repository.
func NewConflictResolver(entities store.EntityRepository, conflicts store.ConflictRepository, log *logger.Logger) ConflictResolver {
	return &conflictResolver{
		entities:  entities,
		conflicts: conflicts,
		logger:    log,
		locks:     make(map[string]*sync.Mutex),
	}
}

// entityLock serializes detect/resolve calls for one entity id.
func (r *conflictResolver) entityLock(entityType, entityID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entityType + "/" + entityID
	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	return lock
}

func (r *conflictResolver) DetectConflict(local, remote models.Entity) *models.ConflictInfo {
	if !local.LocallyModified || local.Version == remote.Version {
		return nil
	}

	return &models.ConflictInfo{
		EntityType: local.EntityType,
		EntityID:   local.ID,
		Local:      local,
		Remote:     remote,
		DetectedAt: time.Now(),
		Status:     models.ConflictStatusPending,
	}
}

func (r *conflictResolver) Resolve(ctx context.Context, conflict models.ConflictInfo, strategy models.ConflictStrategy) (models.Entity, error) {
	lock := r.entityLock(conflict.EntityType, conflict.EntityID)
	lock.Lock()
	defer lock.Unlock()

	switch strategy {
	case models.StrategyLastWriteWins:
		// Ties go to the remote copy: the server is the tie-break authority.
		if conflict.Local.UpdatedAt.After(conflict.Remote.UpdatedAt) {
			return r.finalize(ctx, conflict, true)
		}
		return r.finalize(ctx, conflict, false)

	case models.StrategyClientWins:
		return r.finalize(ctx, conflict, true)

	case models.StrategyServerWins:
		return r.finalize(ctx, conflict, false)

	case models.StrategyManual:
		if err := r.conflicts.Save(ctx, conflict); err != nil {
			return models.Entity{}, fmt.Errorf("queue conflict for manual resolution: %w", err)
		}
		r.logger.Info().
			Str("func", "conflictResolver.Resolve").
			Str("entity_type", conflict.EntityType).
			Str("entity_id", conflict.EntityID).
			Msg("conflict queued for manual resolution")
		return models.Entity{}, ErrConflictUnresolved

	default:
		return models.Entity{}, fmt.Errorf("unknown conflict strategy %q", strategy)
	}
}

// finalize persists the winning side with sync metadata adjusted so the
// outcome is stable: dirty flags cleared, and a local win versioned one past
// the remote so the backend accepts the subsequent push as newer.
func (r *conflictResolver) finalize(ctx context.Context, conflict models.ConflictInfo, localWins bool) (models.Entity, error) {
	var resolved models.Entity
	if localWins {
		resolved = conflict.Local
		resolved.Version = conflict.Remote.Version + 1
	} else {
		resolved = conflict.Remote
	}
	resolved.LocallyModified = false
	resolved.PendingSync = false

	if err := r.entities.Put(ctx, resolved); err != nil {
		return models.Entity{}, fmt.Errorf("persist resolved entity: %w", err)
	}

	if err := r.conflicts.Remove(ctx, conflict.EntityType, conflict.EntityID); err != nil &&
		!errors.Is(err, store.ErrConflictNotFound) {
		return models.Entity{}, fmt.Errorf("remove resolved conflict: %w", err)
	}

	return resolved, nil
}

func (r *conflictResolver) ManuallyResolve(ctx context.Context, entityType, entityID string, choice models.ConflictChoice, custom json.RawMessage) (models.Entity, error) {
	lock := r.entityLock(entityType, entityID)
	lock.Lock()
	defer lock.Unlock()

	conflict, err := r.conflicts.Get(ctx, entityType, entityID)
	if err != nil {
		return models.Entity{}, fmt.Errorf("load pending conflict: %w", err)
	}

	switch choice {
	case models.ChoiceLocal:
		return r.finalize(ctx, conflict, true)

	case models.ChoiceRemote:
		return r.finalize(ctx, conflict, false)

	case models.ChoiceCustom:
		if len(custom) == 0 {
			return models.Entity{}, fmt.Errorf("%w: custom resolution requires a payload", ErrInvalidDataProvided)
		}
		resolved := conflict.Remote
		resolved.Payload = custom
		resolved.Version = conflict.Remote.Version + 1
		resolved.UpdatedAt = time.Now()
		resolved.LocallyModified = false
		// A custom merge exists only locally until the next push.
		resolved.PendingSync = true

		if err = r.entities.Put(ctx, resolved); err != nil {
			return models.Entity{}, fmt.Errorf("persist custom resolution: %w", err)
		}
		if err = r.conflicts.Remove(ctx, entityType, entityID); err != nil &&
			!errors.Is(err, store.ErrConflictNotFound) {
			return models.Entity{}, fmt.Errorf("remove resolved conflict: %w", err)
		}
		return resolved, nil

	default:
		return models.Entity{}, fmt.Errorf("%w: unknown choice %q", ErrInvalidDataProvided, choice)
	}
}

func (r *conflictResolver) PendingConflicts(ctx context.Context, entityType string) ([]models.ConflictInfo, error) {
	return r.conflicts.Pending(ctx, entityType)
}

func (r *conflictResolver) ClearPendingConflicts(ctx context.Context, entityType string) (int64, error) {
	return r.conflicts.Clear(ctx, entityType)
}
