// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaar Labs

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/bazaarlabs/go-market-sync/internal/adapter"
	"github.com/bazaarlabs/go-market-sync/internal/logger"
	"github.com/bazaarlabs/go-market-sync/internal/store"
	"github.com/bazaarlabs/go-market-sync/internal/utils"
	"github.com/bazaarlabs/go-market-sync/models"
)

const (
	jitterFraction   = 0.25
	serverErrorScale = 2
	dedupeWindow     = 10 * time.Minute
)

type optimisticManager struct {
	entities store.EntityRepository
	uuid     *utils.UUIDGenerator
	logger   *logger.Logger

	baseDelay  time.Duration
	maxDelay   time.Duration
	maxRetries int

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewOptimisticUpdateManager returns a manager that drives client-side
// speculative writes through their lifecycle and decides between retry and
// rollback when the backend rejects one.
func NewOptimisticUpdateManager(entities store.EntityRepository, baseDelay, maxDelay time.Duration, maxRetries int, log *logger.Logger) OptimisticUpdateManager {
	return &optimisticManager{
		entities:   entities,
		uuid:       utils.NewUUIDGenerator(),
		logger:     log.GetChildLogger(),
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		maxRetries: maxRetries,
		seen:       make(map[string]time.Time),
	}
}

var validTransitions = map[models.UpdateState][]models.UpdateState{
	models.UpdateStatePending: {models.UpdateStateApplied, models.UpdateStateRolledBack},
	models.UpdateStateApplied: {models.UpdateStateSyncing, models.UpdateStateFailed, models.UpdateStateRolledBack},
	models.UpdateStateSyncing: {models.UpdateStateConfirmed, models.UpdateStateFailed},
	models.UpdateStateFailed:  {models.UpdateStatePending, models.UpdateStateRolledBack},
}

func transition(upd *models.OptimisticUpdate, to models.UpdateState) error {
	for _, allowed := range validTransitions[upd.State] {
		if allowed == to {
			upd.State = to
			return nil
		}
	}

	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, upd.State, to)
}

func (m *optimisticManager) CreateUpdate(entityType, entityID string, op models.Operation, original, optimistic json.RawMessage) (*models.OptimisticUpdate, error) {
	if entityType == "" || entityID == "" {
		return nil, fmt.Errorf("%w: entity type and id are required", ErrInvalidDataProvided)
	}
	if len(optimistic) == 0 && op != models.OperationDelete {
		return nil, fmt.Errorf("%w: optimistic value is required for %s", ErrInvalidDataProvided, op)
	}

	return &models.OptimisticUpdate{
		ID:              m.uuid.Generate(),
		EntityType:      entityType,
		EntityID:        entityID,
		Operation:       op,
		OriginalValue:   original,
		OptimisticValue: optimistic,
		CreatedAt:       time.Now(),
		State:           models.UpdateStatePending,
	}, nil
}

// ApplyUpdate writes the optimistic value into the local cache and moves the
// update Pending → Applied. The local copy keeps its version; only a backend
// ack bumps it. A failed cache write leaves the update in Pending.
func (m *optimisticManager) ApplyUpdate(ctx context.Context, upd *models.OptimisticUpdate) error {
	log := logger.FromContext(ctx).With().Str("func", "ApplyUpdate").Str("update_id", upd.ID).Logger()

	entity, err := m.entities.Get(ctx, upd.EntityType, upd.EntityID)
	if err != nil {
		if !errors.Is(err, store.ErrEntityNotFound) {
			return fmt.Errorf("load entity for optimistic update: %w", err)
		}
		entity = models.Entity{EntityType: upd.EntityType, ID: upd.EntityID}
	}

	now := time.Now()
	entity.Payload = upd.OptimisticValue
	entity.UpdatedAt = now
	entity.CachedAt = now
	entity.LocallyModified = true
	entity.PendingSync = true
	entity.Deleted = upd.Operation == models.OperationDelete

	if err = m.entities.Put(ctx, entity); err != nil {
		log.Error().Err(err).Msg("optimistic write failed")
		return fmt.Errorf("apply optimistic update: %w", err)
	}

	return transition(upd, models.UpdateStateApplied)
}

func (m *optimisticManager) MarkSyncing(upd *models.OptimisticUpdate) error {
	return transition(upd, models.UpdateStateSyncing)
}

func (m *optimisticManager) ConfirmUpdate(upd *models.OptimisticUpdate) error {
	if upd.State == models.UpdateStateApplied {
		// An ack can arrive before MarkSyncing was recorded.
		upd.State = models.UpdateStateSyncing
	}

	return transition(upd, models.UpdateStateConfirmed)
}

func (m *optimisticManager) MarkFailed(upd *models.OptimisticUpdate) error {
	return transition(upd, models.UpdateStateFailed)
}

func (m *optimisticManager) Retry(upd *models.OptimisticUpdate) error {
	if err := transition(upd, models.UpdateStatePending); err != nil {
		return err
	}

	upd.RetryCount++

	return nil
}

// Classify maps a backend error onto the category driving the
// retry-vs-rollback decision.
func Classify(err error) models.ErrorCategory {
	switch {
	case err == nil:
		return models.ErrorCategoryUnknown
	case errors.Is(err, adapter.ErrNetworkUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return models.ErrorCategoryNetwork
	case errors.Is(err, adapter.ErrVersionConflict):
		return models.ErrorCategoryConflict
	case errors.Is(err, adapter.ErrValidation):
		return models.ErrorCategoryValidation
	case errors.Is(err, adapter.ErrUnauthorized):
		return models.ErrorCategoryAuthorization
	case errors.Is(err, adapter.ErrRemoteRejected):
		return models.ErrorCategoryServerError
	default:
		return models.ErrorCategoryUnknown
	}
}

func (m *optimisticManager) ShouldRollback(err error, upd *models.OptimisticUpdate) models.RollbackDecision {
	category := Classify(err)

	if upd.RetryCount >= m.maxRetries || !category.Retryable() {
		return models.RollbackDecision{ShouldRollback: true, Category: category}
	}

	delay := m.CalculateBackoffDelay(upd.RetryCount)
	if category == models.ErrorCategoryServerError {
		// A struggling backend gets more breathing room than a flaky radio.
		delay = minDuration(delay*serverErrorScale, m.maxDelay)
	}

	return models.RollbackDecision{Category: category, RetryDelay: delay}
}

// Rollback restores the pre-update state: creates are removed outright,
// every other operation gets the original value written back with the dirty
// flags cleared.
func (m *optimisticManager) Rollback(ctx context.Context, upd *models.OptimisticUpdate) error {
	log := logger.FromContext(ctx).With().Str("func", "Rollback").Str("update_id", upd.ID).Logger()

	if upd.State.Terminal() {
		return fmt.Errorf("%w: rollback from %s", ErrInvalidTransition, upd.State)
	}

	if upd.Operation == models.OperationCreate {
		err := m.entities.Delete(ctx, upd.EntityType, upd.EntityID)
		if err != nil && !errors.Is(err, store.ErrEntityNotFound) {
			return fmt.Errorf("remove optimistic create: %w", err)
		}
	} else {
		entity, err := m.entities.Get(ctx, upd.EntityType, upd.EntityID)
		if err != nil {
			if !errors.Is(err, store.ErrEntityNotFound) {
				return fmt.Errorf("load entity for rollback: %w", err)
			}
			entity = models.Entity{EntityType: upd.EntityType, ID: upd.EntityID}
		}

		entity.Payload = upd.OriginalValue
		entity.CachedAt = time.Now()
		entity.LocallyModified = false
		entity.PendingSync = false
		entity.Deleted = false

		if err = m.entities.Put(ctx, entity); err != nil {
			return fmt.Errorf("restore original value: %w", err)
		}
	}

	upd.State = models.UpdateStateRolledBack
	log.Info().Str("operation", string(upd.Operation)).Msg("optimistic update rolled back")

	return nil
}

// CalculateBackoffDelay returns base*2^retryCount with ±25% jitter, capped
// at the configured maximum.
func (m *optimisticManager) CalculateBackoffDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}

	delay := m.baseDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= m.maxDelay {
			delay = m.maxDelay
			break
		}
	}

	jitter := time.Duration((rand.Float64()*2 - 1) * jitterFraction * float64(delay))
	delay += jitter

	if delay > m.maxDelay {
		delay = m.maxDelay
	}
	if delay < 0 {
		delay = 0
	}

	return delay
}

func (m *optimisticManager) GenerateIdempotencyKey(userID, entityType, entityID string, op models.Operation) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{userID, entityType, entityID, string(op)}, "|")))
	return hex.EncodeToString(sum[:])
}

func (m *optimisticManager) IsDuplicate(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for k, at := range m.seen {
		if now.Sub(at) > dedupeWindow {
			delete(m.seen, k)
		}
	}

	if _, ok := m.seen[key]; ok {
		return true
	}
	m.seen[key] = now

	return false
}

// DetectBatchConflicts partitions a batch of updates: per entity only the
// earliest-created update is applicable, later ones targeting the same
// entity are rejected.
func (m *optimisticManager) DetectBatchConflicts(updates []*models.OptimisticUpdate) (applicable, rejected []*models.OptimisticUpdate) {
	winners := make(map[string]*models.OptimisticUpdate, len(updates))

	for _, upd := range updates {
		key := upd.EntityType + "/" + upd.EntityID
		prev, ok := winners[key]
		if !ok || upd.CreatedAt.Before(prev.CreatedAt) {
			winners[key] = upd
		}
	}

	for _, upd := range updates {
		if winners[upd.EntityType+"/"+upd.EntityID] == upd {
			applicable = append(applicable, upd)
		} else {
			rejected = append(rejected, upd)
		}
	}

	return applicable, rejected
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}

	return b
}
