// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaar Labs

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bazaarlabs/go-market-sync/internal/adapter"
	"github.com/bazaarlabs/go-market-sync/internal/cache"
	"github.com/bazaarlabs/go-market-sync/internal/config"
	"github.com/bazaarlabs/go-market-sync/internal/logger"
	"github.com/bazaarlabs/go-market-sync/internal/store"
	"github.com/bazaarlabs/go-market-sync/models"
)

type syncService struct {
	entities store.EntityRepository
	backend  adapter.RemoteBackend
	reach    adapter.Reachability
	resolver ConflictResolver
	cfg      config.Sync
	logger   *logger.Logger

	mu        sync.Mutex
	inFlight  bool
	lastStats models.SyncStats
}

// NewSyncService wires the full-sync coordinator: push-then-pull per entity
// type, conflict resolution on pull, and cache freshness bookkeeping.
func NewSyncService(entities store.EntityRepository, backend adapter.RemoteBackend, reach adapter.Reachability, resolver ConflictResolver, cfg config.Sync, log *logger.Logger) SyncService {
	return &syncService{
		entities: entities,
		backend:  backend,
		reach:    reach,
		resolver: resolver,
		cfg:      cfg,
		logger:   log.GetChildLogger(),
	}
}

// PerformFullSync runs one push-then-pull cycle across the configured entity
// types. Concurrent calls coalesce: the second caller gets SyncPhaseSyncing
// back immediately instead of a second interleaved cycle.
func (s *syncService) PerformFullSync(ctx context.Context) models.SyncState {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return models.SyncState{Phase: models.SyncPhaseSyncing}
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	if !s.reach.Online() {
		return models.SyncState{Phase: models.SyncPhaseOffline}
	}

	log := s.logger.With().Str("func", "PerformFullSync").Logger()
	log.Info().Strs("entity_types", s.cfg.EntityTypes).Msg("full sync started")

	started := time.Now()
	var stats models.SyncStats

	for _, entityType := range s.cfg.EntityTypes {
		if err := s.pushPhase(ctx, entityType, &stats); err != nil {
			return s.finishSync(ctx, err, started, stats)
		}
		if err := s.pullPhase(ctx, entityType, &stats); err != nil {
			return s.finishSync(ctx, err, started, stats)
		}

		if err := s.entities.SetLastSyncedAt(ctx, entityType, time.Now()); err != nil {
			log.Error().Err(err).Str("entity_type", entityType).Msg("cannot record sync completion time")
			stats.Errors++
		}
	}

	return s.finishSync(ctx, nil, started, stats)
}

func (s *syncService) finishSync(ctx context.Context, err error, started time.Time, stats models.SyncStats) models.SyncState {
	stats.Duration = time.Since(started)

	s.mu.Lock()
	s.lastStats = stats
	s.mu.Unlock()

	log := s.logger.With().Str("func", "PerformFullSync").Logger()

	switch {
	case err != nil && errors.Is(err, adapter.ErrNetworkUnavailable):
		log.Warn().Err(err).Msg("backend became unreachable mid-sync")
		return models.SyncState{Phase: models.SyncPhaseOffline}
	case err != nil:
		log.Error().Err(err).Msg("full sync aborted")
		return models.SyncState{Phase: models.SyncPhaseError, Message: err.Error()}
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("conflicts_detected", stats.ConflictsDetected).
		Int("conflicts_resolved", stats.ConflictsResolved).
		Int("errors", stats.Errors).
		Dur("duration", stats.Duration).
		Msg("full sync finished")

	// A conflict deferred to the manual queue in an earlier cycle is not
	// re-detected here: the pull cursor has moved past its remote copy. The
	// completion state therefore counts the durable queue, not this pass.
	pending, perr := s.resolver.PendingConflicts(ctx, "")
	if perr != nil {
		log.Error().Err(perr).Msg("cannot count pending conflicts")
		if diff := stats.ConflictsDetected - stats.ConflictsResolved; diff > 0 {
			return models.SyncState{Phase: models.SyncPhaseConflictsPending, PendingConflicts: diff}
		}
		return models.SyncState{Phase: models.SyncPhaseIdle}
	}
	if len(pending) > 0 {
		return models.SyncState{
			Phase:            models.SyncPhaseConflictsPending,
			PendingConflicts: len(pending),
		}
	}

	return models.SyncState{Phase: models.SyncPhaseIdle}
}

// pushPhase delivers every dirty entity of one type to the backend. A
// per-item failure is counted and skipped; only a network outage aborts the
// phase.
func (s *syncService) pushPhase(ctx context.Context, entityType string, stats *models.SyncStats) error {
	log := s.logger.With().Str("func", "pushPhase").Str("entity_type", entityType).Logger()

	dirty, err := s.entities.QueryDirty(ctx, entityType)
	if err != nil {
		if errors.Is(err, store.ErrStorageUnhealthy) {
			log.Warn().Msg("entity cache degraded, skipping push phase")
			return nil
		}
		return fmt.Errorf("query dirty %s entities: %w", entityType, err)
	}

	for _, entity := range dirty {
		if err = ctx.Err(); err != nil {
			return err
		}

		ack, pushErr := s.pushOne(ctx, entity)
		if pushErr != nil {
			if errors.Is(pushErr, adapter.ErrNetworkUnavailable) {
				return pushErr
			}
			if errors.Is(pushErr, adapter.ErrVersionConflict) {
				// Another device won the race; the pull phase fetches the
				// newer remote copy and runs conflict resolution on it.
				log.Debug().Str("id", entity.ID).Msg("push rejected, deferring to pull")
				continue
			}

			log.Warn().Err(pushErr).Str("id", entity.ID).Msg("push failed, keeping entity dirty")
			stats.Errors++
			continue
		}

		if entity.Deleted {
			if err = s.entities.Delete(ctx, entity.EntityType, entity.ID); err != nil && !errors.Is(err, store.ErrEntityNotFound) {
				log.Error().Err(err).Str("id", entity.ID).Msg("cannot drop pushed deletion")
				stats.Errors++
			}
			continue
		}

		if err = s.entities.MarkSynced(ctx, entity.EntityType, entity.ID, ack.Version); err != nil {
			log.Error().Err(err).Str("id", entity.ID).Msg("cannot mark entity synced")
			stats.Errors++
		}
	}

	return nil
}

func (s *syncService) pushOne(ctx context.Context, entity models.Entity) (models.Ack, error) {
	switch {
	case entity.Deleted:
		return models.Ack{}, s.backend.Delete(ctx, entity.EntityType, entity.ID, entity.Version)
	case entity.Version == 0:
		return s.backend.Insert(ctx, entity)
	default:
		return s.backend.Push(ctx, entity)
	}
}

// pullPhase fetches the remote batch and merges it into the cache: clean
// local copies are overwritten, dirty ones go through conflict resolution.
func (s *syncService) pullPhase(ctx context.Context, entityType string, stats *models.SyncStats) error {
	log := s.logger.With().Str("func", "pullPhase").Str("entity_type", entityType).Logger()

	since, err := s.entities.LastSyncedAt(ctx, entityType)
	if err != nil && !errors.Is(err, store.ErrStorageUnhealthy) {
		return fmt.Errorf("load last sync time for %s: %w", entityType, err)
	}

	batch, err := s.backend.FetchBatch(ctx, entityType, since, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("fetch %s batch: %w", entityType, err)
	}

	for _, remote := range batch {
		if err = ctx.Err(); err != nil {
			return err
		}

		if mergeErr := s.mergeRemote(ctx, remote, stats); mergeErr != nil {
			log.Warn().Err(mergeErr).Str("id", remote.ID).Msg("cannot merge remote entity")
			stats.Errors++
		}
	}

	return nil
}

func (s *syncService) mergeRemote(ctx context.Context, remote models.Entity, stats *models.SyncStats) error {
	local, err := s.entities.Get(ctx, remote.EntityType, remote.ID)
	if err != nil {
		if !errors.Is(err, store.ErrEntityNotFound) {
			return fmt.Errorf("load local copy: %w", err)
		}
		if remote.Deleted {
			return nil
		}

		remote.CachedAt = time.Now()
		stats.Created++
		return s.entities.Put(ctx, remote)
	}

	if !local.IsDirty() {
		if remote.Deleted {
			err = s.entities.Delete(ctx, remote.EntityType, remote.ID)
			if err != nil && !errors.Is(err, store.ErrEntityNotFound) {
				return fmt.Errorf("apply remote deletion: %w", err)
			}
			stats.Updated++
			return nil
		}

		remote.CachedAt = time.Now()
		stats.Updated++
		return s.entities.Put(ctx, remote)
	}

	conflict := s.resolver.DetectConflict(local, remote)
	if conflict == nil {
		// Same version on both sides; the local edit has not reached the
		// backend yet and the next push will carry it.
		return nil
	}

	stats.ConflictsDetected++

	strategy := models.ConflictStrategy(s.cfg.Strategy)
	if !s.cfg.AutoResolve {
		strategy = models.StrategyManual
	}

	if _, err = s.resolver.Resolve(ctx, *conflict, strategy); err != nil {
		if errors.Is(err, ErrConflictUnresolved) {
			return nil
		}
		return fmt.Errorf("resolve conflict: %w", err)
	}

	stats.ConflictsResolved++
	return nil
}

func (s *syncService) LastStats() models.SyncStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastStats
}

func (s *syncService) MarkEntityModified(ctx context.Context, entityType, id string) error {
	if entityType == "" || id == "" {
		return fmt.Errorf("%w: entity type and id are required", ErrInvalidDataProvided)
	}

	if err := s.entities.MarkModified(ctx, entityType, id, time.Now()); err != nil {
		return fmt.Errorf("mark %s/%s modified: %w", entityType, id, err)
	}

	return nil
}

func (s *syncService) GetLocallyModifiedEntities(ctx context.Context, entityType string) ([]models.Entity, error) {
	dirty, err := s.entities.QueryDirty(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("query dirty %s entities: %w", entityType, err)
	}

	return dirty, nil
}

// PushLocalChanges runs the push phase only, for one entity type. Used when
// the caller wants local edits delivered without waiting for a full cycle.
func (s *syncService) PushLocalChanges(ctx context.Context, entityType string) error {
	if !s.reach.Online() {
		return adapter.ErrNetworkUnavailable
	}

	var stats models.SyncStats
	if err := s.pushPhase(ctx, entityType, &stats); err != nil {
		return err
	}
	if stats.Errors > 0 {
		return fmt.Errorf("push %s: %d entities failed", entityType, stats.Errors)
	}

	return nil
}

func (s *syncService) GetPendingConflicts(ctx context.Context, entityType string) ([]models.ConflictInfo, error) {
	return s.resolver.PendingConflicts(ctx, entityType)
}

// ResolveConflict applies a human decision to a stored conflict. Returns
// false without error when no pending conflict exists for the entity.
func (s *syncService) ResolveConflict(ctx context.Context, entityType, entityID string, choice models.ConflictChoice, custom json.RawMessage) (bool, error) {
	_, err := s.resolver.ManuallyResolve(ctx, entityType, entityID, choice, custom)
	if err != nil {
		if errors.Is(err, store.ErrConflictNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// IsCacheStale reports whether the entity type's cache is due for
// revalidation. A type that never synced is always stale.
func (s *syncService) IsCacheStale(ctx context.Context, entityType string) (bool, error) {
	syncedAt, err := s.entities.LastSyncedAt(ctx, entityType)
	if err != nil {
		return false, fmt.Errorf("load last sync time for %s: %w", entityType, err)
	}
	if syncedAt.IsZero() {
		return true, nil
	}

	return cache.State(syncedAt, entityType, time.Now()) != cache.FreshnessFresh, nil
}

// CleanupExpiredCache evicts clean entities past their TTL across all
// configured entity types.
func (s *syncService) CleanupExpiredCache(ctx context.Context) (int64, error) {
	log := s.logger.With().Str("func", "CleanupExpiredCache").Logger()

	var evicted int64
	for _, entityType := range s.cfg.EntityTypes {
		n, err := s.entities.EvictOlderThan(ctx, entityType, cache.TTLFor(entityType))
		if err != nil {
			return evicted, fmt.Errorf("evict expired %s entities: %w", entityType, err)
		}
		evicted += n
	}

	if evicted > 0 {
		log.Info().Int64("evicted", evicted).Msg("expired cache entries removed")
	}

	return evicted, nil
}
