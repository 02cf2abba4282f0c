package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bazaarlabs/go-market-sync/internal/config"
	"github.com/bazaarlabs/go-market-sync/internal/logger"
	"github.com/bazaarlabs/go-market-sync/migrations"
)

// Storages groups all local repositories into a single value that can be
// passed around the service layer.
//
// Entities live in the cache database, queued operations and pending
// conflicts in the outbox database. The split matters for the corruption
// story: recovering a corrupt entity cache discards cached data only, never
// the unsynced work waiting in the outbox.
type Storages struct {
	Entities  EntityRepository
	Queue     QueueRepository
	Conflicts ConflictRepository
}

// NewStorages initialises the local storage layer:
//  1. Opens (and migrates) the cache database at cfg.Cache.DSN.
//  2. Opens (and migrates) the outbox database at cfg.Outbox.DSN.
//  3. Wires the repositories.
//
// An unhealthy cache database is not fatal: the engine continues in degraded
// network-only mode and the condition is logged. An unhealthy outbox database
// is fatal, because losing it silently would mean losing user mutations.
func NewStorages(cfg config.Storage, log *logger.Logger) (*Storages, error) {
	log.Info().Msg("creating local storages...")

	cacheDB, err := NewConnectSQLite(context.Background(), cfg.Cache, log)
	if err != nil {
		if !errors.Is(err, ErrStorageUnhealthy) {
			return nil, fmt.Errorf("cache database connection error: %w", err)
		}
		log.Err(err).Msg("cache database unhealthy, continuing network-only")
	}
	if cacheDB.Healthy() {
		if err = migrations.Migrate(cacheDB.DB, migrations.TargetCache); err != nil {
			return nil, fmt.Errorf("cache migration failed: %w", err)
		}
	}

	outboxDB, err := NewConnectSQLite(context.Background(), cfg.Outbox, log)
	if err != nil {
		return nil, fmt.Errorf("outbox database connection error: %w", err)
	}
	if err = migrations.Migrate(outboxDB.DB, migrations.TargetOutbox); err != nil {
		return nil, fmt.Errorf("outbox migration failed: %w", err)
	}

	return &Storages{
		Entities:  NewEntityRepository(cacheDB, log),
		Queue:     NewQueueRepository(outboxDB, log),
		Conflicts: NewConflictRepository(outboxDB, log),
	}, nil
}
