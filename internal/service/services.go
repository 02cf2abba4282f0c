package service

import (
	"github.com/bazaarlabs/go-market-sync/internal/adapter"
	"github.com/bazaarlabs/go-market-sync/internal/config"
	"github.com/bazaarlabs/go-market-sync/internal/logger"
	"github.com/bazaarlabs/go-market-sync/internal/store"
)

type Services struct {
	Resolver    ConflictResolver
	Optimistic  OptimisticUpdateManager
	Queue       OfflineQueue
	SyncService SyncService
	SyncJob     SyncJob
}

func NewServices(storages store.Storages, backend adapter.RemoteBackend, reach adapter.Reachability, cfg config.StructuredConfig, logger *logger.Logger) *Services {
	resolver := NewConflictResolver(storages.Entities, storages.Conflicts, logger)
	optimistic := NewOptimisticUpdateManager(storages.Entities, cfg.Sync.BaseDelay, cfg.Sync.MaxDelay, cfg.Sync.MaxRetries, logger)
	queue := NewOfflineQueue(storages.Queue, cfg.Sync.MaxRetries, logger)
	syncSvc := NewSyncService(storages.Entities, backend, reach, resolver, cfg.Sync, logger)

	return &Services{
		Resolver:    resolver,
		Optimistic:  optimistic,
		Queue:       queue,
		SyncService: syncSvc,
		SyncJob:     NewSyncJob(syncSvc, queue, backend, reach, cfg.Sync.Interval, logger),
	}
}
