package service

import (
	"context"
	"sync"
	"time"

	"github.com/bazaarlabs/go-market-sync/internal/adapter"
	"github.com/bazaarlabs/go-market-sync/internal/logger"
)

type syncJob struct {
	syncService SyncService
	queue       OfflineQueue
	backend     adapter.RemoteBackend
	reach       adapter.Reachability
	interval    time.Duration
	logger      *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncJob creates a background job that flushes the offline queue and
// runs a full sync on a ticker, and immediately after every offline→online
// transition. The job is idle until Start is called.
func NewSyncJob(syncService SyncService, queue OfflineQueue, backend adapter.RemoteBackend, reach adapter.Reachability, interval time.Duration, log *logger.Logger) SyncJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &syncJob{
		syncService: syncService,
		queue:       queue,
		backend:     backend,
		reach:       reach,
		interval:    interval,
		logger:      log.GetChildLogger(),
	}
}

// Start launches the background goroutine. It stops any previously running
// job first. The goroutine exits when ctx is cancelled or Stop is called.
func (j *syncJob) Start(ctx context.Context) {
	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	transitions := j.reach.Subscribe()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(j.interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case online, ok := <-transitions:
				if !ok {
					transitions = nil
					continue
				}
				if online {
					j.runCycle(jobCtx)
				}
			case <-t.C:
				if j.reach.Online() {
					j.runCycle(jobCtx)
				}
			}
		}
	}()
}

// runCycle drains queued offline mutations first so the push phase sees the
// cache state they produced, then runs a full sync.
func (j *syncJob) runCycle(ctx context.Context) {
	log := j.logger.With().Str("func", "syncJob.runCycle").Logger()

	if _, err := j.queue.Flush(ctx, BackendExecutor(j.backend)); err != nil {
		log.Error().Err(err).Msg("offline queue flush failed")
	}

	state := j.syncService.PerformFullSync(ctx)
	log.Debug().Str("state", state.String()).Msg("background sync cycle finished")
}

// Stop cancels the background goroutine and blocks until it has exited.
// Safe to call when the job is not running.
func (j *syncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}

// Run implements the background worker contract: it starts the job detached
// from any caller-scoped context.
func (j *syncJob) Run() {
	j.Start(context.Background())
}
