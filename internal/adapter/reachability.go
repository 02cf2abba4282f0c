package adapter

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bazaarlabs/go-market-sync/internal/config"
	"github.com/bazaarlabs/go-market-sync/internal/logger"
)

// PollingReachability probes the backend health endpoint on a fixed interval
// and fans out online/offline transitions to subscribers. It starts
// pessimistic (offline) so the first successful probe is itself a transition
// and kicks off the initial sync.
type PollingReachability struct {
	client   *resty.Client
	interval time.Duration
	logger   *logger.Logger

	mu          sync.Mutex
	online      bool
	subscribers []chan bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewPollingReachability constructs a reachability observer for the backend
// at cfg.BaseURL. The observer is idle until Start is called.
func NewPollingReachability(cfg config.Backend, log *logger.Logger) *PollingReachability {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = config.DefaultProbeInterval
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.RequestTimeout)

	return &PollingReachability{
		client:   cli,
		interval: cfg.ProbeInterval,
		logger:   log,
	}
}

// Online implements Reachability.
func (p *PollingReachability) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// Subscribe implements Reachability. Each subscriber gets its own buffered
// channel; a slow subscriber drops transitions instead of blocking the probe
// loop.
func (p *PollingReachability) Subscribe() <-chan bool {
	ch := make(chan bool, 1)
	p.mu.Lock()
	p.subscribers = append(p.subscribers, ch)
	p.mu.Unlock()
	return ch
}

// Start launches the background probe loop. It stops any previously running
// loop first. The loop exits when ctx is cancelled or Stop is called.
func (p *PollingReachability) Start(ctx context.Context) {
	p.Stop()

	p.mu.Lock()
	probeCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		t := time.NewTicker(p.interval)
		defer t.Stop()

		p.observe(p.probe(probeCtx))
		for {
			select {
			case <-probeCtx.Done():
				return
			case <-t.C:
				p.observe(p.probe(probeCtx))
			}
		}
	}()
}

// Stop cancels the probe loop, waits for it to exit and closes all
// subscriber channels. Safe to call when not running.
func (p *PollingReachability) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()

	p.mu.Lock()
	for _, ch := range p.subscribers {
		close(ch)
	}
	p.subscribers = nil
	p.mu.Unlock()
}

func (p *PollingReachability) probe(ctx context.Context) bool {
	resp, err := p.client.R().SetContext(ctx).Get("/api/health")
	if err != nil {
		return false
	}
	return resp.StatusCode() < http.StatusInternalServerError
}

func (p *PollingReachability) observe(online bool) {
	p.mu.Lock()
	changed := online != p.online
	p.online = online
	subscribers := append([]chan bool(nil), p.subscribers...)
	p.mu.Unlock()

	if !changed {
		return
	}

	p.logger.Info().Bool("online", online).Str("func", "PollingReachability.observe").
		Msg("backend reachability changed")

	for _, ch := range subscribers {
		select {
		case ch <- online:
		default:
		}
	}
}
