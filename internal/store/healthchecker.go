package store

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dwarpal-ai/dwarpal/internal/health"
	"github.com/dwarpal-ai/dwarpal/internal/model"
)

const defaultProbeTimeout = 2 * time.Second

// StoreHealthChecker keeps a cached verdict on store reachability, refreshed
// by periodic probes. The health endpoint reads the cache, so a slow or dead
// database never stalls a health response.
type StoreHealthChecker struct {
	store        Store
	log          zerolog.Logger
	probeTimeout time.Duration
	healthy      atomic.Bool
}

// NewStoreHealthChecker returns a checker that reports unhealthy until its
// first successful probe.
func NewStoreHealthChecker(store Store, log zerolog.Logger, probeTimeout time.Duration) *StoreHealthChecker {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	return &StoreHealthChecker{store: store, log: log, probeTimeout: probeTimeout}
}

// Name returns the checker name.
func (hc *StoreHealthChecker) Name() string { return "store" }

// IsHealthy returns the cached verdict without touching the database.
func (hc *StoreHealthChecker) IsHealthy() bool { return hc.healthy.Load() }

// Start probes once immediately and then on every tick until ctx is done.
func (hc *StoreHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	hc.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hc.refresh(ctx)
		}
	}
}

func (hc *StoreHealthChecker) refresh(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, hc.probeTimeout)
	defer cancel()

	err := hc.probe(probeCtx)
	hc.healthy.Store(err == nil)
	if err != nil {
		hc.log.Error().Stack().
			Str("checker", hc.Name()).
			Err(err).
			Msg("store health check failed")
	}
}

// probe asks the store directly when it knows how to answer, and otherwise
// issues a throwaway read. A not-found result still proves the database is
// reachable.
func (hc *StoreHealthChecker) probe(ctx context.Context) error {
	if p, ok := hc.store.(health.HealthPinger); ok {
		return p.HealthPing(ctx)
	}
	_, err := hc.store.Sessions().Get(ctx, "health-probe")
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	return err
}
