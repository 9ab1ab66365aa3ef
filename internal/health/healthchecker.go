package health

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HealthChecker is implemented by component-level checkers (store, pipeline).
type HealthChecker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// ServiceHealthChecker folds the component checkers into the single
// service-level flag served by /api/health. Components probe on their own
// cadence; the aggregator only reads their cached state, so evaluation
// never blocks.
type ServiceHealthChecker struct {
	healthy atomic.Bool
	deps    []HealthChecker
	log     zerolog.Logger
}

// NewServiceHealthChecker returns an aggregator over deps. It reports
// unhealthy until Start has run its first evaluation.
func NewServiceHealthChecker(log zerolog.Logger, deps ...HealthChecker) *ServiceHealthChecker {
	return &ServiceHealthChecker{deps: deps, log: log}
}

// IsHealthy returns cached service health.
func (h *ServiceHealthChecker) IsHealthy() bool { return h.healthy.Load() }

// Failing returns the names of currently unhealthy dependencies.
func (h *ServiceHealthChecker) Failing() []string {
	var out []string
	for _, c := range h.deps {
		if !c.IsHealthy() {
			out = append(out, c.Name())
		}
	}
	return out
}

// Start re-evaluates dependency health on every tick until ctx is done.
// Transitions are logged once per edge, not per tick.
func (h *ServiceHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	wasUp := h.evaluate(false)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wasUp = h.evaluate(wasUp)
		}
	}
}

func (h *ServiceHealthChecker) evaluate(wasUp bool) bool {
	failing := h.Failing()
	up := len(failing) == 0
	h.healthy.Store(up)
	if up != wasUp {
		if up {
			h.log.Info().Msg("service health: UP")
		} else {
			h.log.Error().Stack().
				Str("failing", strings.Join(failing, ",")).
				Msg("service health: DOWN")
		}
	}
	return up
}
