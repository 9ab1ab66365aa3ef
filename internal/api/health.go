package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dwarpal-ai/dwarpal/internal/api/respond"
	"github.com/dwarpal-ai/dwarpal/internal/health"
	"github.com/dwarpal-ai/dwarpal/internal/store"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store store.Store
}

func NewHealthHandler(st store.Store) *HealthHandler { return &HealthHandler{store: st} }

// global health flag (1 = healthy, 0 = unhealthy)
var healthyFlag atomic.Int32

// BindServiceHealth lets run.go inject the aggregated service health
// function. Until bound, the service reports unhealthy.
var serviceIsHealthy func() bool = func() bool { return healthyFlag.Load() == 1 }

func BindServiceHealth(f func() bool) { serviceIsHealthy = f }

// CheckHealth handles GET /api/health: 200 {"status":"ok"} once the
// dependencies are up, 503 {"status":"unhealthy"} before that.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if !serviceIsHealthy() {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	respond.WriteJSON(w, code, map[string]interface{}{
		"status":    status,
		"service":   "dwarpal",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// CheckStoreHealth handles GET /api/health/db with a live probe.
func (h *HealthHandler) CheckStoreHealth(w http.ResponseWriter, r *http.Request) {
	if pinger, ok := h.store.(health.HealthPinger); ok {
		if err := pinger.HealthPing(r.Context()); err != nil {
			respond.WriteServiceUnavailable(w, err.Error())
			return
		}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}
