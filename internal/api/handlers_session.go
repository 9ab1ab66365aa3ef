package api

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/dwarpal-ai/dwarpal/internal/api/respond"
	"github.com/dwarpal-ai/dwarpal/internal/api/validate"
	"github.com/dwarpal-ai/dwarpal/internal/assets"
	"github.com/dwarpal-ai/dwarpal/internal/orchestrator"
	"github.com/dwarpal-ai/dwarpal/internal/services"
)

// SessionHandler serves the read side: session status, the full stage
// aggregate, and the activity feed.
type SessionHandler struct {
	svc    *services.SessionService
	layout *assets.Layout
}

func NewSessionHandler(svc *services.SessionService, layout *assets.Layout) *SessionHandler {
	return &SessionHandler{svc: svc, layout: layout}
}

const defaultLogsLimit = 50

// statusResponse is the poll-friendly projection of a session row.
type statusResponse struct {
	SessionID   string    `json:"sessionId"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"lastUpdated"`
	RiskScore   float64   `json:"riskScore"`
	FinalAction string    `json:"finalAction,omitempty"`
}

// Status GET /api/session/{id}/status
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validate.SessionID(id); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	sess, err := h.svc.Status(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := statusResponse{
		SessionID:   sess.SessionID,
		Status:      string(sess.Status),
		LastUpdated: sess.LastUpdatedAt,
		RiskScore:   sess.RiskScore,
	}
	if sess.FinalAction != nil {
		resp.FinalAction = string(*sess.FinalAction)
	}
	respond.WriteJSON(w, http.StatusOK, resp)
}

// Detail GET /api/session/{id}/detail
func (h *SessionHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validate.SessionID(id); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	detail, err := h.svc.Detail(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, detail)
}

// Logs GET /api/logs?limit=N
func (h *SessionHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respond.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	logs, err := h.svc.Logs(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// Reference the snapshot only when one was actually captured.
	for _, l := range logs {
		if _, err := os.Stat(h.layout.SnapshotPath(l.SessionID)); err == nil {
			l.ImageURL = orchestrator.SnapshotURL(l.SessionID)
		}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"sessions": logs})
}
