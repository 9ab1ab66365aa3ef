package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dwarpal-ai/dwarpal/internal/api/respond"
	"github.com/dwarpal-ai/dwarpal/internal/api/validate"
	"github.com/dwarpal-ai/dwarpal/internal/model"
	"github.com/dwarpal-ai/dwarpal/internal/orchestrator"
)

// RingHandler is the ingress surface: doorbell presses and follow-up
// conversation turns.
type RingHandler struct {
	orch *orchestrator.Orchestrator
}

func NewRingHandler(orch *orchestrator.Orchestrator) *RingHandler {
	return &RingHandler{orch: orch}
}

// ringRequest is the device-facing wire shape. Devices send snake_case;
// responses use the camelCase of the rest of the API.
type ringRequest struct {
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	DeviceID  string         `json:"device_id"`
	ImageB64  string         `json:"image_base64"`
	AudioB64  string         `json:"audio_base64"`
	Metadata  map[string]any `json:"metadata"`
}

type replyRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Ring POST /api/ring
func (h *RingHandler) Ring(w http.ResponseWriter, r *http.Request) {
	var req ringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.DeviceID(req.DeviceID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if req.SessionID != "" {
		if err := validate.SessionID(req.SessionID); err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	adm, err := h.orch.HandleRing(r.Context(), &model.RingEvent{
		SessionID: req.SessionID,
		Timestamp: req.Timestamp,
		DeviceID:  req.DeviceID,
		ImageB64:  req.ImageB64,
		AudioB64:  req.AudioB64,
		Metadata:  req.Metadata,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, adm)
}

// AIReply POST /api/ai-reply
//
// Runs one conversation turn inline: the visitor message is transcribed
// into the session log and the generated reply comes back in the response
// as well as on the session's event channel.
func (h *RingHandler) AIReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.SessionID(req.SessionID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.Message(req.Message); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	reply, err := h.orch.ConversationTurn(r.Context(), req.SessionID, req.Message, false)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"sessionId": req.SessionID,
		"reply":     reply,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// OwnerReply POST /api/owner-reply (authenticated)
//
// Relays the owner's message to the visitor: transcript entry with the
// owner marker, owner_reply event on the session channel, and speech
// through the doorbell speaker. No reply is generated.
func (h *RingHandler) OwnerReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.SessionID(req.SessionID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.Message(req.Message); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := h.orch.HandleOwnerReply(r.Context(), req.SessionID, req.Message); err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{
		"sessionId": req.SessionID,
		"status":    "sent",
	})
}
