package api

import (
	"encoding/json"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dwarpal-ai/dwarpal/internal/action"
	"github.com/dwarpal-ai/dwarpal/internal/api/respond"
	"github.com/dwarpal-ai/dwarpal/internal/api/validate"
	"github.com/dwarpal-ai/dwarpal/internal/assets"
	"github.com/dwarpal-ai/dwarpal/internal/model"
	"github.com/dwarpal-ai/dwarpal/internal/perception"
	"github.com/dwarpal-ai/dwarpal/internal/vocab"
)

// MediaHandler serves the standalone speech endpoints: transcription of a
// posted clip and text-to-speech rendering outside of any pipeline run.
type MediaHandler struct {
	transcriber perception.Transcriber
	executor    *action.Executor
	layout      *assets.Layout
}

func NewMediaHandler(t perception.Transcriber, ex *action.Executor, layout *assets.Layout) *MediaHandler {
	return &MediaHandler{transcriber: t, executor: ex, layout: layout}
}

type transcribeRequest struct {
	AudioB64 string `json:"audio_base64"`
}

type ttsRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

// Transcribe POST /api/transcribe
//
// The clip lands in the scratch area only for the duration of the STT call.
func (h *MediaHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if req.AudioB64 == "" {
		respond.WriteBadRequest(w, "audio_base64 is required")
		return
	}
	path, err := h.layout.WriteScratchAudio(req.AudioB64)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	defer os.Remove(path)

	transcript, confidence, err := h.transcriber.Transcribe(r.Context(), path)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"transcript": transcript,
		"confidence": math.Round(confidence*1000) / 1000,
	})
}

// TTS POST /api/tts
//
// Renders text through the doorbell speaker path without a live session.
// When no session id is given a throwaway one is minted so the artifact
// has a home under tts/. The audioUrl is null when no synthesizer is
// configured; the sanitized text preview is still written.
func (h *MediaHandler) TTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.Message(req.Text); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	sid := req.SessionID
	if sid == "" {
		sid = "tts_" + uuid.NewString()[:8]
	} else if err := validate.SessionID(sid); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	lang := model.LangLatin
	if vocab.HasDevanagari(req.Text) {
		lang = model.LangDevanagari
	}
	path, err := h.executor.Speak(r.Context(), sid, req.Text, lang)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var audioURL any
	if strings.HasSuffix(path, ".wav") {
		audioURL = "/static/tts/" + filepath.Base(path)
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"audioUrl":  audioURL,
		"sessionId": sid,
	})
}
