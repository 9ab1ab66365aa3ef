// Package action executes directives: it speaks replies through the TTS
// layer, pushes owner notifications onto the event bus, and reports what
// happened. It never decides and never retries; failures come back as
// status failed and the pipeline completes regardless.
package action

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/dwarpal-ai/dwarpal/internal/assets"
	"github.com/dwarpal-ai/dwarpal/internal/events"
	"github.com/dwarpal-ai/dwarpal/internal/model"
)

// maxReplyLen caps spoken text length in runes.
const maxReplyLen = 240

// Executor runs one directive at a time within its budget. Safe for
// concurrent use.
type Executor struct {
	bus    *events.Bus
	layout *assets.Layout
	tts    Synthesizer
	budget time.Duration
	log    zerolog.Logger
}

// NewExecutor creates an Executor. A nil synthesizer selects text-only
// mode: replies are written to disk but no audio is produced.
func NewExecutor(bus *events.Bus, layout *assets.Layout, tts Synthesizer, budget time.Duration, log zerolog.Logger) *Executor {
	if budget <= 0 {
		budget = 10 * time.Second
	}
	return &Executor{
		bus:    bus,
		layout: layout,
		tts:    tts,
		budget: budget,
		log:    log.With().Str("stage", "action").Logger(),
	}
}

// Execute performs the directive and returns the result. The caller
// persists it; Execute only touches disk, the speech command, and the
// event bus.
func (ex *Executor) Execute(ctx context.Context, d *model.Directive, intel *model.IntelligenceReport, per *model.PerceptionReport) *model.ActionResult {
	ctx, cancel := context.WithTimeout(ctx, ex.budget)
	defer cancel()

	res := &model.ActionResult{
		SessionID:  d.SessionID,
		ActionType: d.FinalAction,
		Timestamp:  time.Now().UTC(),
	}

	var err error
	switch d.FinalAction {
	case model.ActionAutoReply:
		var spoken string
		spoken, err = ex.Speak(ctx, d.SessionID, intel.ReplyText, per.Language)
		if err == nil {
			res.Status = model.ActionPlayed
			res.Payload = marshalPayload(map[string]any{"tts_file": spoken})
		}
	case model.ActionNotifyOwner:
		res.Status = model.ActionQueued
		res.Payload = marshalPayload(notifyPayload(intel, per, false))
		ex.publishOwner(d)
	case model.ActionEscalate:
		payload := notifyPayload(intel, per, true)
		var spoken string
		spoken, err = ex.Speak(ctx, d.SessionID, intel.ReplyText, per.Language)
		if err == nil {
			payload["tts_file"] = spoken
			res.Status = model.ActionQueued
			res.Payload = marshalPayload(payload)
			ex.publishOwner(d)
		}
	default:
		res.Status = model.ActionIgnored
	}

	if err != nil {
		res.Status = model.ActionFailed
		res.Payload = marshalPayload(map[string]any{"error": err.Error()})
		ex.log.Error().Err(err).
			Str("session_id", d.SessionID).
			Str("action", string(d.FinalAction)).
			Msg("Action execution failed")
	}

	actionsTotal.WithLabelValues(string(d.FinalAction), string(res.Status)).Inc()
	return res
}

// Speak writes the sanitized reply text for the session and, when a
// synthesizer is configured, renders it to WAV. Returns the path of
// whichever artifact the visitor-facing speaker should use. Owner replies
// reuse this path outside of directive execution.
func (ex *Executor) Speak(ctx context.Context, sessionID, text string, lang model.Language) (string, error) {
	safe := Sanitize(text)
	txtPath := ex.layout.TTSTextPath(sessionID)
	if err := assets.WriteFileAtomic(txtPath, []byte(safe), 0o600); err != nil {
		return "", err
	}
	if ex.tts == nil {
		return txtPath, nil
	}

	wavPath := ex.layout.TTSAudioPath(sessionID)
	start := time.Now()
	if err := ex.tts.Synthesize(ctx, safe, voiceFor(lang), wavPath); err != nil {
		return "", err
	}
	ttsDuration.Observe(time.Since(start).Seconds())
	return wavPath, nil
}

func (ex *Executor) publishOwner(d *model.Directive) {
	ex.bus.Publish(events.OwnerChannel, events.PipelineStage(d.SessionID, string(d.FinalAction)))
}

func notifyPayload(intel *model.IntelligenceReport, per *model.PerceptionReport, urgent bool) map[string]any {
	payload := map[string]any{
		"message":    intel.ReplyText,
		"risk_score": intel.RiskScore,
		"image_path": per.ImagePath,
	}
	if urgent {
		payload["urgency"] = "high"
	}
	return payload
}

func marshalPayload(payload map[string]any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(raw)
}

// Sanitize makes reply text safe to hand to the speech command: printable
// runes only, double quotes swapped for singles, capped at 240 runes.
func Sanitize(text string) string {
	var b strings.Builder
	n := 0
	for _, r := range text {
		if !unicode.IsPrint(r) {
			continue
		}
		if r == '"' {
			r = '\''
		}
		b.WriteRune(r)
		n++
		if n == maxReplyLen {
			break
		}
	}
	return b.String()
}

func voiceFor(lang model.Language) string {
	if lang == model.LangDevanagari {
		return VoiceHindi
	}
	return VoiceEnglish
}
