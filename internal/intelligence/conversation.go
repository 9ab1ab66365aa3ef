package intelligence

import (
	"context"
	"fmt"
	"strings"

	"github.com/dwarpal-ai/dwarpal/internal/fault"
	"github.com/dwarpal-ai/dwarpal/internal/intelligence/replyprov"
	"github.com/dwarpal-ai/dwarpal/internal/model"
)

// ConversationReply produces the doorbell's answer for one follow-up turn.
// Without a provider it returns the canned fallback. Provider output goes
// through the safety scan: on a violation the canned hold line is returned
// together with the ContractViolation so the caller can audit and count it.
// Transient provider failures surface as errors; callers fall back to
// FallbackReply.
func (e *Engine) ConversationReply(ctx context.Context, sessionID, message string, fromOwner bool, history []*model.TranscriptEntry, rep *model.PerceptionReport) (string, error) {
	if e.replies == nil {
		return FallbackReply, nil
	}

	req := replyprov.Request{
		SessionID:  sessionID,
		Message:    message,
		FromOwner:  fromOwner,
		History:    recentTurns(history, historyTurns),
		Perception: sceneSummary(rep),
	}
	text, err := e.replies.Reply(ctx, req)
	if err != nil {
		return "", err
	}
	if rule, ok := scanReply(text); !ok {
		contractViolationsTotal.WithLabelValues(rule).Inc()
		e.log.Warn().
			Str("session_id", sessionID).
			Str("rule", rule).
			Msg("Generated reply suppressed by the output contract")
		return HoldReply, fault.NewContractViolation(rule, "generated reply suppressed")
	}
	return text, nil
}

// recentTurns maps the newest n transcript entries onto provider turns.
// Owner replies are stored under the doorbell role with the owner marker,
// so the marker decides the speaker.
func recentTurns(entries []*model.TranscriptEntry, n int) []replyprov.Turn {
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	turns := make([]replyprov.Turn, 0, len(entries))
	for _, t := range entries {
		speaker := replyprov.SpeakerVisitor
		text := t.Content
		if t.Role == model.RoleDoorbell {
			if strings.HasPrefix(text, model.OwnerMarker) {
				speaker = replyprov.SpeakerOwner
				text = strings.TrimPrefix(text, model.OwnerMarker)
			} else {
				speaker = replyprov.SpeakerDoorbell
			}
		}
		turns = append(turns, replyprov.Turn{Speaker: speaker, Text: text})
	}
	return turns
}

// sceneSummary condenses a perception report into one provider-facing line.
// Risk inputs stay out of it.
func sceneSummary(rep *model.PerceptionReport) string {
	if rep == nil {
		return ""
	}
	parts := []string{fmt.Sprintf("person_detected=%t", rep.PersonDetected)}
	if len(rep.Objects) > 0 {
		labels := make([]string, 0, len(rep.Objects))
		for _, o := range rep.Objects {
			labels = append(labels, o.Label)
		}
		parts = append(parts, "objects="+strings.Join(labels, ","))
	}
	if rep.Emotion != "" {
		parts = append(parts, "emotion="+string(rep.Emotion))
	}
	return strings.Join(parts, " ")
}
