package perception

import (
	"context"
	"math"

	"github.com/dwarpal-ai/dwarpal/internal/model"
	"github.com/dwarpal-ai/dwarpal/internal/vocab"
)

// RingMedia is the staged media for one ring turn. Paths are empty when the
// caller received no corresponding payload.
type RingMedia struct {
	SessionID string
	ImagePath string
	AudioPath string
}

// Provider analyzes ring media and produces a raw perception report.
// Implementations fill detection and transcription fields; derived fields
// (anti-spoof, emotion, language, weapon flags) are computed afterwards by
// Enrich so every provider yields consistent reports.
type Provider interface {
	Analyze(ctx context.Context, media RingMedia) (*model.PerceptionReport, error)
}

// Transcriber is the speech-to-text slice of a provider, used by the
// standalone transcription endpoint. Both bundled providers implement it.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (transcript string, confidence float64, err error)
}

// weaponConfidenceThreshold is the minimum object confidence for a
// weapon-labeled detection to count.
const weaponConfidenceThreshold = 0.6

// Enrich derives the rule-based report fields from the raw detections and
// transcript. audioPresent reports whether the ring carried audio at all,
// which feeds the anti-spoof heuristic.
func Enrich(rep *model.PerceptionReport, audioPresent bool) {
	normalized := vocab.Normalize(rep.Transcript)

	switch {
	case rep.Transcript == "":
		rep.Language = model.LangUnknown
	case vocab.HasDevanagari(rep.Transcript):
		rep.Language = model.LangDevanagari
	default:
		rep.Language = model.LangLatin
	}

	switch {
	case vocab.Matches(normalized, vocab.Threat):
		rep.Emotion = model.EmotionAggressive
	case vocab.Matches(normalized, vocab.Distress):
		rep.Emotion = model.EmotionDistressed
	default:
		rep.Emotion = model.EmotionNeutral
	}

	if !rep.WeaponDetected {
		for _, obj := range rep.Objects {
			if obj.Confidence >= weaponConfidenceThreshold && vocab.ContainsLabel([]string{obj.Label}, vocab.WeaponLabels) {
				rep.WeaponDetected = true
				rep.WeaponLabels = append(rep.WeaponLabels, obj.Label)
				if obj.Confidence > rep.WeaponConfidence {
					rep.WeaponConfidence = obj.Confidence
				}
			}
		}
	}

	rep.AntiSpoofScore = antiSpoofScore(rep, audioPresent)
}

// antiSpoofScore estimates how likely the ring was not produced by a real
// person at the door.
func antiSpoofScore(rep *model.PerceptionReport, audioPresent bool) float64 {
	score := 0.0
	if !rep.PersonDetected {
		score = 0.9
	} else if rep.VisionConfidence <= 0.5 {
		score += 0.3
	}
	if audioPresent && rep.Transcript == "" {
		score += 0.2
	}
	if !audioPresent {
		score += 0.1
	}
	return round3(clamp01(score))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
