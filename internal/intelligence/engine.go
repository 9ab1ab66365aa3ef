// Package intelligence turns a PerceptionReport into an IntelligenceReport:
// a classified intent, a composite risk score, an escalation flag, and the
// line the doorbell speaks. Ring scoring is fully deterministic; only
// conversational follow-ups may consult the optional reply provider.
package intelligence

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/dwarpal-ai/dwarpal/internal/intelligence/replyprov"
	"github.com/dwarpal-ai/dwarpal/internal/model"
	"github.com/dwarpal-ai/dwarpal/internal/vocab"
)

const (
	escalationThreshold = 0.70
	weaponRiskFloor     = 0.75
	nightAdjustment     = 0.30
	entryAdjustment     = 0.20
	historyTurns        = 2
)

// Canned reply lines. Text spoken at the door never discloses risk scores,
// occupancy, or anything else the pipeline inferred.
const (
	EscalationReply = "I have notified the owner and the security guard."
	HoldReply       = "Please wait while I notify the owner."
	DeliveryReply   = "Please leave the package at the doorstep."
	FallbackReply   = "Thank you, the owner has been notified."
)

var intentReplies = map[model.Intent]string{
	model.IntentDelivery:          DeliveryReply,
	model.IntentHelp:              "Emergency assistance has been requested. Please stay where you are.",
	model.IntentVisitor:           "Please wait while I inform the owner of your visit.",
	model.IntentUnknown:           HoldReply,
	model.IntentOccupancyProbe:    HoldReply,
	model.IntentReligiousDonation: "The owner has been informed. Please try another time.",
	model.IntentDomesticStaff:     "Please wait while I confirm your visit with the owner.",
	model.IntentSalesMarketing:    "We are not taking offers at the door. Thank you.",
	model.IntentChildElderly:      "Please wait right there. The owner has been told you need help.",
	model.IntentGovernmentClaim:   "Please hold your ID to the camera and wait while I notify the owner.",
}

// Engine scores visits. It is safe for concurrent use.
type Engine struct {
	replies replyprov.Provider
	log     zerolog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithReplyProvider enables LLM-backed conversational replies. Without it
// follow-up turns get the canned fallback line.
func WithReplyProvider(p replyprov.Provider) Option {
	return func(e *Engine) { e.replies = p }
}

// NewEngine creates an Engine.
func NewEngine(log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{log: log.With().Str("stage", "intelligence").Logger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze produces the intelligence report for one ring. Classification and
// scoring are pure functions of the perception report, so repeated calls
// with the same input yield the same output.
func (e *Engine) Analyze(rep *model.PerceptionReport) *model.IntelligenceReport {
	transcript := vocab.Normalize(rep.Transcript)
	packageSeen := packageDetected(rep.Objects)
	intent := classify(transcript, packageSeen)

	risk := 0.5*(1-rep.VisionConfidence) +
		0.3*rep.AntiSpoofScore +
		0.2*emotionWeight(rep.Emotion)
	risk += intentAdjustment(intent, packageSeen)

	escalate := false
	if rep.WeaponDetected {
		risk = math.Max(risk, weaponRiskFloor)
		escalate = true
	}
	night := isNightHour(rep.Timestamp)
	if night {
		risk += nightAdjustment
	}
	entry := vocab.Matches(transcript, vocab.Entry)
	if entry {
		risk += entryAdjustment
		escalate = true
	}
	risk = round3(clamp01(risk))
	if risk >= escalationThreshold {
		escalate = true
	}

	tags := []string{string(intent)}
	if packageSeen {
		tags = append(tags, "package_detected")
	}
	if rep.WeaponDetected {
		tags = append(tags, "weapon")
	}
	if night {
		tags = append(tags, "night_hours")
	}
	if entry {
		tags = append(tags, "entry_vocab")
	}

	reportsTotal.WithLabelValues(string(intent)).Inc()
	if escalate {
		escalationsTotal.Inc()
	}
	e.log.Debug().
		Str("session_id", rep.SessionID).
		Str("intent", string(intent)).
		Float64("risk", risk).
		Bool("escalation_required", escalate).
		Msg("Visit scored")

	return &model.IntelligenceReport{
		SessionID:          rep.SessionID,
		Intent:             intent,
		ReplyText:          replyFor(intent, escalate),
		RiskScore:          risk,
		EscalationRequired: escalate,
		Tags:               tags,
		Timestamp:          time.Now().UTC(),
	}
}

// classify maps a normalized transcript to an intent. First match wins;
// the order below is fixed so that high-stakes intents shadow benign ones.
func classify(transcript string, packageSeen bool) model.Intent {
	if transcript == "" {
		return model.IntentUnknown
	}
	switch {
	case vocab.Matches(transcript, vocab.Threat):
		return model.IntentAggression
	case vocab.Matches(transcript, vocab.Emergency):
		return model.IntentHelp
	case vocab.Matches(transcript, vocab.Scam):
		return model.IntentScamAttempt
	case vocab.Matches(transcript, vocab.Occupancy):
		return model.IntentOccupancyProbe
	case vocab.Matches(transcript, vocab.Identity):
		return model.IntentIdentityClaim
	case vocab.Matches(transcript, vocab.Entry):
		return model.IntentEntryRequest
	case vocab.Matches(transcript, vocab.Government):
		return model.IntentGovernmentClaim
	case vocab.Matches(transcript, vocab.Staff):
		return model.IntentDomesticStaff
	case vocab.Matches(transcript, vocab.Religious):
		return model.IntentReligiousDonation
	case vocab.Matches(transcript, vocab.Sales):
		// A courier pitching an order drop-off is a delivery, not a pitch.
		if packageSeen && vocab.Matches(transcript, vocab.Delivery) {
			return model.IntentDelivery
		}
		return model.IntentSalesMarketing
	case vocab.Matches(transcript, vocab.ChildElderly) &&
		(vocab.Matches(transcript, vocab.Hydration) || vocab.Matches(transcript, vocab.Distress)):
		return model.IntentChildElderly
	case vocab.Matches(transcript, vocab.Delivery):
		return model.IntentDelivery
	case vocab.Matches(transcript, vocab.Visitor):
		return model.IntentVisitor
	default:
		return model.IntentUnknown
	}
}

func intentAdjustment(intent model.Intent, packageSeen bool) float64 {
	switch intent {
	case model.IntentScamAttempt:
		return 0.50
	case model.IntentAggression:
		return 0.60
	case model.IntentOccupancyProbe:
		return 0.40
	case model.IntentEntryRequest:
		return 0.55
	case model.IntentIdentityClaim:
		return 0.25
	case model.IntentGovernmentClaim:
		return 0.30
	case model.IntentDelivery:
		if packageSeen {
			return -0.20
		}
		return 0.30
	case model.IntentDomesticStaff:
		return 0.15
	case model.IntentUnknown:
		return 0.10
	default:
		return 0
	}
}

func emotionWeight(e model.Emotion) float64 {
	switch e {
	case model.EmotionAggressive:
		return 0.6
	case model.EmotionDistressed:
		return 0.4
	default:
		return 0.2
	}
}

func replyFor(intent model.Intent, escalated bool) string {
	if escalated {
		return EscalationReply
	}
	if reply, ok := intentReplies[intent]; ok {
		return reply
	}
	return HoldReply
}

func packageDetected(objs []model.ObjectDetection) bool {
	labels := make([]string, 0, len(objs))
	for _, o := range objs {
		labels = append(labels, o.Label)
	}
	return vocab.ContainsLabel(labels, vocab.PackageLabels)
}

func isNightHour(t time.Time) bool {
	h := t.Local().Hour()
	return h >= 22 || h < 5
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
