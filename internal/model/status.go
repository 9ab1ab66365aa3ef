package model

// SessionStatus is the lifecycle state of a session. Transitions move
// forward only; StatusError is terminal and reachable from any non-terminal
// state.
type SessionStatus string

const (
	StatusQueued           SessionStatus = "queued"
	StatusProcessing       SessionStatus = "processing"
	StatusPerceptionDone   SessionStatus = "perception_done"
	StatusIntelligenceDone SessionStatus = "intelligence_done"
	StatusDecisionDone     SessionStatus = "decision_done"
	StatusCompleted        SessionStatus = "completed"
	StatusError            SessionStatus = "error"
)

var statusRank = map[SessionStatus]int{
	StatusQueued:           0,
	StatusProcessing:       1,
	StatusPerceptionDone:   2,
	StatusIntelligenceDone: 3,
	StatusDecisionDone:     4,
	StatusCompleted:        5,
}

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	if s == StatusError {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether no further transitions are allowed from s.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransition reports whether a session may move from s to next.
// Forward-only; error overrides any non-terminal state; terminal states
// never change.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s.Terminal() {
		return false
	}
	if next == StatusError {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// Intent is one of the fixed visitor intent labels. Classification order is
// defined by the intelligence engine, not by this type.
type Intent string

const (
	IntentDelivery          Intent = "delivery"
	IntentVisitor           Intent = "visitor"
	IntentSalesMarketing    Intent = "sales_marketing"
	IntentReligiousDonation Intent = "religious_donation"
	IntentDomesticStaff     Intent = "domestic_staff"
	IntentGovernmentClaim   Intent = "government_claim"
	IntentScamAttempt       Intent = "scam_attempt"
	IntentOccupancyProbe    Intent = "occupancy_probe"
	IntentIdentityClaim     Intent = "identity_claim"
	IntentEntryRequest      Intent = "entry_request"
	IntentAggression        Intent = "aggression"
	IntentChildElderly      Intent = "child_elderly"
	IntentHelp              Intent = "help"
	IntentUnknown           Intent = "unknown"
)

// Intents lists every label the classifier may emit.
var Intents = []Intent{
	IntentDelivery, IntentVisitor, IntentSalesMarketing, IntentReligiousDonation,
	IntentDomesticStaff, IntentGovernmentClaim, IntentScamAttempt, IntentOccupancyProbe,
	IntentIdentityClaim, IntentEntryRequest, IntentAggression, IntentChildElderly,
	IntentHelp, IntentUnknown,
}

// Valid reports whether i is a known intent label.
func (i Intent) Valid() bool {
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// Emotion is the coarse affect detected in the visitor transcript.
type Emotion string

const (
	EmotionNeutral    Emotion = "neutral"
	EmotionDistressed Emotion = "distressed"
	EmotionAggressive Emotion = "aggressive"
)

// Valid reports whether e is a known emotion.
func (e Emotion) Valid() bool {
	return e == EmotionNeutral || e == EmotionDistressed || e == EmotionAggressive
}

// FinalAction is what the system ultimately does about a visit.
type FinalAction string

const (
	ActionAutoReply   FinalAction = "auto_reply"
	ActionNotifyOwner FinalAction = "notify_owner"
	ActionEscalate    FinalAction = "escalate"
	ActionIgnore      FinalAction = "ignore"
)

// Valid reports whether a is a known final action.
func (a FinalAction) Valid() bool {
	return a == ActionAutoReply || a == ActionNotifyOwner || a == ActionEscalate || a == ActionIgnore
}

// ActionStatus is the terminal state of one executed action.
type ActionStatus string

const (
	ActionPlayed  ActionStatus = "played"
	ActionQueued  ActionStatus = "queued"
	ActionIgnored ActionStatus = "ignored"
	ActionFailed  ActionStatus = "failed"
)

// Language is the detected script of the visitor transcript.
type Language string

const (
	LangLatin      Language = "latin"
	LangDevanagari Language = "devanagari"
	LangUnknown    Language = "unknown"
)

// Agent names used in audit rows. AgentAction rows double as the session's
// executed-action history.
const (
	AgentOrchestrator = "orchestrator"
	AgentIntelligence = "intelligence"
	AgentAction       = "action"
)

// Role identifies who produced a transcript entry. Owner replies are spoken
// through the doorbell, so they carry the doorbell role with an owner
// marker prefixed to the content.
type Role string

const (
	RoleVisitor  Role = "visitor"
	RoleDoorbell Role = "doorbell"
)

// OwnerMarker prefixes doorbell-role content that originated from the owner.
const OwnerMarker = "[Owner] "

// Valid reports whether r is a known transcript role.
func (r Role) Valid() bool {
	return r == RoleVisitor || r == RoleDoorbell
}

// MemberRole classifies registered household members.
type MemberRole string

const (
	MemberFamily          MemberRole = "family"
	MemberStaff           MemberRole = "staff"
	MemberFrequentVisitor MemberRole = "frequent_visitor"
)

// Valid reports whether m is a known member role.
func (m MemberRole) Valid() bool {
	return m == MemberFamily || m == MemberStaff || m == MemberFrequentVisitor
}
