package model

import "time"

// Session tracks one visitor interaction from ring to final action.
// RiskScore starts at zero and is overwritten once the intelligence stage
// has scored the visit; FinalAction stays nil until a decision lands.
type Session struct {
	SessionID     string       `json:"sessionId"`
	DeviceID      string       `json:"deviceId"`
	Status        SessionStatus `json:"status"`
	RiskScore     float64      `json:"riskScore"`
	FinalAction   *FinalAction `json:"finalAction,omitempty"`
	ErrorReason   *string      `json:"errorReason,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	LastUpdatedAt time.Time    `json:"lastUpdatedAt"`
}

// RingEvent is the ingress record for one doorbell press or follow-up
// utterance. It is consumed by the orchestrator and never persisted as-is.
type RingEvent struct {
	SessionID string         `json:"sessionId,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	DeviceID  string         `json:"deviceId"`
	ImageB64  string         `json:"imageB64,omitempty"`
	AudioB64  string         `json:"audioB64,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ObjectDetection is one labelled object found in the snapshot.
type ObjectDetection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// PerceptionReport is the perception stage output for one turn: what was
// seen, what was heard, and how much to trust either.
type PerceptionReport struct {
	SessionID        string            `json:"sessionId"`
	PersonDetected   bool              `json:"personDetected"`
	Objects          []ObjectDetection `json:"objects"`
	VisionConfidence float64           `json:"visionConfidence"`
	Transcript       string            `json:"transcript"`
	STTConfidence    float64           `json:"sttConfidence"`
	Language         Language          `json:"language"`
	Emotion          Emotion           `json:"emotion"`
	AntiSpoofScore   float64           `json:"antiSpoofScore"`
	WeaponDetected   bool              `json:"weaponDetected"`
	WeaponConfidence float64           `json:"weaponConfidence,omitempty"`
	WeaponLabels     []string          `json:"weaponLabels,omitempty"`
	ImagePath        string            `json:"imagePath,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// IntelligenceReport is the intelligence stage output for one turn.
type IntelligenceReport struct {
	SessionID          string    `json:"sessionId"`
	Intent             Intent    `json:"intent"`
	ReplyText          string    `json:"replyText"`
	RiskScore          float64   `json:"riskScore"`
	EscalationRequired bool      `json:"escalationRequired"`
	Tags               []string  `json:"tags,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// Dispatch is the channel fan-out a directive asks for.
type Dispatch struct {
	TTS         bool `json:"tts"`
	NotifyOwner bool `json:"notifyOwner"`
	Escalate    bool `json:"escalate"`
}

// Directive is the decision stage output: what the action stage must do
// and which rule fired.
type Directive struct {
	SessionID   string      `json:"sessionId"`
	FinalAction FinalAction `json:"finalAction"`
	Reason      string      `json:"reason"`
	Dispatch    Dispatch    `json:"dispatch"`
	Timestamp   time.Time   `json:"timestamp"`
}

// ActionResult records the outcome of executing a directive.
type ActionResult struct {
	SessionID  string       `json:"sessionId"`
	Status     ActionStatus `json:"status"`
	ActionType FinalAction  `json:"actionType"`
	Payload    string       `json:"payload,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// TranscriptEntry is one utterance in a session conversation. Seq is
// assigned by the store and is dense per session. Owner replies are stored
// under the doorbell role with an owner marker in the content.
type TranscriptEntry struct {
	SessionID string    `json:"sessionId"`
	Seq       int       `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditRow is one append-only audit record.
type AuditRow struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Agent       string    `json:"agent"`
	ActionType  string    `json:"actionType"`
	PayloadJSON string    `json:"payloadJson,omitempty"`
	Status      string    `json:"status"`
	ShortReason string    `json:"shortReason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Owner is the authenticated account that receives notifications and may
// answer the door remotely.
type Owner struct {
	OwnerID      string    `json:"ownerId"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
	DisplayName  string    `json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Token maps an opaque bearer token to an owner.
type Token struct {
	Token     string    `json:"token"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Member is a known household member or frequent visitor registered by the
// owner.
type Member struct {
	MemberID  string     `json:"memberId"`
	OwnerID   string     `json:"ownerId"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone,omitempty"`
	Role      MemberRole `json:"role"`
	PhotoPath string     `json:"photoPath,omitempty"`
	Permitted bool       `json:"permitted"`
	CreatedAt time.Time  `json:"createdAt"`
}

// DevicePolicy carries the per-device knobs consulted by the decision
// stage. Policies come from configuration, not the database.
type DevicePolicy struct {
	DeviceID       string `json:"deviceId"`
	AllowAutoReply bool   `json:"allowAutoReply"`
}

// SessionDetail aggregates everything known about a session for the detail
// endpoint. Absent stages are nil.
type SessionDetail struct {
	Session      *Session            `json:"session"`
	Perception   *PerceptionReport   `json:"perception,omitempty"`
	Intelligence *IntelligenceReport `json:"intelligence,omitempty"`
	Decision     *Directive          `json:"decision,omitempty"`
	Actions      []*ActionResult     `json:"actions"`
	Transcript   []*TranscriptEntry  `json:"transcript"`
}

// SessionLog is one row of the activity feed: a session with its transcript
// embedded and a reference to its snapshot image.
type SessionLog struct {
	*Session
	Transcript []*TranscriptEntry `json:"transcript"`
	ImageURL   string             `json:"imageUrl,omitempty"`
}
