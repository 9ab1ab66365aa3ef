package store

import (
	"context"

	"github.com/dwarpal-ai/dwarpal/internal/model"
)

// Store exposes persistence operations required by the pipeline and the API.
// Implementations live under internal/store/<driver>/ (sqlite, postgres).
type Store interface {
	Sessions() Sessions
	Reports() Reports
	Decisions() Decisions
	Audits() Audits
	Transcripts() Transcripts
	Owners() Owners
	Members() Members
	Tokens() Tokens
}

// StatusUpdate carries the optional fields a status transition may set
// alongside the new status. Nil fields are left untouched.
type StatusUpdate struct {
	RiskScore   *float64
	FinalAction *model.FinalAction
	ErrorReason *string
}

// ListSessionsRequest filters session listings. Zero values mean no filter;
// Limit <= 0 falls back to a server-side default.
type ListSessionsRequest struct {
	Limit    int
	Status   model.SessionStatus
	DeviceID string
}

type Sessions interface {
	// Create inserts a new session. A duplicate id returns model.ErrConflict.
	Create(ctx context.Context, s *model.Session) (*model.Session, error)
	Get(ctx context.Context, sessionID string) (*model.Session, error)
	// UpdateStatus moves a session to next and applies upd atomically.
	// Backward or terminal-escaping moves return a fault.TransitionError;
	// the error transition is allowed from any non-terminal status.
	UpdateStatus(ctx context.Context, sessionID string, next model.SessionStatus, upd StatusUpdate) (*model.Session, error)
	List(ctx context.Context, req ListSessionsRequest) ([]*model.Session, error)
}

type Reports interface {
	// PutPerception stores the report for its session. Writing twice is a
	// no-op that returns the stored report; the bool reports whether this
	// call inserted it.
	PutPerception(ctx context.Context, r *model.PerceptionReport) (*model.PerceptionReport, bool, error)
	GetPerception(ctx context.Context, sessionID string) (*model.PerceptionReport, error)
	PutIntelligence(ctx context.Context, r *model.IntelligenceReport) (*model.IntelligenceReport, bool, error)
	GetIntelligence(ctx context.Context, sessionID string) (*model.IntelligenceReport, error)
}

type Decisions interface {
	// Put stores the directive for its session with the same write-once
	// semantics as Reports.
	Put(ctx context.Context, d *model.Directive) (*model.Directive, bool, error)
	Get(ctx context.Context, sessionID string) (*model.Directive, error)
}

type Audits interface {
	// Append writes one audit row and returns it with its assigned id.
	Append(ctx context.Context, row *model.AuditRow) (*model.AuditRow, error)
	ListBySession(ctx context.Context, sessionID string) ([]*model.AuditRow, error)
	ListRecent(ctx context.Context, limit int) ([]*model.AuditRow, error)
	// ListActions returns the executed-action rows for a session in
	// chronological order.
	ListActions(ctx context.Context, sessionID string) ([]*model.ActionResult, error)
}

type Transcripts interface {
	// Append assigns the next per-session sequence number and stores the
	// entry.
	Append(ctx context.Context, e *model.TranscriptEntry) (*model.TranscriptEntry, error)
	ListBySession(ctx context.Context, sessionID string) ([]*model.TranscriptEntry, error)
}

type Owners interface {
	// Create inserts a new owner. A duplicate username returns
	// model.ErrConflict.
	Create(ctx context.Context, o *model.Owner) (*model.Owner, error)
	Get(ctx context.Context, ownerID string) (*model.Owner, error)
	GetByUsername(ctx context.Context, username string) (*model.Owner, error)
}

type Members interface {
	Create(ctx context.Context, m *model.Member) (*model.Member, error)
	Get(ctx context.Context, ownerID, memberID string) (*model.Member, error)
	List(ctx context.Context, ownerID string) ([]*model.Member, error)
	Update(ctx context.Context, m *model.Member) (*model.Member, error)
	Delete(ctx context.Context, ownerID, memberID string) error
	SetPhoto(ctx context.Context, ownerID, memberID, photoPath string) error
}

type Tokens interface {
	Create(ctx context.Context, t *model.Token) error
	// GetOwner resolves a bearer token to its owner, or model.ErrNotFound.
	GetOwner(ctx context.Context, token string) (*model.Owner, error)
	Delete(ctx context.Context, token string) error
}
