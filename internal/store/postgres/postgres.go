package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dwarpal-ai/dwarpal/internal/fault"
	"github.com/dwarpal-ai/dwarpal/internal/model"
	"github.com/dwarpal-ai/dwarpal/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates all tables if they do not exist. Deployments that
// manage schema with migrations can skip this; it is idempotent either way.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
            id TEXT PRIMARY KEY,
            device_id TEXT NOT NULL,
            status TEXT NOT NULL,
            risk_score DOUBLE PRECISION NOT NULL DEFAULT 0,
            final_action TEXT,
            error_reason TEXT,
            created_at TIMESTAMPTZ NOT NULL,
            last_updated TIMESTAMPTZ NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS sessions_created_idx ON sessions(created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS perception_reports (
            session_id TEXT PRIMARY KEY REFERENCES sessions(id),
            person_detected BOOLEAN NOT NULL DEFAULT FALSE,
            objects JSONB,
            vision_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
            transcript TEXT NOT NULL DEFAULT '',
            stt_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
            language TEXT NOT NULL DEFAULT 'unknown',
            emotion TEXT NOT NULL DEFAULT 'neutral',
            anti_spoof_score DOUBLE PRECISION NOT NULL DEFAULT 0,
            weapon_detected BOOLEAN NOT NULL DEFAULT FALSE,
            weapon_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
            weapon_labels JSONB,
            image_path TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS intelligence_reports (
            session_id TEXT PRIMARY KEY REFERENCES sessions(id),
            intent TEXT NOT NULL,
            reply_text TEXT NOT NULL DEFAULT '',
            risk_score DOUBLE PRECISION NOT NULL DEFAULT 0,
            escalation_required BOOLEAN NOT NULL DEFAULT FALSE,
            tags JSONB,
            created_at TIMESTAMPTZ NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS decisions (
            session_id TEXT PRIMARY KEY REFERENCES sessions(id),
            final_action TEXT NOT NULL,
            reason TEXT NOT NULL,
            tts BOOLEAN NOT NULL DEFAULT FALSE,
            notify_owner BOOLEAN NOT NULL DEFAULT FALSE,
            escalate BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS actions (
            id TEXT PRIMARY KEY,
            session_id TEXT NOT NULL,
            agent_name TEXT NOT NULL,
            action_type TEXT NOT NULL,
            payload TEXT,
            status TEXT NOT NULL,
            short_reason TEXT NOT NULL DEFAULT '',
            timestamp TIMESTAMPTZ NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS actions_session_idx ON actions(session_id, timestamp);`,
		`CREATE TABLE IF NOT EXISTS transcripts (
            session_id TEXT NOT NULL,
            seq INTEGER NOT NULL,
            role TEXT NOT NULL,
            content TEXT NOT NULL,
            timestamp TIMESTAMPTZ NOT NULL,
            PRIMARY KEY (session_id, seq)
        );`,
		`CREATE TABLE IF NOT EXISTS owners (
            id TEXT PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            salt TEXT NOT NULL,
            name TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            id TEXT PRIMARY KEY,
            owner_id TEXT NOT NULL REFERENCES owners(id),
            name TEXT NOT NULL,
            phone TEXT NOT NULL DEFAULT '',
            role TEXT NOT NULL DEFAULT 'family',
            photo_path TEXT NOT NULL DEFAULT '',
            permitted BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS tokens (
            token TEXT PRIMARY KEY,
            owner_id TEXT NOT NULL REFERENCES owners(id),
            created_at TIMESTAMPTZ NOT NULL
        );`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Bootstrap performs a connectivity check to ensure Postgres is reachable.
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil
	}
	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.PingContext(ctx)
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Sessions() store.Sessions       { return &sessions{db: s.db} }
func (s *pgStore) Reports() store.Reports         { return &reports{db: s.db} }
func (s *pgStore) Decisions() store.Decisions     { return &decisions{db: s.db} }
func (s *pgStore) Audits() store.Audits           { return &audits{db: s.db} }
func (s *pgStore) Transcripts() store.Transcripts { return &transcripts{db: s.db} }
func (s *pgStore) Owners() store.Owners           { return &owners{db: s.db} }
func (s *pgStore) Members() store.Members         { return &members{db: s.db} }
func (s *pgStore) Tokens() store.Tokens           { return &tokens{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- Sessions ---

type sessions struct{ db *sql.DB }

const sessionCols = `id, device_id, status, risk_score, final_action, error_reason, created_at, last_updated`

func scanSession(row *sql.Row) (*model.Session, error) {
	var out model.Session
	var status string
	var finalAction, errorReason sql.NullString
	err := row.Scan(&out.SessionID, &out.DeviceID, &status, &out.RiskScore,
		&finalAction, &errorReason, &out.CreatedAt, &out.LastUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.Status = model.SessionStatus(status)
	if finalAction.Valid {
		fa := model.FinalAction(finalAction.String)
		out.FinalAction = &fa
	}
	if errorReason.Valid {
		out.ErrorReason = &errorReason.String
	}
	return &out, nil
}

func getSession(ctx context.Context, q queryRower, sessionID string) (*model.Session, error) {
	return scanSession(q.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE id=$1`, sessionID))
}

func (s *sessions) Create(ctx context.Context, m *model.Session) (*model.Session, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id=$1`, m.SessionID).Scan(&exists)
	if err == nil {
		return nil, model.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	out := *m
	if out.Status == "" {
		out.Status = model.StatusQueued
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	out.CreatedAt = out.CreatedAt.UTC()
	out.LastUpdatedAt = out.CreatedAt

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO sessions (id, device_id, status, risk_score, created_at, last_updated)
        VALUES ($1,$2,$3,$4,$5,$6)
    `, out.SessionID, out.DeviceID, string(out.Status), out.RiskScore, out.CreatedAt, out.LastUpdatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *sessions) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	return getSession(ctx, s.db, sessionID)
}

func (s *sessions) UpdateStatus(ctx context.Context, sessionID string, next model.SessionStatus, upd store.StatusUpdate) (*model.Session, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var curStr string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM sessions WHERE id=$1 FOR UPDATE`, sessionID).Scan(&curStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cur := model.SessionStatus(curStr)
	if !cur.CanTransition(next) {
		return nil, fault.NewTransitionError(sessionID, string(cur), string(next))
	}

	set := []string{`status=$1`, `last_updated=$2`}
	args := []any{string(next), time.Now().UTC()}
	n := 3
	if upd.RiskScore != nil {
		set = append(set, fmt.Sprintf(`risk_score=$%d`, n))
		args = append(args, *upd.RiskScore)
		n++
	}
	if upd.FinalAction != nil {
		set = append(set, fmt.Sprintf(`final_action=$%d`, n))
		args = append(args, string(*upd.FinalAction))
		n++
	}
	if upd.ErrorReason != nil {
		set = append(set, fmt.Sprintf(`error_reason=$%d`, n))
		args = append(args, *upd.ErrorReason)
		n++
	}
	args = append(args, sessionID)

	query := fmt.Sprintf(`UPDATE sessions SET %s WHERE id=$%d`, strings.Join(set, ", "), n)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	out, err := getSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sessions) List(ctx context.Context, req store.ListSessionsRequest) ([]*model.Session, error) {
	query := `SELECT ` + sessionCols + ` FROM sessions`
	var conds []string
	var args []any
	n := 1
	if req.Status != "" {
		conds = append(conds, fmt.Sprintf(`status=$%d`, n))
		args = append(args, string(req.Status))
		n++
	}
	if req.DeviceID != "" {
		conds = append(conds, fmt.Sprintf(`device_id=$%d`, n))
		args = append(args, req.DeviceID)
		n++
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Session
	for rows.Next() {
		var m model.Session
		var status string
		var finalAction, errorReason sql.NullString
		if err := rows.Scan(&m.SessionID, &m.DeviceID, &status, &m.RiskScore,
			&finalAction, &errorReason, &m.CreatedAt, &m.LastUpdatedAt); err != nil {
			return nil, err
		}
		m.Status = model.SessionStatus(status)
		if finalAction.Valid {
			fa := model.FinalAction(finalAction.String)
			m.FinalAction = &fa
		}
		if errorReason.Valid {
			m.ErrorReason = &errorReason.String
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- Reports ---

type reports struct{ db *sql.DB }

const perceptionCols = `session_id, person_detected, objects, vision_confidence, transcript,
        stt_confidence, language, emotion, anti_spoof_score, weapon_detected,
        weapon_confidence, weapon_labels, image_path, created_at`

func scanPerception(row *sql.Row) (*model.PerceptionReport, error) {
	var out model.PerceptionReport
	var objects, weaponLabels sql.NullString
	var language, emotion string
	err := row.Scan(&out.SessionID, &out.PersonDetected, &objects, &out.VisionConfidence,
		&out.Transcript, &out.STTConfidence, &language, &emotion, &out.AntiSpoofScore,
		&out.WeaponDetected, &out.WeaponConfidence, &weaponLabels, &out.ImagePath, &out.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.Language = model.Language(language)
	out.Emotion = model.Emotion(emotion)
	if objects.Valid {
		_ = json.Unmarshal([]byte(objects.String), &out.Objects)
	}
	if weaponLabels.Valid {
		_ = json.Unmarshal([]byte(weaponLabels.String), &out.WeaponLabels)
	}
	return &out, nil
}

func getPerception(ctx context.Context, q queryRower, sessionID string) (*model.PerceptionReport, error) {
	return scanPerception(q.QueryRowContext(ctx,
		`SELECT `+perceptionCols+` FROM perception_reports WHERE session_id=$1`, sessionID))
}

func (r *reports) PutPerception(ctx context.Context, rep *model.PerceptionReport) (*model.PerceptionReport, bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := getPerception(ctx, tx, rep.SessionID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, false, err
	}

	out := *rep
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	out.Timestamp = out.Timestamp.UTC()
	objects, _ := json.Marshal(out.Objects)
	weaponLabels, _ := json.Marshal(out.WeaponLabels)

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO perception_reports (session_id, person_detected, objects, vision_confidence,
            transcript, stt_confidence, language, emotion, anti_spoof_score,
            weapon_detected, weapon_confidence, weapon_labels, image_path, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    `, out.SessionID, out.PersonDetected, nullIfEmpty(objects), out.VisionConfidence,
		out.Transcript, out.STTConfidence, string(out.Language), string(out.Emotion),
		out.AntiSpoofScore, out.WeaponDetected, out.WeaponConfidence,
		nullIfEmpty(weaponLabels), out.ImagePath, out.Timestamp); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &out, true, nil
}

func (r *reports) GetPerception(ctx context.Context, sessionID string) (*model.PerceptionReport, error) {
	return getPerception(ctx, r.db, sessionID)
}

const intelligenceCols = `session_id, intent, reply_text, risk_score, escalation_required, tags, created_at`

func scanIntelligence(row *sql.Row) (*model.IntelligenceReport, error) {
	var out model.IntelligenceReport
	var intent string
	var tags sql.NullString
	err := row.Scan(&out.SessionID, &intent, &out.ReplyText, &out.RiskScore,
		&out.EscalationRequired, &tags, &out.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.Intent = model.Intent(intent)
	if tags.Valid {
		_ = json.Unmarshal([]byte(tags.String), &out.Tags)
	}
	return &out, nil
}

func getIntelligence(ctx context.Context, q queryRower, sessionID string) (*model.IntelligenceReport, error) {
	return scanIntelligence(q.QueryRowContext(ctx,
		`SELECT `+intelligenceCols+` FROM intelligence_reports WHERE session_id=$1`, sessionID))
}

func (r *reports) PutIntelligence(ctx context.Context, rep *model.IntelligenceReport) (*model.IntelligenceReport, bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := getIntelligence(ctx, tx, rep.SessionID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, false, err
	}

	out := *rep
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	out.Timestamp = out.Timestamp.UTC()
	tags, _ := json.Marshal(out.Tags)

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO intelligence_reports (session_id, intent, reply_text, risk_score,
            escalation_required, tags, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, out.SessionID, string(out.Intent), out.ReplyText, out.RiskScore,
		out.EscalationRequired, nullIfEmpty(tags), out.Timestamp); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &out, true, nil
}

func (r *reports) GetIntelligence(ctx context.Context, sessionID string) (*model.IntelligenceReport, error) {
	return getIntelligence(ctx, r.db, sessionID)
}

// --- Decisions ---

type decisions struct{ db *sql.DB }

func scanDecision(row *sql.Row) (*model.Directive, error) {
	var out model.Directive
	var action string
	err := row.Scan(&out.SessionID, &action, &out.Reason, &out.Dispatch.TTS,
		&out.Dispatch.NotifyOwner, &out.Dispatch.Escalate, &out.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.FinalAction = model.FinalAction(action)
	return &out, nil
}

func getDecision(ctx context.Context, q queryRower, sessionID string) (*model.Directive, error) {
	return scanDecision(q.QueryRowContext(ctx, `
        SELECT session_id, final_action, reason, tts, notify_owner, escalate, created_at
        FROM decisions WHERE session_id=$1`, sessionID))
}

func (d *decisions) Put(ctx context.Context, dir *model.Directive) (*model.Directive, bool, error) {
	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := getDecision(ctx, tx, dir.SessionID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, false, err
	}

	out := *dir
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	out.Timestamp = out.Timestamp.UTC()

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO decisions (session_id, final_action, reason, tts, notify_owner, escalate, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, out.SessionID, string(out.FinalAction), out.Reason, out.Dispatch.TTS,
		out.Dispatch.NotifyOwner, out.Dispatch.Escalate, out.Timestamp); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &out, true, nil
}

func (d *decisions) Get(ctx context.Context, sessionID string) (*model.Directive, error) {
	return getDecision(ctx, d.db, sessionID)
}

// --- Audits ---

type audits struct{ db *sql.DB }

const auditCols = `id, session_id, agent_name, action_type, payload, status, short_reason, timestamp`

func (a *audits) Append(ctx context.Context, row *model.AuditRow) (*model.AuditRow, error) {
	out := *row
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	out.Timestamp = out.Timestamp.UTC()

	var payload any
	if out.PayloadJSON != "" {
		payload = out.PayloadJSON
	}
	if _, err := a.db.ExecContext(ctx, `
        INSERT INTO actions (id, session_id, agent_name, action_type, payload, status, short_reason, timestamp)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, out.ID, out.SessionID, out.Agent, out.ActionType, payload, out.Status,
		out.ShortReason, out.Timestamp); err != nil {
		return nil, err
	}
	return &out, nil
}

func scanAuditRows(rows *sql.Rows) ([]*model.AuditRow, error) {
	defer func() { _ = rows.Close() }()
	var out []*model.AuditRow
	for rows.Next() {
		var m model.AuditRow
		var payload sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Agent, &m.ActionType,
			&payload, &m.Status, &m.ShortReason, &m.Timestamp); err != nil {
			return nil, err
		}
		m.PayloadJSON = payload.String
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (a *audits) ListBySession(ctx context.Context, sessionID string) ([]*model.AuditRow, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT `+auditCols+` FROM actions WHERE session_id=$1 ORDER BY timestamp, id`, sessionID)
	if err != nil {
		return nil, err
	}
	return scanAuditRows(rows)
}

func (a *audits) ListRecent(ctx context.Context, limit int) ([]*model.AuditRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT `+auditCols+` FROM actions ORDER BY timestamp DESC, id DESC LIMIT %d`, limit))
	if err != nil {
		return nil, err
	}
	return scanAuditRows(rows)
}

func (a *audits) ListActions(ctx context.Context, sessionID string) ([]*model.ActionResult, error) {
	rows, err := a.db.QueryContext(ctx, `
        SELECT session_id, action_type, payload, status, timestamp
        FROM actions WHERE session_id=$1 AND agent_name=$2 ORDER BY timestamp, id
    `, sessionID, model.AgentAction)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.ActionResult
	for rows.Next() {
		var m model.ActionResult
		var actionType, status string
		var payload sql.NullString
		if err := rows.Scan(&m.SessionID, &actionType, &payload, &status, &m.Timestamp); err != nil {
			return nil, err
		}
		m.ActionType = model.FinalAction(actionType)
		m.Status = model.ActionStatus(status)
		m.Payload = payload.String
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- Transcripts ---

type transcripts struct{ db *sql.DB }

func (t *transcripts) Append(ctx context.Context, e *model.TranscriptEntry) (*model.TranscriptEntry, error) {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq),0)+1 FROM transcripts WHERE session_id=$1`, e.SessionID).Scan(&seq); err != nil {
		return nil, err
	}

	out := *e
	out.Seq = seq
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	out.Timestamp = out.Timestamp.UTC()

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO transcripts (session_id, seq, role, content, timestamp)
        VALUES ($1,$2,$3,$4,$5)
    `, out.SessionID, out.Seq, string(out.Role), out.Content, out.Timestamp); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *transcripts) ListBySession(ctx context.Context, sessionID string) ([]*model.TranscriptEntry, error) {
	rows, err := t.db.QueryContext(ctx, `
        SELECT session_id, seq, role, content, timestamp
        FROM transcripts WHERE session_id=$1 ORDER BY seq
    `, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.TranscriptEntry
	for rows.Next() {
		var m model.TranscriptEntry
		var role string
		if err := rows.Scan(&m.SessionID, &m.Seq, &role, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- Owners ---

type owners struct{ db *sql.DB }

const ownerCols = `id, username, password_hash, salt, name, created_at`

func scanOwner(row *sql.Row) (*model.Owner, error) {
	var out model.Owner
	err := row.Scan(&out.OwnerID, &out.Username, &out.PasswordHash, &out.Salt,
		&out.DisplayName, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *owners) Create(ctx context.Context, m *model.Owner) (*model.Owner, error) {
	tx, err := o.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM owners WHERE username=$1`, m.Username).Scan(&exists)
	if err == nil {
		return nil, model.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	out := *m
	if out.OwnerID == "" {
		out.OwnerID = uuid.New().String()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	out.CreatedAt = out.CreatedAt.UTC()

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO owners (id, username, password_hash, salt, name, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
    `, out.OwnerID, out.Username, out.PasswordHash, out.Salt, out.DisplayName, out.CreatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *owners) Get(ctx context.Context, ownerID string) (*model.Owner, error) {
	return scanOwner(o.db.QueryRowContext(ctx,
		`SELECT `+ownerCols+` FROM owners WHERE id=$1`, ownerID))
}

func (o *owners) GetByUsername(ctx context.Context, username string) (*model.Owner, error) {
	return scanOwner(o.db.QueryRowContext(ctx,
		`SELECT `+ownerCols+` FROM owners WHERE username=$1`, username))
}

// --- Members ---

type members struct{ db *sql.DB }

const memberCols = `id, owner_id, name, phone, role, photo_path, permitted, created_at`

func scanMember(row *sql.Row) (*model.Member, error) {
	var out model.Member
	var role string
	err := row.Scan(&out.MemberID, &out.OwnerID, &out.Name, &out.Phone, &role,
		&out.PhotoPath, &out.Permitted, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.Role = model.MemberRole(role)
	return &out, nil
}

func (m *members) Create(ctx context.Context, mm *model.Member) (*model.Member, error) {
	out := *mm
	if out.MemberID == "" {
		out.MemberID = uuid.New().String()
	}
	if out.Role == "" {
		out.Role = model.MemberFamily
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	out.CreatedAt = out.CreatedAt.UTC()

	if _, err := m.db.ExecContext(ctx, `
        INSERT INTO members (id, owner_id, name, phone, role, photo_path, permitted, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, out.MemberID, out.OwnerID, out.Name, out.Phone, string(out.Role),
		out.PhotoPath, out.Permitted, out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *members) Get(ctx context.Context, ownerID, memberID string) (*model.Member, error) {
	return scanMember(m.db.QueryRowContext(ctx,
		`SELECT `+memberCols+` FROM members WHERE id=$1 AND owner_id=$2`, memberID, ownerID))
}

func (m *members) List(ctx context.Context, ownerID string) ([]*model.Member, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+memberCols+` FROM members WHERE owner_id=$1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Member
	for rows.Next() {
		var mm model.Member
		var role string
		if err := rows.Scan(&mm.MemberID, &mm.OwnerID, &mm.Name, &mm.Phone, &role,
			&mm.PhotoPath, &mm.Permitted, &mm.CreatedAt); err != nil {
			return nil, err
		}
		mm.Role = model.MemberRole(role)
		out = append(out, &mm)
	}
	return out, rows.Err()
}

func (m *members) Update(ctx context.Context, mm *model.Member) (*model.Member, error) {
	res, err := m.db.ExecContext(ctx, `
        UPDATE members SET name=$1, phone=$2, role=$3, permitted=$4
        WHERE id=$5 AND owner_id=$6
    `, mm.Name, mm.Phone, string(mm.Role), mm.Permitted, mm.MemberID, mm.OwnerID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return m.Get(ctx, mm.OwnerID, mm.MemberID)
}

func (m *members) Delete(ctx context.Context, ownerID, memberID string) error {
	res, err := m.db.ExecContext(ctx,
		`DELETE FROM members WHERE id=$1 AND owner_id=$2`, memberID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (m *members) SetPhoto(ctx context.Context, ownerID, memberID, photoPath string) error {
	res, err := m.db.ExecContext(ctx,
		`UPDATE members SET photo_path=$1 WHERE id=$2 AND owner_id=$3`, photoPath, memberID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- Tokens ---

type tokens struct{ db *sql.DB }

func (t *tokens) Create(ctx context.Context, tk *model.Token) error {
	created := tk.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := t.db.ExecContext(ctx, `
        INSERT INTO tokens (token, owner_id, created_at) VALUES ($1,$2,$3)
    `, tk.Token, tk.OwnerID, created.UTC())
	return err
}

func (t *tokens) GetOwner(ctx context.Context, token string) (*model.Owner, error) {
	return scanOwner(t.db.QueryRowContext(ctx, `
        SELECT o.id, o.username, o.password_hash, o.salt, o.name, o.created_at
        FROM tokens tk JOIN owners o ON o.id = tk.owner_id
        WHERE tk.token=$1
    `, token))
}

func (t *tokens) Delete(ctx context.Context, token string) error {
	res, err := t.db.ExecContext(ctx, `DELETE FROM tokens WHERE token=$1`, token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// helpers

func nullIfEmpty(b []byte) any {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return string(b)
}
