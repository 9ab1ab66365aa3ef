package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/dwarpal-ai/dwarpal/internal/fault"
	"github.com/dwarpal-ai/dwarpal/internal/model"
	"github.com/dwarpal-ai/dwarpal/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store and return it from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	sessionID := "s-" + uuid.New().String()
	deviceID := "front-door-1"

	// Sessions
	sess, err := s.Sessions().Create(ctx, &model.Session{SessionID: sessionID, DeviceID: deviceID})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Status != model.StatusQueued {
		t.Fatalf("CreateSession status: got %q want %q", sess.Status, model.StatusQueued)
	}
	if sess.RiskScore != 0 {
		t.Fatalf("CreateSession risk: got %v want 0", sess.RiskScore)
	}
	if _, err := s.Sessions().Create(ctx, &model.Session{SessionID: sessionID, DeviceID: deviceID}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate CreateSession: got %v want ErrConflict", err)
	}
	if _, err := s.Sessions().Get(ctx, "no-such-session"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetSession missing: got %v want ErrNotFound", err)
	}

	// Forward transitions move the status and stamp last_updated.
	if _, err := s.Sessions().UpdateStatus(ctx, sessionID, model.StatusProcessing, store.StatusUpdate{}); err != nil {
		t.Fatalf("UpdateStatus processing: %v", err)
	}
	if _, err := s.Sessions().UpdateStatus(ctx, sessionID, model.StatusPerceptionDone, store.StatusUpdate{}); err != nil {
		t.Fatalf("UpdateStatus perception_done: %v", err)
	}

	// Backward moves are rejected with a transition error.
	if _, err := s.Sessions().UpdateStatus(ctx, sessionID, model.StatusQueued, store.StatusUpdate{}); !fault.IsTransitionError(err) {
		t.Fatalf("backward UpdateStatus: got %v want TransitionError", err)
	}

	risk := 0.42
	action := model.ActionNotifyOwner
	sess, err = s.Sessions().UpdateStatus(ctx, sessionID, model.StatusIntelligenceDone, store.StatusUpdate{RiskScore: &risk})
	if err != nil {
		t.Fatalf("UpdateStatus intelligence_done: %v", err)
	}
	if sess.RiskScore != risk {
		t.Fatalf("risk after update: got %v want %v", sess.RiskScore, risk)
	}
	sess, err = s.Sessions().UpdateStatus(ctx, sessionID, model.StatusDecisionDone, store.StatusUpdate{FinalAction: &action})
	if err != nil {
		t.Fatalf("UpdateStatus decision_done: %v", err)
	}
	if sess.FinalAction == nil || *sess.FinalAction != action {
		t.Fatalf("final action after update: got %v want %v", sess.FinalAction, action)
	}
	if _, err := s.Sessions().UpdateStatus(ctx, sessionID, model.StatusCompleted, store.StatusUpdate{}); err != nil {
		t.Fatalf("UpdateStatus completed: %v", err)
	}

	// Terminal sessions are frozen, including against the error transition.
	if _, err := s.Sessions().UpdateStatus(ctx, sessionID, model.StatusError, store.StatusUpdate{}); !fault.IsTransitionError(err) {
		t.Fatalf("terminal UpdateStatus: got %v want TransitionError", err)
	}

	// The error transition is valid from any non-terminal status.
	errID := "s-" + uuid.New().String()
	if _, err := s.Sessions().Create(ctx, &model.Session{SessionID: errID, DeviceID: deviceID}); err != nil {
		t.Fatalf("CreateSession errID: %v", err)
	}
	reason := "stage panic"
	sess, err = s.Sessions().UpdateStatus(ctx, errID, model.StatusError, store.StatusUpdate{ErrorReason: &reason})
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if sess.ErrorReason == nil || *sess.ErrorReason != reason {
		t.Fatalf("error reason: got %v want %q", sess.ErrorReason, reason)
	}

	// List with filters.
	if lst, err := s.Sessions().List(ctx, store.ListSessionsRequest{DeviceID: deviceID}); err != nil || len(lst) < 2 {
		t.Fatalf("ListSessions by device: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Sessions().List(ctx, store.ListSessionsRequest{Status: model.StatusCompleted}); err != nil || len(lst) == 0 {
		t.Fatalf("ListSessions by status: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Sessions().List(ctx, store.ListSessionsRequest{Limit: 1}); err != nil || len(lst) != 1 {
		t.Fatalf("ListSessions limit: n=%d err=%v", len(lst), err)
	}

	// Perception reports are write-once.
	rep := &model.PerceptionReport{
		SessionID:        sessionID,
		PersonDetected:   true,
		Objects:          []model.ObjectDetection{{Label: "person", Confidence: 0.91}, {Label: "box", Confidence: 0.74}},
		VisionConfidence: 0.91,
		Transcript:       "parcel for you",
		STTConfidence:    0.8,
		Language:         model.LangLatin,
		Emotion:          model.EmotionNeutral,
		AntiSpoofScore:   0.1,
	}
	stored, inserted, err := s.Reports().PutPerception(ctx, rep)
	if err != nil || !inserted {
		t.Fatalf("PutPerception: inserted=%v err=%v", inserted, err)
	}
	if len(stored.Objects) != 2 {
		t.Fatalf("PutPerception objects: n=%d want 2", len(stored.Objects))
	}
	again, inserted, err := s.Reports().PutPerception(ctx, &model.PerceptionReport{SessionID: sessionID, Transcript: "overwrite attempt"})
	if err != nil || inserted {
		t.Fatalf("second PutPerception: inserted=%v err=%v", inserted, err)
	}
	if again.Transcript != "parcel for you" {
		t.Fatalf("second PutPerception returned new data: %q", again.Transcript)
	}
	if got, err := s.Reports().GetPerception(ctx, sessionID); err != nil || got.Objects[1].Label != "box" {
		t.Fatalf("GetPerception: got=%v err=%v", got, err)
	}
	if _, err := s.Reports().GetPerception(ctx, "no-such-session"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetPerception missing: got %v want ErrNotFound", err)
	}

	// Intelligence reports share the write-once contract.
	irep := &model.IntelligenceReport{
		SessionID: sessionID,
		Intent:    model.IntentDelivery,
		ReplyText: "Please leave the package at the doorstep.",
		RiskScore: 0.05,
		Tags:      []string{"package_detected"},
	}
	if _, inserted, err := s.Reports().PutIntelligence(ctx, irep); err != nil || !inserted {
		t.Fatalf("PutIntelligence: inserted=%v err=%v", inserted, err)
	}
	if _, inserted, err := s.Reports().PutIntelligence(ctx, &model.IntelligenceReport{SessionID: sessionID, Intent: model.IntentUnknown}); err != nil || inserted {
		t.Fatalf("second PutIntelligence: inserted=%v err=%v", inserted, err)
	}
	if got, err := s.Reports().GetIntelligence(ctx, sessionID); err != nil || got.Intent != model.IntentDelivery || len(got.Tags) != 1 {
		t.Fatalf("GetIntelligence: got=%v err=%v", got, err)
	}

	// Decisions.
	dir := &model.Directive{
		SessionID:   sessionID,
		FinalAction: model.ActionAutoReply,
		Reason:      "R2",
		Dispatch:    model.Dispatch{TTS: true},
	}
	if _, inserted, err := s.Decisions().Put(ctx, dir); err != nil || !inserted {
		t.Fatalf("PutDecision: inserted=%v err=%v", inserted, err)
	}
	if _, inserted, err := s.Decisions().Put(ctx, &model.Directive{SessionID: sessionID, FinalAction: model.ActionEscalate, Reason: "R1"}); err != nil || inserted {
		t.Fatalf("second PutDecision: inserted=%v err=%v", inserted, err)
	}
	if got, err := s.Decisions().Get(ctx, sessionID); err != nil || got.FinalAction != model.ActionAutoReply || !got.Dispatch.TTS {
		t.Fatalf("GetDecision: got=%v err=%v", got, err)
	}

	// Audit rows append-only; action rows come back through ListActions.
	a1, err := s.Audits().Append(ctx, &model.AuditRow{
		SessionID:  sessionID,
		Agent:      "orchestrator",
		ActionType: "status_transition",
		Status:     "queued->processing",
	})
	if err != nil || a1.ID == "" {
		t.Fatalf("AppendAudit: id=%q err=%v", a1.ID, err)
	}
	if _, err := s.Audits().Append(ctx, &model.AuditRow{
		SessionID:   sessionID,
		Agent:       "action",
		ActionType:  string(model.ActionAutoReply),
		PayloadJSON: `{"text":"Please leave the package at the doorstep."}`,
		Status:      string(model.ActionPlayed),
	}); err != nil {
		t.Fatalf("AppendAudit action: %v", err)
	}
	rows, err := s.Audits().ListBySession(ctx, sessionID)
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListBySession: n=%d err=%v", len(rows), err)
	}
	if rows[0].Agent != "orchestrator" {
		t.Fatalf("audit order: first agent %q", rows[0].Agent)
	}
	if recent, err := s.Audits().ListRecent(ctx, 1); err != nil || len(recent) != 1 {
		t.Fatalf("ListRecent: n=%d err=%v", len(recent), err)
	}
	acts, err := s.Audits().ListActions(ctx, sessionID)
	if err != nil || len(acts) != 1 {
		t.Fatalf("ListActions: n=%d err=%v", len(acts), err)
	}
	if acts[0].ActionType != model.ActionAutoReply || acts[0].Status != model.ActionPlayed {
		t.Fatalf("ListActions row: %+v", acts[0])
	}

	// Transcript sequence numbers are dense per session.
	t1, err := s.Transcripts().Append(ctx, &model.TranscriptEntry{SessionID: sessionID, Role: model.RoleVisitor, Content: "parcel for you"})
	if err != nil || t1.Seq != 1 {
		t.Fatalf("AppendTranscript t1: seq=%d err=%v", t1.Seq, err)
	}
	t2, err := s.Transcripts().Append(ctx, &model.TranscriptEntry{SessionID: sessionID, Role: model.RoleDoorbell, Content: "Please leave the package at the doorstep."})
	if err != nil || t2.Seq != 2 {
		t.Fatalf("AppendTranscript t2: seq=%d err=%v", t2.Seq, err)
	}
	other := "s-" + uuid.New().String()
	if _, err := s.Sessions().Create(ctx, &model.Session{SessionID: other, DeviceID: deviceID}); err != nil {
		t.Fatalf("CreateSession other: %v", err)
	}
	t3, err := s.Transcripts().Append(ctx, &model.TranscriptEntry{SessionID: other, Role: model.RoleVisitor, Content: "hello"})
	if err != nil || t3.Seq != 1 {
		t.Fatalf("AppendTranscript other session: seq=%d err=%v", t3.Seq, err)
	}
	if lst, err := s.Transcripts().ListBySession(ctx, sessionID); err != nil || len(lst) != 2 || lst[0].Seq != 1 {
		t.Fatalf("ListTranscripts: n=%d err=%v", len(lst), err)
	}

	// Owners and duplicate usernames.
	username := "owner-" + uuid.New().String()
	owner, err := s.Owners().Create(ctx, &model.Owner{Username: username, PasswordHash: "ab12", Salt: "cd34", DisplayName: "Asha"})
	if err != nil || owner.OwnerID == "" {
		t.Fatalf("CreateOwner: id=%q err=%v", owner.OwnerID, err)
	}
	if _, err := s.Owners().Create(ctx, &model.Owner{Username: username, PasswordHash: "x", Salt: "y"}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate CreateOwner: got %v want ErrConflict", err)
	}
	if got, err := s.Owners().GetByUsername(ctx, username); err != nil || got.OwnerID != owner.OwnerID {
		t.Fatalf("GetByUsername: got=%v err=%v", got, err)
	}
	if got, err := s.Owners().Get(ctx, owner.OwnerID); err != nil || got.Salt != "cd34" {
		t.Fatalf("GetOwner: got=%v err=%v", got, err)
	}

	// Tokens resolve to their owner and can be revoked.
	tok := "tok-" + uuid.New().String()
	if err := s.Tokens().Create(ctx, &model.Token{Token: tok, OwnerID: owner.OwnerID}); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if got, err := s.Tokens().GetOwner(ctx, tok); err != nil || got.OwnerID != owner.OwnerID {
		t.Fatalf("Token GetOwner: got=%v err=%v", got, err)
	}
	if err := s.Tokens().Delete(ctx, tok); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if _, err := s.Tokens().GetOwner(ctx, tok); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("revoked token GetOwner: got %v want ErrNotFound", err)
	}

	// Members CRUD.
	mem, err := s.Members().Create(ctx, &model.Member{OwnerID: owner.OwnerID, Name: "Ravi", Phone: "98765", Permitted: true})
	if err != nil || mem.MemberID == "" {
		t.Fatalf("CreateMember: id=%q err=%v", mem.MemberID, err)
	}
	if mem.Role != model.MemberFamily {
		t.Fatalf("CreateMember default role: got %q", mem.Role)
	}
	if lst, err := s.Members().List(ctx, owner.OwnerID); err != nil || len(lst) != 1 {
		t.Fatalf("ListMembers: n=%d err=%v", len(lst), err)
	}
	mem.Role = model.MemberStaff
	mem.Permitted = false
	upd, err := s.Members().Update(ctx, mem)
	if err != nil || upd.Role != model.MemberStaff || upd.Permitted {
		t.Fatalf("UpdateMember: got=%+v err=%v", upd, err)
	}
	if err := s.Members().SetPhoto(ctx, owner.OwnerID, mem.MemberID, "members/"+mem.MemberID+".jpg"); err != nil {
		t.Fatalf("SetPhoto: %v", err)
	}
	if got, err := s.Members().Get(ctx, owner.OwnerID, mem.MemberID); err != nil || got.PhotoPath == "" {
		t.Fatalf("GetMember after SetPhoto: got=%+v err=%v", got, err)
	}
	if err := s.Members().Delete(ctx, owner.OwnerID, mem.MemberID); err != nil {
		t.Fatalf("DeleteMember: %v", err)
	}
	if _, err := s.Members().Get(ctx, owner.OwnerID, mem.MemberID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetMember after delete: got %v want ErrNotFound", err)
	}
}
