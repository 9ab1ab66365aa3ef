package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/dwarpal-ai/dwarpal/internal/model"
	"github.com/dwarpal-ai/dwarpal/internal/store"
	"github.com/dwarpal-ai/dwarpal/internal/store/sqlite"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "doorbell.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlite.EnsureSchema(db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return sqlite.NewWithDB(db)
}

func TestDetailAggregatesStages(t *testing.T) {
	st := newTestStore(t)
	svc := NewSessionService(st)
	ctx := context.Background()

	if _, err := st.Sessions().Create(ctx, &model.Session{SessionID: "sess-1", DeviceID: "door-1"}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, _, err := st.Reports().PutPerception(ctx, &model.PerceptionReport{
		SessionID:  "sess-1",
		Transcript: "hello",
		Timestamp:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("put perception: %v", err)
	}
	if _, err := st.Transcripts().Append(ctx, &model.TranscriptEntry{
		SessionID: "sess-1", Role: model.RoleVisitor, Content: "hello",
	}); err != nil {
		t.Fatalf("append transcript: %v", err)
	}

	detail, err := svc.Detail(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if detail.Session == nil || detail.Session.SessionID != "sess-1" {
		t.Fatalf("detail session: %+v", detail.Session)
	}
	if detail.Perception == nil || detail.Perception.Transcript != "hello" {
		t.Fatalf("detail perception: %+v", detail.Perception)
	}
	if detail.Intelligence != nil || detail.Decision != nil {
		t.Fatal("stages that never ran should be nil")
	}
	if len(detail.Transcript) != 1 || len(detail.Actions) != 0 {
		t.Fatalf("detail transcript=%d actions=%d", len(detail.Transcript), len(detail.Actions))
	}
}

func TestDetailUnknownSession(t *testing.T) {
	svc := NewSessionService(newTestStore(t))
	if _, err := svc.Detail(context.Background(), "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestLogsNewestFirstWithTranscripts(t *testing.T) {
	st := newTestStore(t)
	svc := NewSessionService(st)
	ctx := context.Background()

	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		sid := fmt.Sprintf("sess-%d", i)
		if _, err := st.Sessions().Create(ctx, &model.Session{
			SessionID: sid,
			DeviceID:  "door-1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("create %s: %v", sid, err)
		}
		if _, err := st.Transcripts().Append(ctx, &model.TranscriptEntry{
			SessionID: sid, Role: model.RoleVisitor, Content: fmt.Sprintf("ring %d", i),
		}); err != nil {
			t.Fatalf("transcript %s: %v", sid, err)
		}
	}

	logs, err := svc.Logs(ctx, 2)
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("log rows: got %d, want 2", len(logs))
	}
	if logs[0].SessionID != "sess-2" || logs[1].SessionID != "sess-1" {
		t.Fatalf("log order: got %s, %s", logs[0].SessionID, logs[1].SessionID)
	}
	if len(logs[0].Transcript) != 1 || logs[0].Transcript[0].Content != "ring 2" {
		t.Fatalf("embedded transcript: %+v", logs[0].Transcript)
	}
}
