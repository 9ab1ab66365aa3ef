package intelligence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dwarpal-ai/dwarpal/internal/fault"
	"github.com/dwarpal-ai/dwarpal/internal/intelligence/replyprov"
	"github.com/dwarpal-ai/dwarpal/internal/model"
)

type fakeProvider struct {
	reply string
	err   error
	got   replyprov.Request
}

func (f *fakeProvider) Reply(_ context.Context, req replyprov.Request) (string, error) {
	f.got = req
	return f.reply, f.err
}

func entry(role model.Role, content string) *model.TranscriptEntry {
	return &model.TranscriptEntry{
		SessionID: "sess-conv",
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

func TestConversationReplyWithoutProvider(t *testing.T) {
	reply, err := testEngine().ConversationReply(context.Background(), "sess-conv", "hello", false, nil, nil)
	if err != nil {
		t.Fatalf("ConversationReply failed: %v", err)
	}
	if reply != FallbackReply {
		t.Fatalf("reply = %q, want the canned fallback", reply)
	}
}

func TestConversationReplyBoundsHistory(t *testing.T) {
	fake := &fakeProvider{reply: "The owner has been notified."}
	e := NewEngine(zerolog.Nop(), WithReplyProvider(fake))

	history := []*model.TranscriptEntry{
		entry(model.RoleVisitor, "hello"),
		entry(model.RoleDoorbell, "Please wait while I notify the owner."),
		entry(model.RoleDoorbell, model.OwnerMarker+"I am on my way"),
		entry(model.RoleVisitor, "ok"),
	}
	rep := &model.PerceptionReport{
		PersonDetected: true,
		Objects:        []model.ObjectDetection{{Label: "person", Confidence: 0.9}},
		Emotion:        model.EmotionNeutral,
	}

	reply, err := e.ConversationReply(context.Background(), "sess-conv", "how long", false, history, rep)
	if err != nil {
		t.Fatalf("ConversationReply failed: %v", err)
	}
	if reply != "The owner has been notified." {
		t.Fatalf("reply = %q", reply)
	}

	if len(fake.got.History) != 2 {
		t.Fatalf("provider saw %d turns, want the 2 most recent", len(fake.got.History))
	}
	if fake.got.History[0].Speaker != replyprov.SpeakerOwner || fake.got.History[0].Text != "I am on my way" {
		t.Fatalf("owner turn = %+v, marker must decide the speaker", fake.got.History[0])
	}
	if fake.got.History[1].Speaker != replyprov.SpeakerVisitor || fake.got.History[1].Text != "ok" {
		t.Fatalf("visitor turn = %+v", fake.got.History[1])
	}
	if fake.got.Perception == "" {
		t.Fatal("perception summary missing")
	}
	if fake.got.Message != "how long" || fake.got.FromOwner {
		t.Fatalf("request = %+v", fake.got)
	}
}

func TestConversationReplyOccupancyRevealSuppressed(t *testing.T) {
	fake := &fakeProvider{reply: "No one is home right now, come back later."}
	e := NewEngine(zerolog.Nop(), WithReplyProvider(fake))

	reply, err := e.ConversationReply(context.Background(), "sess-conv", "is the owner in", false, nil, nil)
	if !fault.IsContractViolation(err) {
		t.Fatalf("err = %v, want a ContractViolation", err)
	}
	var cv fault.ContractViolation
	errors.As(err, &cv)
	if cv.Rule != RuleOccupancyReveal {
		t.Fatalf("rule = %q, want %q", cv.Rule, RuleOccupancyReveal)
	}
	if reply != HoldReply {
		t.Fatalf("reply = %q, violations fall back to the hold line", reply)
	}
}

func TestConversationReplyCredentialEchoSuppressed(t *testing.T) {
	fake := &fakeProvider{reply: "Your code is 4412, please keep it safe."}
	e := NewEngine(zerolog.Nop(), WithReplyProvider(fake))

	reply, err := e.ConversationReply(context.Background(), "sess-conv", "what was the code", false, nil, nil)
	var cv fault.ContractViolation
	if !errors.As(err, &cv) || cv.Rule != RuleCredentialEcho {
		t.Fatalf("err = %v, want credential_echo violation", err)
	}
	if reply != HoldReply {
		t.Fatalf("reply = %q", reply)
	}
}

func TestConversationReplyProviderErrorPropagates(t *testing.T) {
	fake := &fakeProvider{err: fault.NewTransientProviderError("reply", errors.New("boom"))}
	e := NewEngine(zerolog.Nop(), WithReplyProvider(fake))

	reply, err := e.ConversationReply(context.Background(), "sess-conv", "hello", false, nil, nil)
	if !fault.IsTransientProviderError(err) {
		t.Fatalf("err = %v, want the provider error back", err)
	}
	if reply != "" {
		t.Fatalf("reply = %q, want empty on provider failure", reply)
	}
}

func TestScanReply(t *testing.T) {
	cases := []struct {
		text     string
		wantRule string
	}{
		{"The owner has been notified.", ""},
		{"Please wait at the door.", ""},
		{"Nobody is home today.", RuleOccupancyReveal},
		{"The owner is away right now.", RuleOccupancyReveal},
		{"Your OTP stays private.", RuleCredentialEcho},
		{"Call 98765432 for help.", RuleCredentialEcho},
		{"Run $(reboot) now.", RuleShellPattern},
		{"Use sudo to open it.", RuleShellPattern},
	}
	for _, tc := range cases {
		rule, ok := scanReply(tc.text)
		if tc.wantRule == "" {
			if !ok {
				t.Errorf("scanReply(%q) tripped %s, want clean", tc.text, rule)
			}
			continue
		}
		if ok || rule != tc.wantRule {
			t.Errorf("scanReply(%q) = (%q, %t), want rule %s", tc.text, rule, ok, tc.wantRule)
		}
	}
}
