package action

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/dwarpal-ai/dwarpal/internal/assets"
	"github.com/dwarpal-ai/dwarpal/internal/events"
	"github.com/dwarpal-ai/dwarpal/internal/model"
)

type fakeSynth struct {
	err   error
	text  string
	voice string
	out   string
}

func (f *fakeSynth) Synthesize(_ context.Context, text, voice, outPath string) error {
	f.text = text
	f.voice = voice
	f.out = outPath
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outPath, []byte("RIFF"), 0o600)
}

func newTestExecutor(t *testing.T, tts Synthesizer) (*Executor, *assets.Layout, *events.Bus) {
	t.Helper()
	layout := assets.NewLayout(t.TempDir())
	if err := layout.Ensure(); err != nil {
		t.Fatalf("layout.Ensure failed: %v", err)
	}
	bus := events.NewBus(events.DefaultBuffer)
	return NewExecutor(bus, layout, tts, 10*time.Second, zerolog.Nop()), layout, bus
}

func directive(action model.FinalAction) *model.Directive {
	return &model.Directive{
		SessionID:   "sess-act",
		FinalAction: action,
		Reason:      "R2",
		Timestamp:   time.Now().UTC(),
	}
}

func stageReports(reply string) (*model.IntelligenceReport, *model.PerceptionReport) {
	intel := &model.IntelligenceReport{
		SessionID: "sess-act",
		Intent:    model.IntentDelivery,
		ReplyText: reply,
		RiskScore: 0.12,
	}
	per := &model.PerceptionReport{
		SessionID: "sess-act",
		Language:  model.LangLatin,
		ImagePath: "/data/snaps/sess-act.jpg",
	}
	return intel, per
}

func TestExecuteAutoReplyTextOnly(t *testing.T) {
	ex, layout, _ := newTestExecutor(t, nil)
	intel, per := stageReports("Please leave the package at the doorstep.")

	res := ex.Execute(context.Background(), directive(model.ActionAutoReply), intel, per)

	if res.Status != model.ActionPlayed {
		t.Fatalf("status = %s, want played", res.Status)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(res.Payload), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	ttsFile, _ := payload["tts_file"].(string)
	if ttsFile != layout.TTSTextPath("sess-act") {
		t.Fatalf("tts_file = %q, want the text fallback path", ttsFile)
	}
	data, err := os.ReadFile(ttsFile)
	if err != nil {
		t.Fatalf("read tts text: %v", err)
	}
	if string(data) != intel.ReplyText {
		t.Fatalf("tts text = %q", data)
	}
}

func TestExecuteAutoReplySynthesized(t *testing.T) {
	synth := &fakeSynth{}
	ex, layout, _ := newTestExecutor(t, synth)
	intel, per := stageReports("Please leave the package at the doorstep.")

	res := ex.Execute(context.Background(), directive(model.ActionAutoReply), intel, per)

	if res.Status != model.ActionPlayed {
		t.Fatalf("status = %s, want played", res.Status)
	}
	if synth.voice != VoiceEnglish {
		t.Fatalf("voice = %q, want english for latin transcripts", synth.voice)
	}
	if synth.out != layout.TTSAudioPath("sess-act") {
		t.Fatalf("wav path = %q", synth.out)
	}
	if !strings.Contains(res.Payload, filepath.Base(synth.out)) {
		t.Fatalf("payload %q does not reference the wav", res.Payload)
	}
	// The text preview is written even when audio succeeds.
	if _, err := os.Stat(layout.TTSTextPath("sess-act")); err != nil {
		t.Fatalf("text preview missing: %v", err)
	}
}

func TestExecuteAutoReplyHindiVoice(t *testing.T) {
	synth := &fakeSynth{}
	ex, _, _ := newTestExecutor(t, synth)
	intel, per := stageReports("दरवाजे पर इंतज़ार करें")
	per.Language = model.LangDevanagari

	if res := ex.Execute(context.Background(), directive(model.ActionAutoReply), intel, per); res.Status != model.ActionPlayed {
		t.Fatalf("status = %s", res.Status)
	}
	if synth.voice != VoiceHindi {
		t.Fatalf("voice = %q, want hindi for devanagari transcripts", synth.voice)
	}
}

func TestExecuteAutoReplySanitizesBeforeSpeaking(t *testing.T) {
	synth := &fakeSynth{}
	ex, _, _ := newTestExecutor(t, synth)
	raw := "say \"hi\"\x00\n" + strings.Repeat("a", 300)
	intel, per := stageReports(raw)

	ex.Execute(context.Background(), directive(model.ActionAutoReply), intel, per)

	if strings.ContainsAny(synth.text, "\"\x00\n") {
		t.Fatalf("unsanitized text reached the synthesizer: %q", synth.text)
	}
	if utf8.RuneCountInString(synth.text) > maxReplyLen {
		t.Fatalf("text length = %d runes, want cap at %d", utf8.RuneCountInString(synth.text), maxReplyLen)
	}
	if !strings.HasPrefix(synth.text, "say 'hi'") {
		t.Fatalf("quote swap missing: %q", synth.text)
	}
}

func TestExecuteNotifyOwnerPublishes(t *testing.T) {
	ex, _, bus := newTestExecutor(t, nil)
	sub := bus.Subscribe(events.OwnerChannel)
	defer sub.Close()

	intel, per := stageReports("Please wait while I notify the owner.")
	intel.RiskScore = 0.48
	d := directive(model.ActionNotifyOwner)
	d.Reason = "R3"

	res := ex.Execute(context.Background(), d, intel, per)

	if res.Status != model.ActionQueued {
		t.Fatalf("status = %s, want queued", res.Status)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(res.Payload), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["message"] != intel.ReplyText {
		t.Fatalf("payload message = %v", payload["message"])
	}
	if payload["risk_score"] != 0.48 {
		t.Fatalf("payload risk_score = %v", payload["risk_score"])
	}
	if payload["image_path"] != per.ImagePath {
		t.Fatalf("payload image_path = %v", payload["image_path"])
	}
	if _, ok := payload["urgency"]; ok {
		t.Fatal("plain notification must not carry urgency")
	}

	select {
	case evt := <-sub.C:
		if evt.Kind != events.EventPipelineStage {
			t.Fatalf("event kind = %s", evt.Kind)
		}
		if evt.Data["status"] != "notify_owner" {
			t.Fatalf("event status = %v", evt.Data["status"])
		}
	case <-time.After(time.Second):
		t.Fatal("no owner event published")
	}
}

func TestExecuteEscalateSpeaksAndFlagsUrgency(t *testing.T) {
	synth := &fakeSynth{}
	ex, _, bus := newTestExecutor(t, synth)
	sub := bus.Subscribe(events.OwnerChannel)
	defer sub.Close()

	intel, per := stageReports("I have notified the owner and the security guard.")
	intel.RiskScore = 0.75
	d := directive(model.ActionEscalate)
	d.Reason = "R1"

	res := ex.Execute(context.Background(), d, intel, per)

	if res.Status != model.ActionQueued {
		t.Fatalf("status = %s, want queued", res.Status)
	}
	if synth.text != intel.ReplyText {
		t.Fatalf("spoken text = %q, want the security line", synth.text)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(res.Payload), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["urgency"] != "high" {
		t.Fatalf("urgency = %v, want high", payload["urgency"])
	}
	if _, ok := payload["tts_file"]; !ok {
		t.Fatal("escalation payload missing tts_file")
	}

	select {
	case evt := <-sub.C:
		if evt.Data["status"] != "escalate" {
			t.Fatalf("event status = %v", evt.Data["status"])
		}
	case <-time.After(time.Second):
		t.Fatal("no owner event published")
	}
}

func TestExecuteEscalateFailsWhenSpeechFails(t *testing.T) {
	synth := &fakeSynth{err: errors.New("no speaker")}
	ex, _, bus := newTestExecutor(t, synth)
	sub := bus.Subscribe(events.OwnerChannel)
	defer sub.Close()

	intel, per := stageReports("I have notified the owner and the security guard.")
	res := ex.Execute(context.Background(), directive(model.ActionEscalate), intel, per)

	if res.Status != model.ActionFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if !strings.Contains(res.Payload, "no speaker") {
		t.Fatalf("payload %q missing failure reason", res.Payload)
	}
	select {
	case evt := <-sub.C:
		t.Fatalf("unexpected owner event %v after failure", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestExecuteIgnore(t *testing.T) {
	ex, _, bus := newTestExecutor(t, nil)
	sub := bus.Subscribe(events.OwnerChannel)
	defer sub.Close()

	intel, per := stageReports("whatever")
	res := ex.Execute(context.Background(), directive(model.ActionIgnore), intel, per)

	if res.Status != model.ActionIgnored {
		t.Fatalf("status = %s, want ignored", res.Status)
	}
	select {
	case evt := <-sub.C:
		t.Fatalf("unexpected event %v for ignore", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hello", "hello"},
		{"say \"hi\"", "say 'hi'"},
		{"line\nbreak\ttab", "linebreaktab"},
		{"bell\x07char", "bellchar"},
		{"नमस्ते", "नमस्ते"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	long := strings.Repeat("x", 500)
	if got := Sanitize(long); utf8.RuneCountInString(got) != maxReplyLen {
		t.Errorf("cap = %d runes, want %d", utf8.RuneCountInString(got), maxReplyLen)
	}
}
