package perception

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dwarpal-ai/dwarpal/internal/model"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func jpegBytes() []byte { return []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10} }

func wavBytes() []byte {
	return append([]byte("RIFF\x24\x00\x00\x00WAVE"), []byte("fmt ")...)
}

func TestHeuristicNoMedia(t *testing.T) {
	p := NewHeuristicProvider(zerolog.Nop())
	rep, err := p.Analyze(context.Background(), RingMedia{SessionID: "s1"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rep.PersonDetected || rep.VisionConfidence != 0 || rep.Transcript != "" {
		t.Fatalf("expected empty report, got %+v", rep)
	}
}

func TestHeuristicImagePresent(t *testing.T) {
	img := writeFile(t, "snap.jpg", jpegBytes())
	p := NewHeuristicProvider(zerolog.Nop())
	rep, err := p.Analyze(context.Background(), RingMedia{SessionID: "s1", ImagePath: img})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !rep.PersonDetected || rep.VisionConfidence != 0.6 {
		t.Fatalf("expected stub person detection, got %+v", rep)
	}
	if len(rep.Objects) != 1 || rep.Objects[0].Label != "person" {
		t.Fatalf("expected a single person object, got %+v", rep.Objects)
	}
}

func TestHeuristicGarbageImageTreatedAsAbsent(t *testing.T) {
	img := writeFile(t, "snap.jpg", []byte("not a jpeg"))
	p := NewHeuristicProvider(zerolog.Nop())
	rep, err := p.Analyze(context.Background(), RingMedia{SessionID: "s1", ImagePath: img})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rep.PersonDetected || rep.ImagePath != "" {
		t.Fatalf("garbage image should be treated as absent, got %+v", rep)
	}
}

func TestHeuristicAudioPresent(t *testing.T) {
	wav := writeFile(t, "ring_audio.wav", wavBytes())
	p := NewHeuristicProvider(zerolog.Nop())
	rep, err := p.Analyze(context.Background(), RingMedia{SessionID: "s1", AudioPath: wav})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rep.Transcript != "Audio received" || rep.STTConfidence != 0.5 {
		t.Fatalf("expected stub transcript, got %+v", rep)
	}
}

func TestHeuristicGarbageAudioSkipsTranscript(t *testing.T) {
	wav := writeFile(t, "ring_audio.wav", []byte("mp3 maybe"))
	p := NewHeuristicProvider(zerolog.Nop())
	rep, err := p.Analyze(context.Background(), RingMedia{SessionID: "s1", AudioPath: wav})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rep.Transcript != "" {
		t.Fatalf("expected empty transcript, got %q", rep.Transcript)
	}
}

func TestAntiSpoofScore(t *testing.T) {
	cases := []struct {
		name         string
		person       bool
		visionConf   float64
		transcript   string
		audioPresent bool
		want         float64
	}{
		{"no person", false, 0.0, "", false, 1.0}, // 0.9 + 0.1 no audio, clamped at 1 after sum 1.0
		{"no person with audio and speech", false, 0.0, "hello", true, 0.9},
		{"low vision confidence boundary", true, 0.5, "hello", true, 0.3},
		{"confident person speaking", true, 0.9, "hello", true, 0.0},
		{"silent audio", true, 0.9, "", true, 0.2},
		{"no audio at all", true, 0.9, "", false, 0.1},
		{"low vision and no audio", true, 0.5, "", false, 0.4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep := &model.PerceptionReport{
				PersonDetected:   tc.person,
				VisionConfidence: tc.visionConf,
				Transcript:       tc.transcript,
			}
			if got := antiSpoofScore(rep, tc.audioPresent); got != tc.want {
				t.Fatalf("antiSpoofScore: got %v want %v", got, tc.want)
			}
		})
	}
}

func TestEnrichEmotionAndLanguage(t *testing.T) {
	cases := []struct {
		transcript string
		emotion    model.Emotion
		language   model.Language
	}{
		{"open the gate or I will break it", model.EmotionAggressive, model.LangLatin},
		{"please help me I am scared", model.EmotionDistressed, model.LangLatin},
		{"parcel for you madam", model.EmotionNeutral, model.LangLatin},
		{"", model.EmotionNeutral, model.LangUnknown},
		{"दरवाजा तोड़ दूंगा", model.EmotionAggressive, model.LangDevanagari},
		{"दरवाजा खोलो", model.EmotionNeutral, model.LangDevanagari},
	}
	for _, tc := range cases {
		rep := &model.PerceptionReport{PersonDetected: true, VisionConfidence: 0.9, Transcript: tc.transcript}
		Enrich(rep, tc.transcript != "")
		if rep.Emotion != tc.emotion {
			t.Errorf("transcript %q: emotion got %q want %q", tc.transcript, rep.Emotion, tc.emotion)
		}
		if rep.Language != tc.language {
			t.Errorf("transcript %q: language got %q want %q", tc.transcript, rep.Language, tc.language)
		}
	}
}

func TestEnrichDerivesWeaponFromObjects(t *testing.T) {
	rep := &model.PerceptionReport{
		PersonDetected:   true,
		VisionConfidence: 0.9,
		Objects: []model.ObjectDetection{
			{Label: "person", Confidence: 0.9},
			{Label: "knife", Confidence: 0.82},
		},
	}
	Enrich(rep, false)
	if !rep.WeaponDetected || rep.WeaponConfidence != 0.82 {
		t.Fatalf("expected knife detection, got %+v", rep)
	}
	if len(rep.WeaponLabels) != 1 || rep.WeaponLabels[0] != "knife" {
		t.Fatalf("weapon labels: %v", rep.WeaponLabels)
	}
}

func TestEnrichIgnoresLowConfidenceWeapon(t *testing.T) {
	rep := &model.PerceptionReport{
		PersonDetected:   true,
		VisionConfidence: 0.9,
		Objects:          []model.ObjectDetection{{Label: "knife", Confidence: 0.55}},
	}
	Enrich(rep, false)
	if rep.WeaponDetected {
		t.Fatalf("0.55 confidence should not trip the weapon flag: %+v", rep)
	}
}

func TestEnrichKeepsProviderWeaponFields(t *testing.T) {
	rep := &model.PerceptionReport{
		PersonDetected:   true,
		VisionConfidence: 0.9,
		WeaponDetected:   true,
		WeaponConfidence: 0.7,
		WeaponLabels:     []string{"pistol"},
	}
	Enrich(rep, false)
	if rep.WeaponConfidence != 0.7 || len(rep.WeaponLabels) != 1 {
		t.Fatalf("provider weapon fields were clobbered: %+v", rep)
	}
}
