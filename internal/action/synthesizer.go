package action

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Voice identifiers handed to the speech command.
const (
	VoiceEnglish = "en"
	VoiceHindi   = "hi"
)

// Synthesizer turns sanitized text into a WAV file on disk. Implementations
// must honor ctx for their deadline.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, outPath string) error
}

// EspeakSynthesizer runs the espeak CLI. The command is always invoked with
// an argument list; no shell ever sees the text.
type EspeakSynthesizer struct {
	command string
}

// NewEspeakSynthesizer creates a synthesizer around the given binary.
// An empty command defaults to espeak on PATH.
func NewEspeakSynthesizer(command string) *EspeakSynthesizer {
	if command == "" {
		command = "espeak"
	}
	return &EspeakSynthesizer{command: command}
}

// Synthesize implements Synthesizer.
func (s *EspeakSynthesizer) Synthesize(ctx context.Context, text, voice, outPath string) error {
	cmd := exec.CommandContext(ctx, s.command, "-v", voice, "-w", outPath, text)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("speech synthesis failed: %v: %s", err, bytes.TrimSpace(out))
	}
	return nil
}
