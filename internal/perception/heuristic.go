package perception

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dwarpal-ai/dwarpal/internal/model"
)

// HeuristicProvider is the degraded-mode analyzer used when no vision or
// speech models are wired in. It fabricates a deterministic report from
// media presence: a readable JPEG counts as one person at 0.6 confidence,
// a readable WAV yields a stub transcript. Unreadable media is treated as
// absent.
type HeuristicProvider struct {
	log zerolog.Logger
}

func NewHeuristicProvider(log zerolog.Logger) *HeuristicProvider {
	return &HeuristicProvider{log: log.With().Str("provider", "heuristic").Logger()}
}

const (
	stubTranscript    = "Audio received"
	stubSTTConfidence = 0.5
	stubVisionConf    = 0.6
)

func (p *HeuristicProvider) Analyze(ctx context.Context, media RingMedia) (*model.PerceptionReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rep := &model.PerceptionReport{
		SessionID: media.SessionID,
		ImagePath: media.ImagePath,
		Timestamp: time.Now().UTC(),
	}

	if media.ImagePath != "" {
		if sniffJPEG(media.ImagePath) {
			rep.PersonDetected = true
			rep.Objects = []model.ObjectDetection{{Label: "person", Confidence: stubVisionConf}}
			rep.VisionConfidence = stubVisionConf
		} else {
			p.log.Warn().Str("session_id", media.SessionID).Msg("snapshot is not a decodable JPEG, treating as absent")
			rep.ImagePath = ""
		}
	}

	if media.AudioPath != "" {
		if sniffWAV(media.AudioPath) {
			rep.Transcript = stubTranscript
			rep.STTConfidence = stubSTTConfidence
		} else {
			p.log.Warn().Str("session_id", media.SessionID).Msg("ring audio is not a WAV, skipping transcription")
		}
	}

	return rep, nil
}

// Transcribe implements Transcriber with the same stub the ring path uses.
func (p *HeuristicProvider) Transcribe(ctx context.Context, audioPath string) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	if !sniffWAV(audioPath) {
		return "", 0, nil
	}
	return stubTranscript, stubSTTConfidence, nil
}

// sniffJPEG reports whether the file starts with the JPEG SOI marker.
func sniffJPEG(path string) bool {
	head, err := readHead(path, 2)
	if err != nil {
		return false
	}
	return bytes.Equal(head, []byte{0xFF, 0xD8})
}

// sniffWAV reports whether the file carries a RIFF/WAVE header.
func sniffWAV(path string) bool {
	head, err := readHead(path, 12)
	if err != nil {
		return false
	}
	return bytes.Equal(head[0:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE"))
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	buf := make([]byte, n)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
