package perception

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dwarpal-ai/dwarpal/internal/fault"
	"github.com/dwarpal-ai/dwarpal/internal/model"
)

// ExternalProvider posts ring media to an HTTP analyzer (vision + STT
// service) and maps its response onto a PerceptionReport. Transport
// failures and non-200s surface as transient provider errors so the
// orchestrator can degrade instead of failing the session.
type ExternalProvider struct {
	client *resty.Client
}

// NewExternalProvider builds a client against baseURL with the perception
// budget: 8 s per attempt, 2 retries.
func NewExternalProvider(baseURL string) *ExternalProvider {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(8 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second)
	return &ExternalProvider{client: c}
}

type analyzeRequest struct {
	SessionID string `json:"sessionId"`
	ImageB64  string `json:"imageBase64,omitempty"`
	AudioB64  string `json:"audioBase64,omitempty"`
}

func (p *ExternalProvider) Analyze(ctx context.Context, media RingMedia) (*model.PerceptionReport, error) {
	req := analyzeRequest{SessionID: media.SessionID}
	if media.ImagePath != "" {
		data, err := os.ReadFile(media.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		req.ImageB64 = base64.StdEncoding.EncodeToString(data)
	}
	if media.AudioPath != "" {
		data, err := os.ReadFile(media.AudioPath)
		if err != nil {
			return nil, fmt.Errorf("read ring audio: %w", err)
		}
		req.AudioB64 = base64.StdEncoding.EncodeToString(data)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(&req).
		Post("/analyze")
	if err != nil {
		return nil, fault.NewTransientProviderError("perception", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fault.NewTransientProviderError("perception",
			fmt.Errorf("analyzer status %d: %s", resp.StatusCode(), resp.String()))
	}

	var rep model.PerceptionReport
	if err := json.Unmarshal(resp.Body(), &rep); err != nil {
		return nil, fault.NewTransientProviderError("perception", fmt.Errorf("decode analyzer response: %w", err))
	}
	rep.SessionID = media.SessionID
	if rep.ImagePath == "" {
		rep.ImagePath = media.ImagePath
	}
	if rep.Timestamp.IsZero() {
		rep.Timestamp = time.Now().UTC()
	}
	return &rep, nil
}

type transcribeRequest struct {
	AudioB64 string `json:"audioBase64"`
}

type transcribeResponse struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Transcribe posts standalone audio to the analyzer's STT endpoint.
func (p *ExternalProvider) Transcribe(ctx context.Context, audioPath string) (string, float64, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", 0, fmt.Errorf("read audio: %w", err)
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(&transcribeRequest{AudioB64: base64.StdEncoding.EncodeToString(data)}).
		Post("/transcribe")
	if err != nil {
		return "", 0, fault.NewTransientProviderError("stt", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", 0, fault.NewTransientProviderError("stt",
			fmt.Errorf("analyzer status %d: %s", resp.StatusCode(), resp.String()))
	}
	var out transcribeResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", 0, fault.NewTransientProviderError("stt", fmt.Errorf("decode transcript response: %w", err))
	}
	return out.Transcript, out.Confidence, nil
}
