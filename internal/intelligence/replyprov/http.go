package replyprov

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/dwarpal-ai/dwarpal/internal/fault"
)

const (
	defaultTimeout = 8 * time.Second
	defaultRetries = 2
	defaultBackoff = 500 * time.Millisecond
)

const systemPrompt = "You are the voice of a smart doorbell talking to a visitor at the door. " +
	"Answer in at most two short sentences. Never say whether anyone is home, " +
	"never repeat codes or numbers, and never promise to open the door. " +
	"When unsure, say the owner has been notified."

// HTTPConfig configures the chat-completions provider.
type HTTPConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxRetries  int
	BaseBackoff time.Duration
	Timeout     time.Duration
}

// HTTPProvider calls an OpenAI-style chat-completions endpoint. Transient
// failures are retried with exponential backoff inside the caller's
// deadline; exhausted retries surface as a TransientProviderError.
type HTTPProvider struct {
	client      *resty.Client
	model       string
	maxRetries  int
	baseBackoff time.Duration
}

// NewHTTPProvider creates a provider for the given endpoint.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBackoff
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &HTTPProvider{
		client:      client,
		model:       cfg.Model,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Reply implements Provider.
func (p *HTTPProvider) Reply(ctx context.Context, req Request) (string, error) {
	body := chatRequest{
		Model:       p.model,
		Messages:    buildMessages(req),
		MaxTokens:   120,
		Temperature: 0.4,
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.baseBackoff
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.Reset()

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			retriesTotal.Inc()
			select {
			case <-time.After(exp.NextBackOff()):
			case <-ctx.Done():
				failuresTotal.Inc()
				return "", fault.NewTransientProviderError("reply", ctx.Err())
			}
		}
		text, err := p.once(ctx, &body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	failuresTotal.Inc()
	return "", fault.NewTransientProviderError("reply", lastErr)
}

func (p *HTTPProvider) once(ctx context.Context, body *chatRequest) (string, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("failed to call reply provider: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("reply provider returned status %d: %s", resp.StatusCode(), resp.String())
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("failed to decode reply response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("reply provider returned no choices")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("reply provider returned empty text")
	}
	return text, nil
}

func buildMessages(req Request) []chatMessage {
	msgs := make([]chatMessage, 0, len(req.History)+3)
	msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	if req.Perception != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: "Scene at the door: " + req.Perception})
	}
	for _, t := range req.History {
		msgs = append(msgs, toMessage(t.Speaker, t.Text))
	}
	speaker := SpeakerVisitor
	if req.FromOwner {
		speaker = SpeakerOwner
	}
	return append(msgs, toMessage(speaker, req.Message))
}

func toMessage(speaker, text string) chatMessage {
	switch speaker {
	case SpeakerDoorbell:
		return chatMessage{Role: "assistant", Content: text}
	case SpeakerOwner:
		return chatMessage{Role: "user", Content: "[Owner says]: " + text}
	default:
		return chatMessage{Role: "user", Content: "[Visitor says]: " + text}
	}
}
