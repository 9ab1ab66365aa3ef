package replyprov

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dwarpal-ai/dwarpal/internal/fault"
)

func testConfig(baseURL string) HTTPConfig {
	return HTTPConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "test-model",
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
		Timeout:     2 * time.Second,
	}
}

func TestHTTPProviderReply(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" One moment. "}}]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(testConfig(srv.URL))
	reply, err := p.Reply(context.Background(), Request{
		SessionID: "sess-1",
		Message:   "who are you",
		History: []Turn{
			{Speaker: SpeakerDoorbell, Text: "Please wait while I notify the owner."},
			{Speaker: SpeakerOwner, Text: "ask for ID"},
		},
		Perception: "person_detected=true emotion=neutral",
	})
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if reply != "One moment." {
		t.Fatalf("reply = %q, want trimmed provider text", reply)
	}

	if got.Model != "test-model" {
		t.Fatalf("model = %q", got.Model)
	}
	if len(got.Messages) != 5 {
		t.Fatalf("got %d messages, want system+scene+2 history+message", len(got.Messages))
	}
	if got.Messages[0].Role != "system" {
		t.Fatalf("first message role = %q, want system", got.Messages[0].Role)
	}
	if got.Messages[2].Role != "assistant" {
		t.Fatalf("doorbell turn role = %q, want assistant", got.Messages[2].Role)
	}
	if got.Messages[3].Content != "[Owner says]: ask for ID" {
		t.Fatalf("owner turn content = %q", got.Messages[3].Content)
	}
	if got.Messages[4].Content != "[Visitor says]: who are you" {
		t.Fatalf("visitor message content = %q", got.Messages[4].Content)
	}
}

func TestHTTPProviderRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello."}}]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(testConfig(srv.URL))
	reply, err := p.Reply(context.Background(), Request{Message: "hello"})
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if reply != "Hello." {
		t.Fatalf("reply = %q", reply)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("server saw %d calls, want 2", n)
	}
}

func TestHTTPProviderExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProvider(testConfig(srv.URL))
	_, err := p.Reply(context.Background(), Request{Message: "hello"})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !fault.IsTransientProviderError(err) {
		t.Fatalf("error %v is not a TransientProviderError", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("server saw %d calls, want initial attempt plus 2 retries", n)
	}
}

func TestHTTPProviderRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(testConfig(srv.URL))
	if _, err := p.Reply(context.Background(), Request{Message: "hello"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
