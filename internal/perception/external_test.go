package perception

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dwarpal-ai/dwarpal/internal/fault"
	"github.com/dwarpal-ai/dwarpal/internal/model"
)

func TestExternalProviderMapsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.SessionID != "s1" {
			t.Errorf("session id: %q", req.SessionID)
		}
		_ = json.NewEncoder(w).Encode(model.PerceptionReport{
			PersonDetected:   true,
			VisionConfidence: 0.88,
			Transcript:       "parcel for you",
			STTConfidence:    0.9,
			Objects:          []model.ObjectDetection{{Label: "person", Confidence: 0.88}},
		})
	}))
	defer srv.Close()

	p := NewExternalProvider(srv.URL)
	rep, err := p.Analyze(context.Background(), RingMedia{SessionID: "s1"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rep.SessionID != "s1" || !rep.PersonDetected || rep.VisionConfidence != 0.88 {
		t.Fatalf("mapped report: %+v", rep)
	}
	if rep.Timestamp.IsZero() {
		t.Fatal("timestamp not defaulted")
	}
}

func TestExternalProviderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewExternalProvider(srv.URL)
	_, err := p.Analyze(context.Background(), RingMedia{SessionID: "s1"})
	if !fault.IsTransientProviderError(err) {
		t.Fatalf("got %v, want TransientProviderError", err)
	}
}
