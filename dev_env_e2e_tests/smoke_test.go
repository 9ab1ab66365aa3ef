//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Minimal valid-prefix media fixtures. The heuristic provider only sniffs
// magic bytes, so a few bytes are enough to drive the full pipeline.
func jpegB64() string {
	return base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'})
}

func wavB64() string {
	return base64.StdEncoding.EncodeToString([]byte("RIFF0000WAVEdata"))
}

func postJSON(t *testing.T, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("build request %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

// -----------------------------------------------------------------------------
//
//	Test 1: Ring → pipeline → status/detail/logs (fast path)
//
// -----------------------------------------------------------------------------
// Sends one ring with snapshot and audio through the public REST API and
// verifies the pipeline runs to completion: the session reaches a terminal
// status, every stage report is persisted, and the activity feed lists the
// visit with its transcript.
func TestDevEnv_RingPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}

	svc := env("DOORBELL_API", "http://localhost:8080")
	if err := ping(svc + "/api/health"); err != nil {
		t.Skipf("service %s unreachable: %v", svc, err)
	}
	waitForHealthy(t, svc, 3*time.Second)

	// 1. Ring
	ringBody := fmt.Sprintf(`{"device_id":"e2e_front_door","timestamp":"%s","image_base64":"%s","audio_base64":"%s"}`,
		time.Now().UTC().Format(time.RFC3339), jpegB64(), wavB64())
	var admission struct {
		SessionID string `json:"sessionId"`
		Status    string `json:"status"`
		Greeting  string `json:"greeting"`
	}
	mustJSON(t, postJSON(t, svc+"/api/ring", "", ringBody), &admission)
	if admission.SessionID == "" {
		t.Fatalf("admission missing sessionId: %+v", admission)
	}
	if admission.Greeting == "" {
		t.Fatalf("admission missing greeting")
	}

	// 2. Poll status until the pipeline reaches a terminal state
	var status struct {
		SessionID   string   `json:"sessionId"`
		Status      string   `json:"status"`
		RiskScore   *float64 `json:"riskScore"`
		FinalAction string   `json:"finalAction"`
	}
	deadline := time.Now().Add(10 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatalf("session %s stuck in %q", admission.SessionID, status.Status)
		}
		resp, err := http.Get(fmt.Sprintf("%s/api/session/%s/status", svc, admission.SessionID))
		if err != nil {
			t.Fatalf("get status: %v", err)
		}
		mustJSON(t, resp, &status)
		if status.Status == "completed" || status.Status == "error" {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if status.Status != "completed" {
		t.Fatalf("pipeline ended in %q", status.Status)
	}
	if status.FinalAction == "" {
		t.Fatalf("completed session has no finalAction")
	}

	// 3. Detail carries every stage report
	var detail struct {
		Session      map[string]interface{}   `json:"session"`
		Perception   map[string]interface{}   `json:"perception"`
		Intelligence map[string]interface{}   `json:"intelligence"`
		Decision     map[string]interface{}   `json:"decision"`
		Actions      []map[string]interface{} `json:"actions"`
		Transcript   []map[string]interface{} `json:"transcript"`
	}
	resp, err := http.Get(fmt.Sprintf("%s/api/session/%s/detail", svc, admission.SessionID))
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	mustJSON(t, resp, &detail)
	for name, m := range map[string]map[string]interface{}{
		"perception": detail.Perception, "intelligence": detail.Intelligence, "decision": detail.Decision,
	} {
		if len(m) == 0 {
			t.Fatalf("detail missing %s report", name)
		}
	}
	if len(detail.Actions) == 0 {
		t.Fatalf("detail has no executed actions")
	}

	// 4. Activity feed lists the session with its snapshot
	var feed struct {
		Sessions []struct {
			SessionID string `json:"sessionId"`
			ImageURL  string `json:"imageUrl"`
		} `json:"sessions"`
	}
	resp, err = http.Get(svc + "/api/logs?limit=20")
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	mustJSON(t, resp, &feed)
	found := false
	for _, s := range feed.Sessions {
		if s.SessionID == admission.SessionID {
			found = true
			if s.ImageURL == "" {
				t.Fatalf("feed row for %s missing imageUrl", s.SessionID)
			}
			if err := ping(svc + s.ImageURL); err != nil {
				t.Fatalf("snapshot %s not served: %v", s.ImageURL, err)
			}
		}
	}
	if !found {
		t.Fatalf("session %s not in activity feed", admission.SessionID)
	}
}

// -----------------------------------------------------------------------------
//
//	Test 2: Owner account → member registry → owner reply round-trip
//
// -----------------------------------------------------------------------------
func TestDevEnv_OwnerFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skip in short mode")
	}

	svc := env("DOORBELL_API", "http://localhost:8080")
	if err := ping(svc + "/api/health"); err != nil {
		t.Skipf("service %s unreachable: %v", svc, err)
	}

	// 1. Register a unique owner per run and log in
	username := fmt.Sprintf("e2e_owner_%d", time.Now().UnixNano())
	var reg struct {
		Token string `json:"token"`
	}
	mustJSON(t, postJSON(t, svc+"/api/auth/register", "",
		fmt.Sprintf(`{"username":"%s","password":"hunter22","name":"E2E Owner"}`, username)), &reg)
	if reg.Token == "" {
		t.Fatalf("register returned no token")
	}

	// 2. Member registry
	var member struct {
		MemberID string `json:"memberId"`
	}
	mustJSON(t, postJSON(t, svc+"/api/members", reg.Token, `{"name":"Ravi","role":"family"}`), &member)
	if member.MemberID == "" {
		t.Fatalf("member create returned no memberId")
	}

	// 3. Ring, then speak an owner reply into the session
	var admission struct {
		SessionID string `json:"sessionId"`
	}
	ringBody := fmt.Sprintf(`{"device_id":"e2e_front_door","timestamp":"%s","audio_base64":"%s"}`,
		time.Now().UTC().Format(time.RFC3339), wavB64())
	mustJSON(t, postJSON(t, svc+"/api/ring", "", ringBody), &admission)

	var replied struct {
		Status string `json:"status"`
	}
	mustJSON(t, postJSON(t, svc+"/api/owner-reply", reg.Token,
		fmt.Sprintf(`{"session_id":"%s","message":"Please leave it at the gate"}`, admission.SessionID)), &replied)
	if replied.Status != "sent" {
		t.Fatalf("owner reply status %q", replied.Status)
	}

	// 4. The reply is on the transcript, marked as relayed by the doorbell
	var detail struct {
		Transcript []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"transcript"`
	}
	resp, err := http.Get(fmt.Sprintf("%s/api/session/%s/detail", svc, admission.SessionID))
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	mustJSON(t, resp, &detail)
	found := false
	for _, e := range detail.Transcript {
		if e.Role == "doorbell" && strings.Contains(e.Content, "Please leave it at the gate") {
			found = true
		}
	}
	if !found {
		t.Fatalf("owner reply missing from transcript: %+v", detail.Transcript)
	}

	// 5. Logout invalidates the token
	resp = postJSON(t, svc+"/api/auth/logout", reg.Token, `{}`)
	_ = resp.Body.Close()
	req, _ := http.NewRequest(http.MethodGet, svc+"/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+reg.Token)
	meResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me after logout: %v", err)
	}
	_ = meResp.Body.Close()
	if meResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("stale token still accepted: %d", meResp.StatusCode)
	}
}

// -----------------------------------------------------------------------------
//
//	Test 3: Owner WebSocket feed receives the new_ring event
//
// -----------------------------------------------------------------------------
func TestDevEnv_EventStream(t *testing.T) {
	if testing.Short() {
		t.Skip("skip in short mode")
	}

	svc := env("DOORBELL_API", "http://localhost:8080")
	if err := ping(svc + "/api/health"); err != nil {
		t.Skipf("service %s unreachable: %v", svc, err)
	}

	wsURL := "ws" + strings.TrimPrefix(svc, "http") + "/api/ws/owner"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	defer conn.Close()

	ringBody := fmt.Sprintf(`{"device_id":"e2e_front_door","timestamp":"%s"}`,
		time.Now().UTC().Format(time.RFC3339))
	var admission struct {
		SessionID string `json:"sessionId"`
	}
	mustJSON(t, postJSON(t, svc+"/api/ring", "", ringBody), &admission)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var evt map[string]interface{}
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("no new_ring event for %s: %v", admission.SessionID, err)
		}
		if evt["type"] == "new_ring" && evt["sessionId"] == admission.SessionID {
			return // success
		}
	}
}
