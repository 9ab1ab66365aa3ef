//go:build e2e
// +build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// httpc is shared by the helpers so a hung dev stack fails a probe instead
// of wedging the whole test binary.
var httpc = &http.Client{Timeout: 5 * time.Second}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ping probes url and reports a non-nil error unless it answers 200.
// Tests call it up front to skip cleanly when the dev stack is down.
func ping(url string) error {
	resp, err := httpc.Get(url)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return nil
}

// mustJSON fails the test unless resp is a 2xx carrying a JSON body that
// decodes into v. The raw body is included on failure so a broken handler
// is debuggable from the test log alone.
func mustJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if resp == nil {
		t.Fatalf("nil response")
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.Fatalf("http %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode json: %v (body: %s)", err, body)
	}
}

// waitForHealthy blocks until GET {baseURL}/api/health reports
// {"status":"ok"} or the timeout elapses.
func waitForHealthy(t *testing.T, baseURL string, timeout time.Duration) {
	t.Helper()
	url := baseURL + "/api/health"
	t.Logf("waiting for %s (up to %s)", url, timeout)

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(timeout)
	for {
		if healthOK(url) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("doorbell-service not healthy within %s", timeout)
		case <-tick.C:
		}
	}
}

func healthOK(url string) bool {
	resp, err := httpc.Get(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var data struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return false
	}
	return data.Status == "ok"
}
