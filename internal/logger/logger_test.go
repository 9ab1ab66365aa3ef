package logger

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

// logLines runs f with os.Stdout captured and returns every non-empty line
// it wrote. zerolog emits one JSON object per line.
func logLines(t *testing.T, f func()) []string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	f()
	_ = w.Close()

	raw, _ := io.ReadAll(r)
	_ = r.Close()

	var lines []string
	for _, l := range strings.Split(string(raw), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("invalid json log: %v\n%s", err, line)
	}
	return payload
}

func TestErrorLog_CarriesServiceAndStack(t *testing.T) {
	lines := logLines(t, func() {
		log := New("doorbell-test")
		log.Error().Stack().Err(errors.New("boom")).Msg("something failed")
	})
	if len(lines) == 0 {
		t.Fatalf("no output captured")
	}
	payload := decodeLine(t, lines[len(lines)-1])

	for key, want := range map[string]string{
		"service": "doorbell-test",
		"level":   "error",
		"message": "something failed",
	} {
		if got, _ := payload[key].(string); got != want {
			t.Fatalf("%s = %v, want %q", key, payload[key], want)
		}
	}
	if _, ok := payload["stack"]; !ok {
		t.Fatalf("error event missing stack: %s", lines[len(lines)-1])
	}
}

func TestWithLevel_FiltersBelowThreshold(t *testing.T) {
	lines := logLines(t, func() {
		log := WithLevel("doorbell-test", "warn")
		log.Info().Msg("hidden at warn")
		log.Warn().Msg("visible at warn")
	})
	out := strings.Join(lines, "\n")
	if strings.Contains(out, "hidden at warn") {
		t.Fatalf("info line leaked through warn filter: %s", out)
	}
	if !strings.Contains(out, "visible at warn") {
		t.Fatalf("warn line missing: %s", out)
	}
}

func TestWithLevel_UnknownNameDefaultsToInfo(t *testing.T) {
	lines := logLines(t, func() {
		log := WithLevel("doorbell-test", "chatty")
		log.Info().Msg("still visible")
	})
	if !strings.Contains(strings.Join(lines, "\n"), "still visible") {
		t.Fatalf("unknown level name should not silence info logs: %v", lines)
	}
}
