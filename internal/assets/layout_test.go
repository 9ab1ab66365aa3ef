package assets

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureCreatesPermittedDirs(t *testing.T) {
	l := NewLayout(t.TempDir())
	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	for _, sub := range permittedDirs {
		if _, err := os.Stat(filepath.Join(l.Root(), sub)); err != nil {
			t.Fatalf("subdir %s not created: %v", sub, err)
		}
	}
}

func TestPathsStayWithinDataDir(t *testing.T) {
	l := NewLayout(t.TempDir())
	paths := []string{
		l.SnapshotPath("sess-1"),
		l.TTSAudioPath("sess-1"),
		l.TTSTextPath("sess-1"),
		l.SessionTempDir("sess-1"),
		l.AgentLogPath("perception"),
		l.MemberPhotoPath("m-42", "png"),
	}
	for _, p := range paths {
		if !l.Within(p) {
			t.Fatalf("path %s escapes the data dir", p)
		}
	}
	if l.Within(filepath.Join(l.Root(), "doorbell.db")) {
		t.Fatal("data dir root must not count as a permitted prefix")
	}
	if l.Within("/etc/passwd") {
		t.Fatal("unrelated path reported as within data dir")
	}
}

func TestTraversalSessionIDIsNeutralized(t *testing.T) {
	l := NewLayout(t.TempDir())
	p := l.SnapshotPath("../../etc/passwd")
	if !l.Within(p) {
		t.Fatalf("traversal id produced escaping path %s", p)
	}
	if strings.Contains(p, "..") {
		t.Fatalf("dots survived cleaning: %s", p)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	if err := WriteFileAtomic(path, []byte("hello"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}

	// Overwrite must replace, not append.
	if err := WriteFileAtomic(path, []byte("bye"), 0o600); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = os.ReadFile(path)
	if string(got) != "bye" {
		t.Fatalf("after overwrite got %q", got)
	}

	// No temp siblings left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the target file, found %d entries", len(entries))
	}
}

func TestWriteSnapshotDecodesBase64(t *testing.T) {
	l := NewLayout(t.TempDir())
	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	raw := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	path, err := l.WriteSnapshot("sess-7", base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(got) != string(raw) {
		t.Fatal("snapshot bytes mangled")
	}
}

func TestWriteSnapshotRejectsBadBase64(t *testing.T) {
	l := NewLayout(t.TempDir())
	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if _, err := l.WriteSnapshot("sess-8", "%%%not-base64%%%"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestVisitorAudioAndCleanup(t *testing.T) {
	l := NewLayout(t.TempDir())
	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	path, err := l.WriteVisitorAudio("sess-9", base64.StdEncoding.EncodeToString([]byte("RIFF")))
	if err != nil {
		t.Fatalf("WriteVisitorAudio: %v", err)
	}
	if !l.Within(path) {
		t.Fatalf("audio path escapes data dir: %s", path)
	}
	if filepath.Dir(path) != l.SessionTempDir("sess-9") {
		t.Fatalf("audio written outside session temp dir: %s", path)
	}
	if filepath.Ext(path) != ".wav" {
		t.Fatalf("audio filename: got %s", filepath.Base(path))
	}
	if err := l.RemoveSessionTemp("sess-9"); err != nil {
		t.Fatalf("RemoveSessionTemp: %v", err)
	}
	if _, err := os.Stat(l.SessionTempDir("sess-9")); !os.IsNotExist(err) {
		t.Fatal("session temp dir survived cleanup")
	}
}

func TestScratchAudioUniqueNames(t *testing.T) {
	l := NewLayout(t.TempDir())
	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	b64 := base64.StdEncoding.EncodeToString([]byte("RIFF"))
	p1, err := l.WriteScratchAudio(b64)
	if err != nil {
		t.Fatalf("WriteScratchAudio: %v", err)
	}
	p2, err := l.WriteScratchAudio(b64)
	if err != nil {
		t.Fatalf("WriteScratchAudio: %v", err)
	}
	if p1 == p2 {
		t.Fatalf("scratch files collided: %s", p1)
	}
	if !l.Within(p1) || !l.Within(p2) {
		t.Fatal("scratch path escapes data dir")
	}
}
