package assets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Permitted subdirectories under the data dir. Every file the service
// persists lives under exactly one of these; nothing is ever written to the
// data dir root or outside it.
const (
	dirSnaps   = "snaps"
	dirTTS     = "tts"
	dirTmp     = "tmp"
	dirLogs    = "logs"
	dirMembers = "members"
)

var permittedDirs = []string{dirSnaps, dirTTS, dirTmp, dirLogs, dirMembers}

// Layout owns the on-disk data directory: snapshot images, generated TTS
// audio, per-session scratch space, agent logs, and member photos.
type Layout struct {
	root string
}

// NewLayout returns a Layout rooted at dataDir. Call Ensure before first use.
func NewLayout(dataDir string) *Layout {
	return &Layout{root: dataDir}
}

// Ensure creates the data dir and every permitted subdirectory with 0700
// permissions.
func (l *Layout) Ensure() error {
	for _, sub := range permittedDirs {
		if err := os.MkdirAll(filepath.Join(l.root, sub), 0o700); err != nil {
			return fmt.Errorf("create data subdir %s: %w", sub, err)
		}
	}
	return nil
}

// Root returns the data directory path.
func (l *Layout) Root() string { return l.root }

// SnapsDir is the directory holding ring snapshots, served read-only over
// HTTP as /static/snaps/.
func (l *Layout) SnapsDir() string { return filepath.Join(l.root, dirSnaps) }

// TTSDir is the directory holding rendered speech artifacts, served as
// /static/tts/.
func (l *Layout) TTSDir() string { return filepath.Join(l.root, dirTTS) }

// MembersDir is the directory holding member photos, served as
// /static/members/.
func (l *Layout) MembersDir() string { return filepath.Join(l.root, dirMembers) }

// SnapshotPath is where the ring snapshot for a session is stored.
func (l *Layout) SnapshotPath(sessionID string) string {
	return filepath.Join(l.root, dirSnaps, cleanComponent(sessionID)+".jpg")
}

// TTSAudioPath is where generated reply audio for a session is stored.
func (l *Layout) TTSAudioPath(sessionID string) string {
	return filepath.Join(l.root, dirTTS, cleanComponent(sessionID)+".wav")
}

// TTSTextPath is the text-only fallback written when no speech engine is
// available.
func (l *Layout) TTSTextPath(sessionID string) string {
	return filepath.Join(l.root, dirTTS, cleanComponent(sessionID)+".txt")
}

// SessionTempDir is the scratch directory for one session's intermediate
// audio. Removed when the session ends.
func (l *Layout) SessionTempDir(sessionID string) string {
	return filepath.Join(l.root, dirTmp, cleanComponent(sessionID))
}

// AgentLogPath is the per-agent log file.
func (l *Layout) AgentLogPath(agent string) string {
	return filepath.Join(l.root, dirLogs, cleanComponent(agent)+".log")
}

// MemberPhotoPath is where an uploaded member photo is stored.
func (l *Layout) MemberPhotoPath(memberID, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "jpg"
	}
	return filepath.Join(l.root, dirMembers, cleanComponent(memberID)+"."+cleanComponent(ext))
}

// Within reports whether path resolves under one of the permitted
// subdirectories of the data dir.
func (l *Layout) Within(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, sub := range permittedDirs {
		prefix, err := filepath.Abs(filepath.Join(l.root, sub))
		if err != nil {
			continue
		}
		if abs == prefix || strings.HasPrefix(abs, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// WriteSnapshot decodes base64 image bytes and writes them atomically to
// the session's snapshot path. Returns the path written.
func (l *Layout) WriteSnapshot(sessionID, imageB64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(imageB64))
	if err != nil {
		return "", fmt.Errorf("decode snapshot: %w", err)
	}
	path := l.SnapshotPath(sessionID)
	if err := WriteFileAtomic(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// WriteVisitorAudio decodes base64 audio bytes into the session's temp dir
// under a timestamped name, so audio from consecutive rings on the same
// session never clobbers earlier turns. Returns the path written.
func (l *Layout) WriteVisitorAudio(sessionID, audioB64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(audioB64))
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}
	dir := l.SessionTempDir(sessionID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create session temp dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.wav", time.Now().UnixNano()))
	if err := WriteFileAtomic(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// WriteMemberPhoto decodes base64 image bytes and stores them as the
// member's photo, replacing any previous upload. Returns the path written.
func (l *Layout) WriteMemberPhoto(memberID, photoB64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(photoB64))
	if err != nil {
		return "", fmt.Errorf("decode photo: %w", err)
	}
	path := l.MemberPhotoPath(memberID, "jpg")
	if err := WriteFileAtomic(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// WriteScratchAudio stages one-off audio (the transcribe endpoint) under
// tmp/transcribe with a random name. The caller removes it when done.
func (l *Layout) WriteScratchAudio(audioB64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(audioB64))
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}
	dir := filepath.Join(l.root, dirTmp, "transcribe")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create transcribe dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("audio_%s.wav", randomHex(8)))
	if err := WriteFileAtomic(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// RemoveSessionTemp deletes the session's scratch directory.
func (l *Layout) RemoveSessionTemp(sessionID string) error {
	return os.RemoveAll(l.SessionTempDir(sessionID))
}

// WriteFileAtomic writes data to a temp sibling, fsyncs it, then renames it
// over path. Readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func randomHex(n int) string {
	b := make([]byte, (n+1)/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)[:n]
}

// cleanComponent strips anything that could escape the intended directory
// from a path component derived from external input. Extensions are always
// appended by the Layout, so dots from input are replaced too.
func cleanComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
