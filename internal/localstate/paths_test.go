package localstate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDataDirHonorsOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv(envHome, tmp)

	dir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if dir != tmp {
		t.Fatalf("DataDir = %s, want %s", dir, tmp)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("override dir not usable: %v", err)
	}

	p, err := TokenPath()
	if err != nil {
		t.Fatalf("TokenPath: %v", err)
	}
	if want := filepath.Join(tmp, tokenFile); p != want {
		t.Fatalf("TokenPath = %s, want %s", p, want)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv(envHome, t.TempDir())

	if tok, err := LoadToken(); err != nil || tok != "" {
		t.Fatalf("fresh dir: token=%q err=%v", tok, err)
	}

	if err := SaveToken("tok-abc123"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	tok, err := LoadToken()
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if tok != "tok-abc123" {
		t.Fatalf("token = %q, want tok-abc123", tok)
	}

	p, _ := TokenPath()
	info, err := os.Stat(p)
	if err != nil {
		t.Fatalf("stat token file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("token file mode = %v, want 0600", info.Mode().Perm())
	}

	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken on empty state: %v", err)
	}
	if tok, _ := LoadToken(); tok != "" {
		t.Fatalf("token survived clear: %q", tok)
	}
}
