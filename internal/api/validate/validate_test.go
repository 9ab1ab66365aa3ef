package validate

import (
	"strings"
	"testing"
)

func TestSessionID(t *testing.T) {
	for _, ok := range []string{"sess-1", "A_b-3", strings.Repeat("a", 64)} {
		if err := SessionID(ok); err != nil {
			t.Fatalf("SessionID(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "has space", "dot.dot", "../etc", strings.Repeat("a", 65)} {
		if err := SessionID(bad); err == nil {
			t.Fatalf("SessionID(%q): expected error", bad)
		}
	}
}

func TestUsername(t *testing.T) {
	for _, ok := range []string{"asha", "a.b-c_9", "abc"} {
		if err := Username(ok); err != nil {
			t.Fatalf("Username(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "ab", "UPPER", "with space", strings.Repeat("a", 33)} {
		if err := Username(bad); err == nil {
			t.Fatalf("Username(%q): expected error", bad)
		}
	}
}

func TestMessage(t *testing.T) {
	if err := Message("hello"); err != nil {
		t.Fatalf("Message: %v", err)
	}
	if err := Message(""); err == nil {
		t.Fatal("empty message: expected error")
	}
	if err := Message(strings.Repeat("x", 2001)); err == nil {
		t.Fatal("oversize message: expected error")
	}
}
