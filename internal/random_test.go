package internal

import (
	"encoding/hex"
	"testing"
)

func TestNewSessionToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		token, err := NewSessionToken()
		if err != nil {
			t.Fatalf("token generation failed: %v", err)
		}
		if len(token) != SessionTokenBytes*2 {
			t.Fatalf("expected %d hex chars, got %d", SessionTokenBytes*2, len(token))
		}
		if _, err := hex.DecodeString(token); err != nil {
			t.Fatalf("token %q is not hex: %v", token, err)
		}
		if seen[token] {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = true
	}
}

func TestNewCodeShape(t *testing.T) {
	for i := 0; i < 256; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("code generation failed: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
	}
}
