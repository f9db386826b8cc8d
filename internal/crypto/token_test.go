package crypto

import (
	"encoding/hex"
	"testing"
)

func TestNewToken(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tok, err := NewToken()
		if err != nil {
			t.Fatalf("NewToken: %v", err)
		}
		raw, err := hex.DecodeString(tok)
		if err != nil || len(raw) != TokenBytes {
			t.Fatalf("token %q is not %d hex-encoded bytes", tok, TokenBytes)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token %s", tok)
		}
		seen[tok] = struct{}{}
	}
}
