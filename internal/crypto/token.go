package crypto

import (
	"crypto/rand"
	"encoding/hex"
)

// TokenBytes is the entropy of every invitation and reset token.
const TokenBytes = 32

// NewToken returns 32 random bytes, hex encoded.
func NewToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
