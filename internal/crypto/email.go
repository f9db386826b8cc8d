package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeySize is the AES-256 key length.
	KeySize   = 32
	nonceSize = 16
	tagSize   = 16
)

// ErrDecryption covers every way an envelope can fail to open: wrong key,
// malformed envelope, tampered ciphertext or tag mismatch.
var ErrDecryption = errors.New("email decryption failed")

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailCodec hashes email addresses for lookup and encrypts them for display.
// It is safe for concurrent use.
type EmailCodec struct {
	aead cipher.AEAD
}

func NewEmailCodec(key []byte) (*EmailCodec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("email key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &EmailCodec{aead: aead}, nil
}

// LookupHash is the hex SHA-256 of the normalized address.
func (c *EmailCodec) LookupHash(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])
}

// Encrypt seals the normalized address under a fresh nonce and returns
// "nonce:tag:ciphertext", each part standard base64.
func (c *EmailCodec) Encrypt(email string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(NormalizeEmail(email)), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	enc := base64.StdEncoding
	return enc.EncodeToString(nonce) + ":" + enc.EncodeToString(tag) + ":" + enc.EncodeToString(ct), nil
}

// Decrypt opens an envelope produced by Encrypt. Every failure wraps
// ErrDecryption.
func (c *EmailCodec) Decrypt(envelope string) (string, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: envelope has %d parts", ErrDecryption, len(parts))
	}
	enc := base64.StdEncoding
	nonce, err := enc.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", fmt.Errorf("%w: bad nonce", ErrDecryption)
	}
	tag, err := enc.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", fmt.Errorf("%w: bad tag", ErrDecryption)
	}
	ct, err := enc.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext", ErrDecryption)
	}

	plain, err := c.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return string(plain), nil
}

// Seal returns the lookup hash and ciphertext for an address. Records are
// always written with both.
func (c *EmailCodec) Seal(email string) (hash, ciphertext string, err error) {
	ciphertext, err = c.Encrypt(email)
	if err != nil {
		return "", "", err
	}
	return c.LookupHash(email), ciphertext, nil
}
