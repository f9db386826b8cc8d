package service

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/api/metrics"
	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/crypto"
)

// EmailPlaceholder is shown in place of an address that failed to decrypt.
const EmailPlaceholder = "(decryption failed)"

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt input limit
)

func validatePassword(password, confirm string) error {
	if confirm != "" && confirm != password {
		return domain.Invalid("confirmPassword", "passwords do not match")
	}
	if len(password) < minPasswordLen {
		return domain.Invalid("password", "password must be at least 8 characters")
	}
	if len(password) > maxPasswordLen {
		return domain.Invalid("password", "password must be at most 72 bytes")
	}
	return nil
}

// inputs applies the same rules as the HTTP request validator, so every
// entry point (API, CLI) accepts the same addresses.
var inputs = validator.New()

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Invalid("email", "email is required")
	}
	if err := inputs.Var(email, "email"); err != nil {
		return domain.Invalid("email", "email is malformed")
	}
	return nil
}

// hashRef shortens a lookup hash for log fields.
func hashRef(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// revealEmail decrypts the account's stored address into a.Email. A failure is
// an integrity incident: it is logged and counted, and the placeholder is shown
// instead.
func revealEmail(codec *crypto.EmailCodec, a *domain.Account, log zerolog.Logger) bool {
	email, err := codec.Decrypt(a.EmailCiphertext)
	if err != nil {
		metrics.DecryptionFailuresTotal.Inc()
		log.Error().Err(err).Str("account_id", a.ID).Msg("stored email could not be decrypted")
		a.Email = EmailPlaceholder
		return false
	}
	a.Email = email
	return true
}

func observeHash(op string, start time.Time) {
	metrics.PasswordHashDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
