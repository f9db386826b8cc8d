package domain

import (
	"errors"
	"fmt"
)

// Authentication.
var (
	// ErrInvalidCredentials is the only outward signal of a failed sign-in. It
	// covers unknown accounts, password-less accounts, wrong passwords and
	// throttled attempts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRegistrationClosed = errors.New("registration is invite only")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidSession     = errors.New("invalid session")
)

// Accounts and tenants.
var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrTenantNotFound         = errors.New("tenant not found")
	ErrTenantCodeExists       = errors.New("tenant code already exists")
	ErrForbidden              = errors.New("access forbidden")
	ErrSelfModification       = errors.New("accounts cannot modify or delete themselves")
)

// Invitations.
var (
	ErrInvitationNotFound        = errors.New("invitation not found")
	ErrInvitationAlreadyAccepted = errors.New("invitation already accepted")
	ErrInvitationExpired         = errors.New("invitation expired")
)

// Password reset tokens.
var (
	ErrResetTokenInvalid = errors.New("invalid reset token")
	ErrResetTokenUsed    = errors.New("reset token already used")
	ErrResetTokenExpired = errors.New("reset token expired")
)

// ErrDuplicateToken is returned by stores when a generated token collides with
// an existing one. Callers may retry with a fresh token.
var ErrDuplicateToken = errors.New("token already exists")

// ValidationError reports malformed input before any store access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a *ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
