package domain

import "time"

// PasswordResetToken is a single-use recovery credential bound to an account
// through its email lookup hash. At most one unused token exists per account.
type PasswordResetToken struct {
	ID        string
	Token     string
	EmailHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Check reports why the token cannot be redeemed at now, or nil.
// A used token reports ErrResetTokenUsed even when it has also expired.
func (t *PasswordResetToken) Check(now time.Time) error {
	if t.UsedAt != nil {
		return ErrResetTokenUsed
	}
	if !now.Before(t.ExpiresAt) {
		return ErrResetTokenExpired
	}
	return nil
}
