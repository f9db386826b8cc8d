package domain

import (
	"errors"
	"time"
)

// Invitation is a single-use onboarding credential. It is valid iff
// AcceptedAt is nil and the current time is before ExpiresAt. Invitations are
// never deleted; an accepted invitation is the audit record of the sign-up.
type Invitation struct {
	ID         string     `json:"id"`
	Token      string     `json:"token"`
	TenantID   string     `json:"tenantId"`
	Role       Role       `json:"role"`
	InvitedBy  string     `json:"invitedBy"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	AcceptedAt *time.Time `json:"acceptedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Check reports why the invitation cannot be redeemed at now, or nil.
// Acceptance takes precedence over expiry.
func (i *Invitation) Check(now time.Time) error {
	if i.AcceptedAt != nil {
		return ErrInvitationAlreadyAccepted
	}
	if !now.Before(i.ExpiresAt) {
		return ErrInvitationExpired
	}
	return nil
}

// InvalidReason is the stable code returned when an invitation fails validation.
type InvalidReason string

const (
	ReasonNotFound        InvalidReason = "NOT_FOUND"
	ReasonAlreadyAccepted InvalidReason = "ALREADY_ACCEPTED"
	ReasonExpired         InvalidReason = "EXPIRED"
)

// ReasonFor maps an invitation error to its reason code. ok is false for
// errors that are not invitation policy rejections.
func ReasonFor(err error) (reason InvalidReason, ok bool) {
	switch {
	case errors.Is(err, ErrInvitationNotFound):
		return ReasonNotFound, true
	case errors.Is(err, ErrInvitationAlreadyAccepted):
		return ReasonAlreadyAccepted, true
	case errors.Is(err, ErrInvitationExpired):
		return ReasonExpired, true
	}
	return "", false
}

// InvitationStatus is the read-only result of validating a token.
type InvitationStatus struct {
	Valid      bool          `json:"valid"`
	TenantName string        `json:"customerName,omitempty"`
	Reason     InvalidReason `json:"reason,omitempty"`
}
