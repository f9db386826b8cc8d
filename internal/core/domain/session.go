package domain

import "time"

// Session is the authenticated view of a caller. Everything except the
// timestamps is read from the Account record on each request, so role or
// tenant changes apply without a new sign-in.
//
// A nil *Session is an unauthenticated caller.
type Session struct {
	AccountID     string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	TenantID      *string   `json:"tenantId"`
	PlatformAdmin bool      `json:"platformAdmin"`
	Provider      string    `json:"provider,omitempty"`
	LoginAt       time.Time `json:"loginAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Authenticated is false for a nil session.
func (s *Session) Authenticated() bool {
	return s != nil && s.AccountID != ""
}

// IsAdmin reports access to the platform admin area.
func (s *Session) IsAdmin() bool {
	return s.Authenticated() && s.PlatformAdmin
}

// Provider names.
const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
)
