package ports

import "context"

// Message kinds.
const (
	KindInvitation    = "invitation"
	KindPasswordReset = "password_reset"
)

// Message is an outbound email. To is the plaintext address.
type Message struct {
	Kind    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Notifier delivers email.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NotificationQueue accepts best-effort deliveries. Enqueue never blocks; it
// reports false when the message was dropped.
type NotificationQueue interface {
	Enqueue(msg Message) bool
}

// LoginLimiter counts failed password logins per email lookup hash.
type LoginLimiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// FederatedIdentity is the profile an external identity provider vouched for.
type FederatedIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// IdentityProvider runs an OAuth authorization code flow.
type IdentityProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*FederatedIdentity, error)
}
