package ports

import (
	"context"

	"github.com/nodi/console-identity/internal/core/domain"
)

// AuthService authenticates callers and keeps their sessions current.
type AuthService interface {
	AuthenticateWithPassword(ctx context.Context, email, password string) (*domain.Account, error)
	AuthenticateWithFederatedIdentity(ctx context.Context, identity FederatedIdentity, provider string) (*domain.Account, error)
	// MaterializeSession refreshes a session snapshot from the current account
	// record.
	MaterializeSession(ctx context.Context, snapshot *domain.Session) (*domain.Session, error)
}

// SessionIssuer signs and parses session tokens.
type SessionIssuer interface {
	Issue(account *domain.Account, provider string) (string, *domain.Session, error)
	Parse(token string) (*domain.Session, error)
}

// CreateInvitationInput is the DTO for issuing an invitation.
type CreateInvitationInput struct {
	TenantID   string
	Role       domain.Role
	ExpiryDays int    // 0 = configured default
	IssuerID   string // account issuing the invitation
	Email      string // optional: deliver the link to this address
}

// IssuedInvitation is a created invitation and its sign-up link.
type IssuedInvitation struct {
	Invitation *domain.Invitation
	URL        string
}

// RedeemInvitationInput is the DTO for signing up with an invitation.
type RedeemInvitationInput struct {
	Token           string
	Email           string
	Password        string
	ConfirmPassword string // optional: checked when set
	Name            string
}

// InvitationService manages the invitation lifecycle.
type InvitationService interface {
	Create(ctx context.Context, in CreateInvitationInput) (*IssuedInvitation, error)
	Validate(ctx context.Context, token string) (*domain.InvitationStatus, error)
	Redeem(ctx context.Context, in RedeemInvitationInput) (*domain.Account, error)
}

// ResetService manages password recovery.
type ResetService interface {
	// RequestReset returns nil whether or not the address is registered.
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirm string) error
}

// AccountUpdate is an admin reassignment. Nil fields are left unchanged;
// ClearTenant removes the tenant.
type AccountUpdate struct {
	Role        *domain.Role
	TenantID    *string
	ClearTenant bool
}

// AccountService administers accounts on behalf of a platform admin.
type AccountService interface {
	List(ctx context.Context, actor *domain.Session, search string) ([]*domain.Account, error)
	Update(ctx context.Context, actor *domain.Session, id string, upd AccountUpdate) (*domain.Account, error)
	Delete(ctx context.Context, actor *domain.Session, id string) error
}

// CreateTenantInput is the DTO for creating a tenant.
type CreateTenantInput struct {
	Code        string
	Name        string
	Description string
}

// TenantService administers tenants.
type TenantService interface {
	Create(ctx context.Context, actor *domain.Session, in CreateTenantInput) (*domain.Tenant, error)
	List(ctx context.Context, actor *domain.Session, search string) ([]*domain.Tenant, error)
	Get(ctx context.Context, actor *domain.Session, id string) (*domain.Tenant, error)
}
