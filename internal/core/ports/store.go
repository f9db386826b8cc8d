package ports

import (
	"context"
	"time"

	"github.com/nodi/console-identity/internal/core/domain"
)

// ListAccountsFilter narrows an account listing. The zero value lists all
// accounts.
type ListAccountsFilter struct {
	TenantID string // optional: only accounts assigned to this tenant
}

// AccountRepository persists accounts. EmailHash is unique; Create reports a
// collision as domain.ErrEmailAlreadyRegistered.
type AccountRepository interface {
	Create(ctx context.Context, a *domain.Account) error
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	FindByEmailHash(ctx context.Context, hash string) (*domain.Account, error)
	// List returns accounts newest first.
	List(ctx context.Context, filter ListAccountsFilter) ([]*domain.Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error
	UpdateAssignment(ctx context.Context, id string, role domain.Role, tenantID *string, now time.Time) error
	// MarkResetRequested records a password reset issuance on the account.
	// Inside a transaction it is a write to the account itself, so two
	// issuances for the same account conflict instead of both committing.
	MarkResetRequested(ctx context.Context, id string, now time.Time) error
	Delete(ctx context.Context, id string) error
}

// TenantRepository persists tenants. Code is unique; Create reports a
// collision as domain.ErrTenantCodeExists.
type TenantRepository interface {
	Create(ctx context.Context, t *domain.Tenant) error
	FindByID(ctx context.Context, id string) (*domain.Tenant, error)
	// List returns tenants ordered by code. search is a case-insensitive
	// substring match on code, name or description; empty matches all.
	List(ctx context.Context, search string) ([]*domain.Tenant, error)
}

// InvitationRepository persists invitations. Token is unique.
type InvitationRepository interface {
	Create(ctx context.Context, inv *domain.Invitation) error
	FindByToken(ctx context.Context, token string) (*domain.Invitation, error)
	// Accept sets AcceptedAt to now only if the invitation is still pending at
	// now, as a single conditional write. Otherwise it returns
	// ErrInvitationNotFound, ErrInvitationAlreadyAccepted or
	// ErrInvitationExpired.
	Accept(ctx context.Context, token string, now time.Time) (*domain.Invitation, error)
}

// ResetTokenRepository persists password reset tokens. Token is unique.
type ResetTokenRepository interface {
	Create(ctx context.Context, t *domain.PasswordResetToken) error
	FindByToken(ctx context.Context, token string) (*domain.PasswordResetToken, error)
	// DeleteUnused removes every unredeemed token for emailHash.
	DeleteUnused(ctx context.Context, emailHash string) (int64, error)
	// MarkUsed sets UsedAt to now only if the token is still redeemable at
	// now. Otherwise it returns ErrResetTokenInvalid, ErrResetTokenUsed or
	// ErrResetTokenExpired, in that precedence.
	MarkUsed(ctx context.Context, token string, now time.Time) (*domain.PasswordResetToken, error)
}

// Repositories groups the repositories that share one unit of work.
type Repositories interface {
	Accounts() AccountRepository
	Tenants() TenantRepository
	Invitations() InvitationRepository
	ResetTokens() ResetTokenRepository
}

// Store is the persistence engine. Repositories used outside WithinTx run in
// their own implicit transaction per call.
type Store interface {
	Repositories
	// WithinTx runs fn in one atomic transaction. fn must only use the
	// repositories it is given. The transaction commits when fn returns nil
	// and rolls back otherwise; fn may be invoked more than once when the
	// engine retries transient conflicts.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
