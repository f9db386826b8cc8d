package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/core/ports"
	"github.com/nodi/console-identity/internal/crypto"
)

// AccountService administers accounts. Every operation requires a platform
// admin, and no admin may reassign or delete their own account.
type AccountService struct {
	store  ports.Store
	codec  *crypto.EmailCodec
	hasher *crypto.PasswordHasher
	log    zerolog.Logger
	now    func() time.Time
}

func NewAccountService(store ports.Store, codec *crypto.EmailCodec, hasher *crypto.PasswordHasher, log zerolog.Logger) *AccountService {
	return &AccountService{store: store, codec: codec, hasher: hasher, log: log, now: time.Now}
}

// BootstrapAdmin seeds a tenant-less platform admin. An existing account
// with the same email is returned unchanged and created is false.
func (s *AccountService) BootstrapAdmin(ctx context.Context, email, password, name string) (account *domain.Account, created bool, err error) {
	if err := validateEmail(email); err != nil {
		return nil, false, err
	}
	if err := validatePassword(password, ""); err != nil {
		return nil, false, err
	}
	if name = strings.TrimSpace(name); name == "" {
		name = "Admin"
	}

	emailHash, ciphertext, err := s.codec.Seal(email)
	if err != nil {
		return nil, false, err
	}
	existing, err := s.store.Accounts().FindByEmailHash(ctx, emailHash)
	if err == nil {
		revealEmail(s.codec, existing, s.log)
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, false, fmt.Errorf("bootstrap admin: %w", err)
	}

	passwordHash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, false, fmt.Errorf("bootstrap admin: %w", err)
	}
	now := s.now().UTC()
	account = &domain.Account{
		ID:              uuid.NewString(),
		EmailHash:       emailHash,
		EmailCiphertext: ciphertext,
		PasswordHash:    passwordHash,
		Name:            name,
		Role:            domain.RoleSuperAdmin,
		PlatformAdmin:   true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Accounts().Create(ctx, account); err != nil {
		return nil, false, fmt.Errorf("bootstrap admin: %w", err)
	}
	account.Email = crypto.NormalizeEmail(email)
	s.log.Info().Str("account_id", account.ID).Str("email_hash", hashRef(emailHash)).Msg("platform admin created")
	return account, true, nil
}

// List returns every account with its email decrypted. A record that fails to
// decrypt is listed with EmailPlaceholder. search matches name or email,
// case-insensitively.
func (s *AccountService) List(ctx context.Context, actor *domain.Session, search string) ([]*domain.Account, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	accounts, err := s.store.Accounts().List(ctx, ports.ListAccountsFilter{})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]*domain.Account, 0, len(accounts))
	for _, a := range accounts {
		revealEmail(s.codec, a, s.log)
		if needle != "" &&
			!strings.Contains(strings.ToLower(a.Name), needle) &&
			!strings.Contains(strings.ToLower(a.Email), needle) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Update reassigns role and tenant.
func (s *AccountService) Update(ctx context.Context, actor *domain.Session, id string, upd ports.AccountUpdate) (*domain.Account, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if id == actor.AccountID {
		return nil, domain.ErrSelfModification
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return nil, domain.Invalid("role", fmt.Sprintf("unknown role %q", *upd.Role))
	}
	if upd.ClearTenant && upd.TenantID != nil {
		return nil, domain.Invalid("tenantId", "cannot both set and clear the tenant")
	}

	var updated *domain.Account
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Repositories) error {
		account, err := tx.Accounts().FindByID(ctx, id)
		if err != nil {
			return err
		}
		role, tenantID := account.Role, account.TenantID
		if upd.Role != nil {
			role = *upd.Role
		}
		switch {
		case upd.ClearTenant:
			tenantID = nil
		case upd.TenantID != nil:
			if _, err := tx.Tenants().FindByID(ctx, *upd.TenantID); err != nil {
				return err
			}
			tenantID = upd.TenantID
		}
		if err := tx.Accounts().UpdateAssignment(ctx, id, role, tenantID, s.now().UTC()); err != nil {
			return err
		}
		updated, err = tx.Accounts().FindByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) || errors.Is(err, domain.ErrTenantNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update account: %w", err)
	}

	revealEmail(s.codec, updated, s.log)
	s.log.Info().
		Str("actor_id", actor.AccountID).
		Str("account_id", id).
		Str("role", string(updated.Role)).
		Str("tenant_id", updated.TenantIDValue()).
		Msg("account reassigned")
	return updated, nil
}

// Delete removes an account.
func (s *AccountService) Delete(ctx context.Context, actor *domain.Session, id string) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if id == actor.AccountID {
		return domain.ErrSelfModification
	}
	if err := s.store.Accounts().Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}
		return fmt.Errorf("delete account: %w", err)
	}
	s.log.Info().Str("actor_id", actor.AccountID).Str("account_id", id).Msg("account deleted")
	return nil
}
