package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/api/metrics"
	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/core/ports"
	"github.com/nodi/console-identity/internal/crypto"
)

const (
	maxInvitationExpiryDays = 90
	tokenAttempts           = 3
)

// InvitationOptions configures InvitationService.
type InvitationOptions struct {
	BaseURL           string // links are BaseURL + "/signup/" + token
	DefaultExpiryDays int
}

// InvitationService issues, validates and redeems invitations.
type InvitationService struct {
	store  ports.Store
	codec  *crypto.EmailCodec
	hasher *crypto.PasswordHasher
	notify ports.NotificationQueue // nil when mail is not configured
	opts   InvitationOptions
	log    zerolog.Logger
	now    func() time.Time
}

func NewInvitationService(
	store ports.Store,
	codec *crypto.EmailCodec,
	hasher *crypto.PasswordHasher,
	notify ports.NotificationQueue,
	opts InvitationOptions,
	log zerolog.Logger,
) *InvitationService {
	if opts.DefaultExpiryDays <= 0 {
		opts.DefaultExpiryDays = 7
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &InvitationService{
		store:  store,
		codec:  codec,
		hasher: hasher,
		notify: notify,
		opts:   opts,
		log:    log,
		now:    time.Now,
	}
}

// Create issues an invitation into in.TenantID. Platform admins may invite
// into any tenant. Tenant admins may invite only into their own tenant and
// at most at their own role.
func (s *InvitationService) Create(ctx context.Context, in ports.CreateInvitationInput) (*ports.IssuedInvitation, error) {
	if in.TenantID == "" {
		return nil, domain.Invalid("tenantId", "tenant is required")
	}
	if !in.Role.Valid() {
		return nil, domain.Invalid("role", fmt.Sprintf("unknown role %q", in.Role))
	}
	days := in.ExpiryDays
	if days == 0 {
		days = s.opts.DefaultExpiryDays
	}
	if days < 0 || days > maxInvitationExpiryDays {
		return nil, domain.Invalid("expiresInDays", fmt.Sprintf("must be between 1 and %d", maxInvitationExpiryDays))
	}
	if in.Email != "" {
		if err := validateEmail(in.Email); err != nil {
			return nil, err
		}
	}

	issuer, err := s.store.Accounts().FindByID(ctx, in.IssuerID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrForbidden
		}
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	if !canInvite(issuer, in.TenantID, in.Role) {
		s.log.Warn().
			Str("issuer_id", issuer.ID).
			Str("tenant_id", in.TenantID).
			Str("role", string(in.Role)).
			Msg("invitation refused: insufficient privilege")
		return nil, domain.ErrForbidden
	}

	tenant, err := s.store.Tenants().FindByID(ctx, in.TenantID)
	if err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	now := s.now().UTC()
	inv := &domain.Invitation{
		ID:        uuid.NewString(),
		TenantID:  tenant.ID,
		Role:      in.Role,
		InvitedBy: issuer.ID,
		ExpiresAt: now.Add(time.Duration(days) * 24 * time.Hour),
		CreatedAt: now,
	}
	if err := s.insert(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	issued := &ports.IssuedInvitation{Invitation: inv, URL: s.opts.BaseURL + "/signup/" + inv.Token}
	metrics.InvitationEventsTotal.WithLabelValues("created").Inc()
	s.log.Info().
		Str("invitation_id", inv.ID).
		Str("tenant_id", tenant.ID).
		Str("role", string(inv.Role)).
		Str("issuer_id", issuer.ID).
		Time("expires_at", inv.ExpiresAt).
		Msg("invitation created")

	if in.Email != "" {
		s.deliver(in.Email, tenant, issued)
	}
	return issued, nil
}

func canInvite(issuer *domain.Account, tenantID string, role domain.Role) bool {
	if issuer.PlatformAdmin {
		return true
	}
	return issuer.Role.AtLeast(domain.RoleCustomerAdmin) &&
		issuer.InTenant(tenantID) &&
		issuer.Role.AtLeast(role)
}

// insert retries token collisions with a fresh token.
func (s *InvitationService) insert(ctx context.Context, inv *domain.Invitation) error {
	for attempt := 0; ; attempt++ {
		token, err := crypto.NewToken()
		if err != nil {
			return err
		}
		inv.Token = token
		err = s.store.Invitations().Create(ctx, inv)
		if !errors.Is(err, domain.ErrDuplicateToken) || attempt+1 == tokenAttempts {
			return err
		}
	}
}

// deliver is best effort. The invitation stands whether or not the mail goes
// out; the link can always be shared by hand.
func (s *InvitationService) deliver(to string, tenant *domain.Tenant, issued *ports.IssuedInvitation) {
	log := s.log.With().Str("invitation_id", issued.Invitation.ID).Logger()
	if s.notify == nil {
		log.Info().Msg("mail not configured, invitation link must be shared manually")
		return
	}
	msg, err := invitationMessage(crypto.NormalizeEmail(to), fmt.Sprintf(invitationSubject, tenant.Name), messageData{
		Link:      issued.URL,
		Tenant:    tenant.Name,
		ExpiresAt: issued.Invitation.ExpiresAt,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to render invitation email")
		return
	}
	s.notify.Enqueue(msg)
}

// Validate reports whether token can be redeemed now. It never writes.
func (s *InvitationService) Validate(ctx context.Context, token string) (*domain.InvitationStatus, error) {
	if token == "" {
		return &domain.InvitationStatus{Reason: domain.ReasonNotFound}, nil
	}
	inv, err := s.store.Invitations().FindByToken(ctx, token)
	if err == nil {
		err = inv.Check(s.now())
	}
	if err != nil {
		if reason, ok := domain.ReasonFor(err); ok {
			return &domain.InvitationStatus{Reason: reason}, nil
		}
		return nil, fmt.Errorf("validate invitation: %w", err)
	}

	tenant, err := s.store.Tenants().FindByID(ctx, inv.TenantID)
	if err != nil {
		return nil, fmt.Errorf("validate invitation: %w", err)
	}
	return &domain.InvitationStatus{Valid: true, TenantName: tenant.Name}, nil
}

// Redeem creates an account from a pending invitation. Accepting the
// invitation and creating the account commit together or not at all.
func (s *InvitationService) Redeem(ctx context.Context, in ports.RedeemInvitationInput) (*domain.Account, error) {
	if in.Token == "" {
		return nil, domain.Invalid("token", "token is required")
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Invalid("name", "name is required")
	}
	if err := validatePassword(in.Password, in.ConfirmPassword); err != nil {
		return nil, err
	}

	// Cheap read-only check so invalid tokens never pay for bcrypt. The
	// transaction below re-checks at commit time.
	inv, err := s.store.Invitations().FindByToken(ctx, in.Token)
	if err == nil {
		err = inv.Check(s.now())
	}
	if err != nil {
		return nil, s.rejected(err)
	}

	start := time.Now()
	passwordHash, err := s.hasher.Hash(ctx, in.Password)
	observeHash("hash", start)
	if err != nil {
		return nil, fmt.Errorf("redeem invitation: %w", err)
	}
	emailHash, ciphertext, err := s.codec.Seal(in.Email)
	if err != nil {
		return nil, fmt.Errorf("redeem invitation: %w", err)
	}

	var account *domain.Account
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Repositories) error {
		now := s.now().UTC()
		accepted, err := tx.Invitations().Accept(ctx, in.Token, now)
		if err != nil {
			return err
		}
		if _, err := tx.Accounts().FindByEmailHash(ctx, emailHash); err == nil {
			return domain.ErrEmailAlreadyRegistered
		} else if !errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}

		tenantID := accepted.TenantID
		account = &domain.Account{
			ID:              uuid.NewString(),
			EmailHash:       emailHash,
			EmailCiphertext: ciphertext,
			PasswordHash:    passwordHash,
			Name:            name,
			Role:            accepted.Role,
			TenantID:        &tenantID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.Accounts().Create(ctx, account)
	})
	if err != nil {
		return nil, s.rejected(err)
	}

	account.Email = crypto.NormalizeEmail(in.Email)
	metrics.InvitationEventsTotal.WithLabelValues("redeemed").Inc()
	s.log.Info().
		Str("account_id", account.ID).
		Str("tenant_id", account.TenantIDValue()).
		Str("role", string(account.Role)).
		Str("email_hash", hashRef(emailHash)).
		Msg("invitation redeemed")
	return account, nil
}

// rejected counts policy rejections and wraps anything else.
func (s *InvitationService) rejected(err error) error {
	if reason, ok := domain.ReasonFor(err); ok {
		metrics.InvitationEventsTotal.WithLabelValues(strings.ToLower(string(reason))).Inc()
		return err
	}
	if errors.Is(err, domain.ErrEmailAlreadyRegistered) {
		metrics.InvitationEventsTotal.WithLabelValues("email_taken").Inc()
		return err
	}
	s.log.Error().Err(err).Msg("invitation redemption aborted")
	return fmt.Errorf("redeem invitation: %w", err)
}
