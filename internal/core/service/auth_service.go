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

const methodPassword = "password"

// AuthService implements password and federated sign-in and per-request
// session refresh.
type AuthService struct {
	store      ports.Store
	codec      *crypto.EmailCodec
	hasher     *crypto.PasswordHasher
	limiter    ports.LoginLimiter // nil disables throttling
	inviteOnly bool
	log        zerolog.Logger
	now        func() time.Time
}

func NewAuthService(
	store ports.Store,
	codec *crypto.EmailCodec,
	hasher *crypto.PasswordHasher,
	limiter ports.LoginLimiter,
	inviteOnly bool,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		store:      store,
		codec:      codec,
		hasher:     hasher,
		limiter:    limiter,
		inviteOnly: inviteOnly,
		log:        log,
		now:        time.Now,
	}
}

// AuthenticateWithPassword returns the account for a matching email and
// password. Every failure the caller could learn from is reported as
// domain.ErrInvalidCredentials.
func (s *AuthService) AuthenticateWithPassword(ctx context.Context, email, password string) (*domain.Account, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		metrics.LoginAttemptsTotal.WithLabelValues(methodPassword, "invalid").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	hash := s.codec.LookupHash(email)
	log := s.log.With().Str("email_hash", hashRef(hash)).Logger()

	if s.throttled(ctx, hash, log) {
		metrics.LoginAttemptsTotal.WithLabelValues(methodPassword, "throttled").Inc()
		log.Warn().Msg("password login throttled")
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.store.Accounts().FindByEmailHash(ctx, hash)
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if account == nil || !account.HasPassword() {
		start := time.Now()
		s.hasher.CompareDummy(ctx, password)
		observeHash("compare", start)
		s.recordFailure(ctx, hash, log)
		if account == nil {
			log.Debug().Msg("login for unknown email")
		} else {
			log.Debug().Str("account_id", account.ID).Msg("password login for federated-only account")
		}
		return nil, domain.ErrInvalidCredentials
	}

	start := time.Now()
	err = s.hasher.Compare(ctx, account.PasswordHash, password)
	observeHash("compare", start)
	if err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			s.recordFailure(ctx, hash, log)
			log.Debug().Str("account_id", account.ID).Msg("password mismatch")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, hash); err != nil {
			log.Warn().Err(err).Msg("failed to reset login failures")
		}
	}

	revealEmail(s.codec, account, log)
	metrics.LoginAttemptsTotal.WithLabelValues(methodPassword, "success").Inc()
	log.Info().Str("account_id", account.ID).Msg("password login")
	return account, nil
}

// AuthenticateWithFederatedIdentity signs in an identity vouched for by an
// external provider, linking to an existing account by email. Unknown
// identities are provisioned as tenant-less operators unless registration is
// invite only.
func (s *AuthService) AuthenticateWithFederatedIdentity(ctx context.Context, identity ports.FederatedIdentity, provider string) (*domain.Account, error) {
	if strings.TrimSpace(identity.Email) == "" || !identity.EmailVerified {
		metrics.LoginAttemptsTotal.WithLabelValues(provider, "rejected").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	hash := s.codec.LookupHash(identity.Email)
	log := s.log.With().Str("email_hash", hashRef(hash)).Str("provider", provider).Logger()

	account, err := s.store.Accounts().FindByEmailHash(ctx, hash)
	switch {
	case err == nil:
		revealEmail(s.codec, account, log)
		metrics.LoginAttemptsTotal.WithLabelValues(provider, "success").Inc()
		log.Info().Str("account_id", account.ID).Msg("federated login")
		return account, nil
	case !errors.Is(err, domain.ErrAccountNotFound):
		return nil, fmt.Errorf("federated login: %w", err)
	}

	if s.inviteOnly {
		metrics.LoginAttemptsTotal.WithLabelValues(provider, "rejected").Inc()
		log.Info().Msg("federated login rejected: registration is invite only")
		return nil, domain.ErrRegistrationClosed
	}

	account, err = s.provision(ctx, identity, hash)
	if errors.Is(err, domain.ErrEmailAlreadyRegistered) {
		// Lost a race with a concurrent first login; use the winner's account.
		account, err = s.store.Accounts().FindByEmailHash(ctx, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("federated login: %w", err)
	}

	revealEmail(s.codec, account, log)
	metrics.LoginAttemptsTotal.WithLabelValues(provider, "success").Inc()
	log.Info().Str("account_id", account.ID).Msg("federated account provisioned")
	return account, nil
}

func (s *AuthService) provision(ctx context.Context, identity ports.FederatedIdentity, hash string) (*domain.Account, error) {
	ciphertext, err := s.codec.Encrypt(identity.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = strings.SplitN(crypto.NormalizeEmail(identity.Email), "@", 2)[0]
	}

	now := s.now().UTC()
	account := &domain.Account{
		ID:              uuid.NewString(),
		EmailHash:       hash,
		EmailCiphertext: ciphertext,
		Name:            name,
		Role:            domain.RoleOperator,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Accounts().Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// MaterializeSession rebuilds snapshot from the current account record. Role,
// tenant, admin flag, name and email always come from the store.
func (s *AuthService) MaterializeSession(ctx context.Context, snapshot *domain.Session) (*domain.Session, error) {
	if !snapshot.Authenticated() {
		metrics.SessionsMaterializedTotal.WithLabelValues("revoked").Inc()
		return nil, domain.ErrInvalidSession
	}
	if !s.now().Before(snapshot.ExpiresAt) {
		metrics.SessionsMaterializedTotal.WithLabelValues("expired").Inc()
		return nil, domain.ErrSessionExpired
	}

	account, err := s.store.Accounts().FindByID(ctx, snapshot.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			metrics.SessionsMaterializedTotal.WithLabelValues("revoked").Inc()
			return nil, domain.ErrInvalidSession
		}
		metrics.SessionsMaterializedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("materialize session: %w", err)
	}
	revealEmail(s.codec, account, s.log)

	metrics.SessionsMaterializedTotal.WithLabelValues("ok").Inc()
	return &domain.Session{
		AccountID:     account.ID,
		Name:          account.Name,
		Email:         account.Email,
		Role:          account.Role,
		TenantID:      account.TenantID,
		PlatformAdmin: account.PlatformAdmin,
		Provider:      snapshot.Provider,
		LoginAt:       snapshot.LoginAt,
		ExpiresAt:     snapshot.ExpiresAt,
	}, nil
}

// throttled fails open: a limiter outage never blocks sign-in.
func (s *AuthService) throttled(ctx context.Context, hash string, log zerolog.Logger) bool {
	if s.limiter == nil {
		return false
	}
	blocked, err := s.limiter.Blocked(ctx, hash)
	if err != nil {
		log.Warn().Err(err).Msg("login limiter unavailable, allowing attempt")
		return false
	}
	return blocked
}

func (s *AuthService) recordFailure(ctx context.Context, hash string, log zerolog.Logger) {
	metrics.LoginAttemptsTotal.WithLabelValues(methodPassword, "invalid").Inc()
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(ctx, hash); err != nil {
		log.Warn().Err(err).Msg("failed to record login failure")
	}
}
