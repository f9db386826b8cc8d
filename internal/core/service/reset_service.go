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

// ResetOptions configures ResetService.
type ResetOptions struct {
	BaseURL  string // links are BaseURL + "/reset-password/" + token
	TokenTTL time.Duration
}

// ResetService runs password recovery.
type ResetService struct {
	store  ports.Store
	codec  *crypto.EmailCodec
	hasher *crypto.PasswordHasher
	notify ports.NotificationQueue // nil when mail is not configured
	opts   ResetOptions
	log    zerolog.Logger
	now    func() time.Time
}

func NewResetService(
	store ports.Store,
	codec *crypto.EmailCodec,
	hasher *crypto.PasswordHasher,
	notify ports.NotificationQueue,
	opts ResetOptions,
	log zerolog.Logger,
) *ResetService {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &ResetService{
		store:  store,
		codec:  codec,
		hasher: hasher,
		notify: notify,
		opts:   opts,
		log:    log,
		now:    time.Now,
	}
}

// RequestReset issues a fresh token for a registered address and mails it.
// Only malformed input is reported; the outcome is otherwise identical for
// known and unknown addresses, and failures are left to the operator log.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	hash := s.codec.LookupHash(email)
	log := s.log.With().Str("email_hash", hashRef(hash)).Logger()

	account, err := s.store.Accounts().FindByEmailHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			metrics.PasswordResetEventsTotal.WithLabelValues("unknown_email").Inc()
			log.Debug().Msg("password reset requested for unknown email")
		} else {
			log.Error().Err(err).Msg("password reset lookup failed")
		}
		return nil
	}

	token, err := s.issue(ctx, account)
	if err != nil {
		log.Error().Err(err).Msg("password reset token could not be issued")
		return nil
	}
	metrics.PasswordResetEventsTotal.WithLabelValues("requested").Inc()
	log.Info().Str("account_id", account.ID).Time("expires_at", token.ExpiresAt).Msg("password reset token issued")

	if s.notify == nil {
		log.Warn().Msg("mail not configured, password reset link not delivered")
		return nil
	}
	if !revealEmail(s.codec, account, log) {
		return nil
	}
	msg, err := resetMessage(account.Email, messageData{
		Link:     s.opts.BaseURL + "/reset-password/" + token.Token,
		Lifetime: humanDuration(s.opts.TokenTTL),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to render password reset email")
		return nil
	}
	s.notify.Enqueue(msg)
	return nil
}

// issue replaces every unredeemed token of the account with a new one. The
// account is marked first so that concurrent issuances serialize on it and
// at most one unused token survives.
func (s *ResetService) issue(ctx context.Context, account *domain.Account) (*domain.PasswordResetToken, error) {
	hash := account.EmailHash
	var issued *domain.PasswordResetToken
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Repositories) error {
		if err := tx.Accounts().MarkResetRequested(ctx, account.ID, s.now().UTC()); err != nil {
			return err
		}
		if _, err := tx.ResetTokens().DeleteUnused(ctx, hash); err != nil {
			return err
		}
		for attempt := 0; ; attempt++ {
			value, err := crypto.NewToken()
			if err != nil {
				return err
			}
			now := s.now().UTC()
			issued = &domain.PasswordResetToken{
				ID:        uuid.NewString(),
				Token:     value,
				EmailHash: hash,
				ExpiresAt: now.Add(s.opts.TokenTTL),
				CreatedAt: now,
			}
			err = tx.ResetTokens().Create(ctx, issued)
			if !errors.Is(err, domain.ErrDuplicateToken) || attempt+1 == tokenAttempts {
				return err
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// ResetPassword sets a new password with a reset token. Marking the token
// used and storing the password commit together or not at all.
func (s *ResetService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if token == "" {
		return s.rejected(domain.ErrResetTokenInvalid)
	}
	if err := validatePassword(password, confirm); err != nil {
		return err
	}

	// Read-only pre-check; the transaction re-checks at commit time.
	current, err := s.store.ResetTokens().FindByToken(ctx, token)
	if err == nil {
		err = current.Check(s.now())
	}
	if err != nil {
		return s.rejected(err)
	}

	start := time.Now()
	passwordHash, err := s.hasher.Hash(ctx, password)
	observeHash("hash", start)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	var accountID string
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Repositories) error {
		now := s.now().UTC()
		used, err := tx.ResetTokens().MarkUsed(ctx, token, now)
		if err != nil {
			return err
		}
		account, err := tx.Accounts().FindByEmailHash(ctx, used.EmailHash)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				// Account deleted after the token was issued.
				return domain.ErrResetTokenInvalid
			}
			return err
		}
		accountID = account.ID
		return tx.Accounts().UpdatePassword(ctx, account.ID, passwordHash, now)
	})
	if err != nil {
		return s.rejected(err)
	}

	metrics.PasswordResetEventsTotal.WithLabelValues("completed").Inc()
	s.log.Info().Str("account_id", accountID).Msg("password reset completed")
	return nil
}

func (s *ResetService) rejected(err error) error {
	switch {
	case errors.Is(err, domain.ErrResetTokenInvalid):
		metrics.PasswordResetEventsTotal.WithLabelValues("invalid").Inc()
		return err
	case errors.Is(err, domain.ErrResetTokenUsed):
		metrics.PasswordResetEventsTotal.WithLabelValues("used").Inc()
		return err
	case errors.Is(err, domain.ErrResetTokenExpired):
		metrics.PasswordResetEventsTotal.WithLabelValues("expired").Inc()
		return err
	}
	s.log.Error().Err(err).Msg("password reset aborted")
	return fmt.Errorf("reset password: %w", err)
}
