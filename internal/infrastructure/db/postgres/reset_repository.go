package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nodi/console-identity/internal/core/domain"
)

const resetTokenColumns = `id, token, email_hash, expires_at, used_at, created_at`

// ResetTokenRepository implements ports.ResetTokenRepository.
type ResetTokenRepository struct {
	q querier
}

func scanResetToken(row pgx.Row) (*domain.PasswordResetToken, error) {
	var t domain.PasswordResetToken
	if err := row.Scan(&t.ID, &t.Token, &t.EmailHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	if t.UsedAt != nil {
		at := t.UsedAt.UTC()
		t.UsedAt = &at
	}
	return &t, nil
}

func (r *ResetTokenRepository) Create(ctx context.Context, t *domain.PasswordResetToken) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO password_reset_tokens (id, token, email_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Token, t.EmailHash, t.ExpiresAt.UTC(), t.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err, "password_reset_tokens_token_key") {
			return domain.ErrDuplicateToken
		}
		if isUniqueViolation(err, "password_reset_tokens_live_key") {
			return fmt.Errorf("insert reset token: another unused token exists: %w", err)
		}
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

func (r *ResetTokenRepository) FindByToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	t, err := scanResetToken(r.q.QueryRow(ctx,
		`SELECT `+resetTokenColumns+` FROM password_reset_tokens WHERE token = $1`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}
	return t, nil
}

func (r *ResetTokenRepository) DeleteUnused(ctx context.Context, emailHash string) (int64, error) {
	tag, err := r.q.Exec(ctx,
		`DELETE FROM password_reset_tokens WHERE email_hash = $1 AND used_at IS NULL`, emailHash)
	if err != nil {
		return 0, fmt.Errorf("delete reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ResetTokenRepository) MarkUsed(ctx context.Context, token string, now time.Time) (*domain.PasswordResetToken, error) {
	now = now.UTC()
	t, err := scanResetToken(r.q.QueryRow(ctx, `
		UPDATE password_reset_tokens SET used_at = $2
		WHERE token = $1 AND used_at IS NULL AND expires_at > $2
		RETURNING `+resetTokenColumns,
		token, now,
	))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("mark reset token used: %w", err)
	}

	current, err := r.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := current.Check(now); err != nil {
		return nil, err
	}
	return nil, domain.ErrResetTokenUsed
}
