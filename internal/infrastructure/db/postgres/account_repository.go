package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/core/ports"
)

const accountColumns = `id, email_hash, email_ciphertext, password_hash, name, role, platform_admin, tenant_id, created_at, updated_at`

// AccountRepository implements ports.AccountRepository.
type AccountRepository struct {
	q querier
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a            domain.Account
		passwordHash *string
		role         string
	)
	err := row.Scan(
		&a.ID, &a.EmailHash, &a.EmailCiphertext, &passwordHash, &a.Name,
		&role, &a.PlatformAdmin, &a.TenantID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if passwordHash != nil {
		a.PasswordHash = *passwordHash
	}
	a.Role = domain.Role(role)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.EmailHash, a.EmailCiphertext, nullable(a.PasswordHash), a.Name,
		string(a.Role), a.PlatformAdmin, a.TenantID, a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err, "accounts_email_hash_key") {
			return domain.ErrEmailAlreadyRegistered
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *AccountRepository) FindByEmailHash(ctx context.Context, hash string) (*domain.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email_hash = $1`, hash)
}

func (r *AccountRepository) findOne(ctx context.Context, sql string, arg string) (*domain.Account, error) {
	a, err := scanAccount(r.q.QueryRow(ctx, sql, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) List(ctx context.Context, filter ports.ListAccountsFilter) ([]*domain.Account, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE $1 = '' OR tenant_id = $1
		ORDER BY created_at DESC, id`,
		filter.TenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("update account password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) UpdateAssignment(ctx context.Context, id string, role domain.Role, tenantID *string, now time.Time) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE accounts SET role = $2, tenant_id = $3, updated_at = $4 WHERE id = $1`,
		id, string(role), tenantID, now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("update account assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// MarkResetRequested takes the account row lock for the rest of the
// transaction; a concurrent issuance waits here and then sees the token this
// one inserted.
func (r *AccountRepository) MarkResetRequested(ctx context.Context, id string, now time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE accounts SET reset_requested_at = $2 WHERE id = $1`, id, now.UTC())
	if err != nil {
		return fmt.Errorf("mark reset requested: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
