package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/nodi/console-identity/internal/core/domain"
)

const tenantColumns = `id, code, name, description, created_at`

// TenantRepository implements ports.TenantRepository.
type TenantRepository struct {
	q querier
}

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	if err := row.Scan(&t.ID, &t.Code, &t.Name, &t.Description, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

func (r *TenantRepository) Create(ctx context.Context, t *domain.Tenant) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO tenants (`+tenantColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Code, t.Name, t.Description, t.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err, "tenants_code_key") {
			return domain.ErrTenantCodeExists
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) FindByID(ctx context.Context, id string) (*domain.Tenant, error) {
	t, err := scanTenant(r.q.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return t, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *TenantRepository) List(ctx context.Context, search string) ([]*domain.Tenant, error) {
	pattern := "%" + likeEscaper.Replace(search) + "%"
	rows, err := r.q.Query(ctx, `
		SELECT `+tenantColumns+` FROM tenants
		WHERE $1 = '' OR code ILIKE $2 OR name ILIKE $2 OR description ILIKE $2
		ORDER BY code`,
		search, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []*domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return out, nil
}
