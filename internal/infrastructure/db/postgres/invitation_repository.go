package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nodi/console-identity/internal/core/domain"
)

const invitationColumns = `id, token, tenant_id, role, invited_by, expires_at, accepted_at, created_at`

// InvitationRepository implements ports.InvitationRepository.
type InvitationRepository struct {
	q querier
}

func scanInvitation(row pgx.Row) (*domain.Invitation, error) {
	var (
		inv  domain.Invitation
		role string
	)
	err := row.Scan(&inv.ID, &inv.Token, &inv.TenantID, &role, &inv.InvitedBy,
		&inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	inv.Role = domain.Role(role)
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	inv.CreatedAt = inv.CreatedAt.UTC()
	if inv.AcceptedAt != nil {
		at := inv.AcceptedAt.UTC()
		inv.AcceptedAt = &at
	}
	return &inv, nil
}

func (r *InvitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO invitations (id, token, tenant_id, role, invited_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inv.ID, inv.Token, inv.TenantID, string(inv.Role), inv.InvitedBy,
		inv.ExpiresAt.UTC(), inv.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err, "invitations_token_key") {
			return domain.ErrDuplicateToken
		}
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (r *InvitationRepository) FindByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	inv, err := scanInvitation(r.q.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE token = $1`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	return inv, nil
}

// Accept is one conditional UPDATE. A concurrent redemption blocks on the row
// lock and then re-checks the predicate against the committed row, so it
// updates nothing and is classified from the stored state.
func (r *InvitationRepository) Accept(ctx context.Context, token string, now time.Time) (*domain.Invitation, error) {
	now = now.UTC()
	inv, err := scanInvitation(r.q.QueryRow(ctx, `
		UPDATE invitations SET accepted_at = $2
		WHERE token = $1 AND accepted_at IS NULL AND expires_at > $2
		RETURNING `+invitationColumns,
		token, now,
	))
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}

	current, err := r.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := current.Check(now); err != nil {
		return nil, err
	}
	return nil, domain.ErrInvitationAlreadyAccepted
}
