package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nodi/console-identity/internal/core/domain"
)

// InvitationRepository implements ports.InvitationRepository.
type InvitationRepository struct {
	col *mongo.Collection
}

type invitationDoc struct {
	ID         string     `bson:"_id"`
	Token      string     `bson:"token"`
	TenantID   string     `bson:"tenant_id"`
	Role       string     `bson:"role"`
	InvitedBy  string     `bson:"invited_by"`
	ExpiresAt  time.Time  `bson:"expires_at"`
	AcceptedAt *time.Time `bson:"accepted_at"`
	CreatedAt  time.Time  `bson:"created_at"`
}

func (d invitationDoc) toDomain() *domain.Invitation {
	inv := &domain.Invitation{
		ID:        d.ID,
		Token:     d.Token,
		TenantID:  d.TenantID,
		Role:      domain.Role(d.Role),
		InvitedBy: d.InvitedBy,
		ExpiresAt: d.ExpiresAt.UTC(),
		CreatedAt: d.CreatedAt.UTC(),
	}
	if d.AcceptedAt != nil {
		at := d.AcceptedAt.UTC()
		inv.AcceptedAt = &at
	}
	return inv
}

func (r *InvitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	doc := invitationDoc{
		ID:        inv.ID,
		Token:     inv.Token,
		TenantID:  inv.TenantID,
		Role:      string(inv.Role),
		InvitedBy: inv.InvitedBy,
		ExpiresAt: inv.ExpiresAt.UTC(),
		CreatedAt: inv.CreatedAt.UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateToken
		}
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (r *InvitationRepository) FindByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var doc invitationDoc
	if err := r.col.FindOne(ctx, bson.M{"token": token}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	return doc.toDomain(), nil
}

// Accept matches only a pending invitation, so of two racing redemptions the
// second finds nothing to update (or hits a write conflict and is retried by
// the transaction) and is then classified from the stored document.
func (r *InvitationRepository) Accept(ctx context.Context, token string, now time.Time) (*domain.Invitation, error) {
	now = now.UTC()
	filter := bson.M{
		"token":       token,
		"accepted_at": nil,
		"expires_at":  bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"accepted_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc invitationDoc
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
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
