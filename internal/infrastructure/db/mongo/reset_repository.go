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

// ResetTokenRepository implements ports.ResetTokenRepository.
type ResetTokenRepository struct {
	col *mongo.Collection
}

type resetTokenDoc struct {
	ID        string     `bson:"_id"`
	Token     string     `bson:"token"`
	EmailHash string     `bson:"email_hash"`
	ExpiresAt time.Time  `bson:"expires_at"`
	UsedAt    *time.Time `bson:"used_at"`
	CreatedAt time.Time  `bson:"created_at"`
}

func (d resetTokenDoc) toDomain() *domain.PasswordResetToken {
	t := &domain.PasswordResetToken{
		ID:        d.ID,
		Token:     d.Token,
		EmailHash: d.EmailHash,
		ExpiresAt: d.ExpiresAt.UTC(),
		CreatedAt: d.CreatedAt.UTC(),
	}
	if d.UsedAt != nil {
		at := d.UsedAt.UTC()
		t.UsedAt = &at
	}
	return t
}

func (r *ResetTokenRepository) Create(ctx context.Context, t *domain.PasswordResetToken) error {
	doc := resetTokenDoc{
		ID:        t.ID,
		Token:     t.Token,
		EmailHash: t.EmailHash,
		ExpiresAt: t.ExpiresAt.UTC(),
		CreatedAt: t.CreatedAt.UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateToken
		}
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

func (r *ResetTokenRepository) FindByToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	var doc resetTokenDoc
	if err := r.col.FindOne(ctx, bson.M{"token": token}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *ResetTokenRepository) DeleteUnused(ctx context.Context, emailHash string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"email_hash": emailHash, "used_at": nil})
	if err != nil {
		return 0, fmt.Errorf("delete reset tokens: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *ResetTokenRepository) MarkUsed(ctx context.Context, token string, now time.Time) (*domain.PasswordResetToken, error) {
	now = now.UTC()
	filter := bson.M{
		"token":      token,
		"used_at":    nil,
		"expires_at": bson.M{"$gt": now},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc resetTokenDoc
	err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"used_at": now}}, opts).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
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
