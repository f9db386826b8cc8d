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
	"github.com/nodi/console-identity/internal/core/ports"
)

// AccountRepository implements ports.AccountRepository. Only the lookup hash
// and ciphertext of an email are ever written.
type AccountRepository struct {
	col *mongo.Collection
}

type accountDoc struct {
	ID              string    `bson:"_id"`
	EmailHash       string    `bson:"email_hash"`
	EmailCiphertext string    `bson:"email_ciphertext"`
	PasswordHash    string    `bson:"password_hash,omitempty"`
	Name            string    `bson:"name"`
	Role            string    `bson:"role"`
	PlatformAdmin   bool      `bson:"platform_admin"`
	TenantID        *string   `bson:"tenant_id"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toAccountDoc(a *domain.Account) accountDoc {
	return accountDoc{
		ID:              a.ID,
		EmailHash:       a.EmailHash,
		EmailCiphertext: a.EmailCiphertext,
		PasswordHash:    a.PasswordHash,
		Name:            a.Name,
		Role:            string(a.Role),
		PlatformAdmin:   a.PlatformAdmin,
		TenantID:        a.TenantID,
		CreatedAt:       a.CreatedAt.UTC(),
		UpdatedAt:       a.UpdatedAt.UTC(),
	}
}

func (d accountDoc) toDomain() *domain.Account {
	return &domain.Account{
		ID:              d.ID,
		EmailHash:       d.EmailHash,
		EmailCiphertext: d.EmailCiphertext,
		PasswordHash:    d.PasswordHash,
		Name:            d.Name,
		Role:            domain.Role(d.Role),
		PlatformAdmin:   d.PlatformAdmin,
		TenantID:        d.TenantID,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	if _, err := r.col.InsertOne(ctx, toAccountDoc(a)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrEmailAlreadyRegistered
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *AccountRepository) FindByEmailHash(ctx context.Context, hash string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email_hash": hash})
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var doc accountDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) List(ctx context.Context, filter ports.ListAccountsFilter) ([]*domain.Account, error) {
	query := bson.M{}
	if filter.TenantID != "" {
		query["tenant_id"] = filter.TenantID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})

	cur, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer cur.Close(ctx)

	var docs []accountDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	out := make([]*domain.Account, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	return r.update(ctx, id, bson.M{"password_hash": passwordHash, "updated_at": now.UTC()})
}

func (r *AccountRepository) UpdateAssignment(ctx context.Context, id string, role domain.Role, tenantID *string, now time.Time) error {
	return r.update(ctx, id, bson.M{"role": string(role), "tenant_id": tenantID, "updated_at": now.UTC()})
}

// MarkResetRequested writes to the account document, so two transactions
// issuing a token for the same account hit a write conflict and the driver
// retries the loser against the winner's committed token. The counter keeps
// the write from being a no-op when both carry the same timestamp.
func (r *AccountRepository) MarkResetRequested(ctx context.Context, id string, now time.Time) error {
	return r.apply(ctx, id, bson.M{
		"$set": bson.M{"reset_requested_at": now.UTC()},
		"$inc": bson.M{"reset_requests": 1},
	})
}

func (r *AccountRepository) update(ctx context.Context, id string, set bson.M) error {
	return r.apply(ctx, id, bson.M{"$set": set})
}

func (r *AccountRepository) apply(ctx context.Context, id string, change bson.M) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, change)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
