package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nodi/console-identity/internal/core/domain"
)

// TenantRepository implements ports.TenantRepository.
type TenantRepository struct {
	col *mongo.Collection
}

type tenantDoc struct {
	ID          string    `bson:"_id"`
	Code        string    `bson:"code"`
	Name        string    `bson:"name"`
	Description string    `bson:"description,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (d tenantDoc) toDomain() *domain.Tenant {
	return &domain.Tenant{ID: d.ID, Code: d.Code, Name: d.Name, Description: d.Description, CreatedAt: d.CreatedAt.UTC()}
}

func (r *TenantRepository) Create(ctx context.Context, t *domain.Tenant) error {
	doc := tenantDoc{ID: t.ID, Code: t.Code, Name: t.Name, Description: t.Description, CreatedAt: t.CreatedAt.UTC()}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrTenantCodeExists
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) FindByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var doc tenantDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *TenantRepository) List(ctx context.Context, search string) ([]*domain.Tenant, error) {
	query := bson.M{}
	if search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"code": re},
			bson.M{"name": re},
			bson.M{"description": re},
		}
	}
	cur, err := r.col.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer cur.Close(ctx)

	var docs []tenantDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tenants: %w", err)
	}
	out := make([]*domain.Tenant, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
