package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/nodi/console-identity/internal/core/ports"
)

const defaultTimeout = 10 * time.Second

const (
	accountsCollection    = "accounts"
	tenantsCollection     = "tenants"
	invitationsCollection = "invitations"
	resetTokensCollection = "password_reset_tokens"
)

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	return client, db, nil
}

// Store implements ports.Store on MongoDB. Transactions need a replica set
// or sharded cluster.
type Store struct {
	client      *mongo.Client
	db          *mongo.Database
	accounts    *AccountRepository
	tenants     *TenantRepository
	invitations *InvitationRepository
	resets      *ResetTokenRepository
}

func NewStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:      client,
		db:          db,
		accounts:    &AccountRepository{col: db.Collection(accountsCollection)},
		tenants:     &TenantRepository{col: db.Collection(tenantsCollection)},
		invitations: &InvitationRepository{col: db.Collection(invitationsCollection)},
		resets:      &ResetTokenRepository{col: db.Collection(resetTokensCollection)},
	}
}

func (s *Store) Accounts() ports.AccountRepository       { return s.accounts }
func (s *Store) Tenants() ports.TenantRepository         { return s.tenants }
func (s *Store) Invitations() ports.InvitationRepository { return s.invitations }
func (s *Store) ResetTokens() ports.ResetTokenRepository { return s.resets }

// WithinTx runs fn inside a multi-document transaction. The session travels
// in the context handed to fn, so the store's own repositories take part in
// it. The driver retries fn on transient transaction errors.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Repositories) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo start session: %w", err)
	}
	defer session.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, s)
	}, opts)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique indexes the identity invariants rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	unique := options.Index().SetUnique(true)
	plan := map[string][]mongo.IndexModel{
		accountsCollection: {
			{Keys: bson.D{{Key: "email_hash", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		tenantsCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: unique},
		},
		invitationsCollection: {
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
		},
		resetTokensCollection: {
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "email_hash", Value: 1}}},
		},
	}
	for name, indexes := range plan {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("mongo indexes %s: %w", name, err)
		}
	}
	return nil
}
