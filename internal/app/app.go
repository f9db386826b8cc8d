// Package app opens the process-wide dependencies shared by the server and
// the admin CLI.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/core/ports"
	"github.com/nodi/console-identity/internal/crypto"
	"github.com/nodi/console-identity/internal/infrastructure/config"
	"github.com/nodi/console-identity/internal/infrastructure/db/mongo"
	"github.com/nodi/console-identity/internal/infrastructure/db/postgres"
	"github.com/nodi/console-identity/internal/infrastructure/mail"
	"github.com/nodi/console-identity/internal/infrastructure/queue"
)

// OpenStore connects to the configured engine and brings its schema up to
// date: pending migrations on PostgreSQL, unique indexes on MongoDB. Both are
// idempotent.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		res, err := postgres.Migrate(ctx, pool, postgres.Migrations(), log)
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().
			Uint("from", res.From).
			Uint("to", res.To).
			Bool("applied", res.Applied()).
			Msg("postgres schema up to date")
		return postgres.NewStore(pool), nil

	case config.StoreMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		store := mongo.NewStore(client, db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("mongo indexes ensured")
		return store, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// Security builds the email codec and the password hasher.
func Security(cfg *config.Config) (*crypto.EmailCodec, *crypto.PasswordHasher, error) {
	key, err := cfg.EmailKey()
	if err != nil {
		return nil, nil, err
	}
	codec, err := crypto.NewEmailCodec(key)
	if err != nil {
		return nil, nil, err
	}
	hasher, err := crypto.NewPasswordHasher(cfg.Security.BcryptCost, cfg.Security.HashConcurrency)
	if err != nil {
		return nil, nil, err
	}
	return codec, hasher, nil
}

// Outbox carries outbound mail from the services to SES.
type Outbox struct {
	// Queue is nil when mail is not configured, so services fall back to
	// logging that links must be shared by hand.
	Queue ports.NotificationQueue

	dispatcher *queue.Dispatcher
	stop       context.CancelFunc
}

// OpenOutbox starts the notification workers when mail is configured. The
// workers run on their own context so that mail queued by in-flight requests
// is still delivered after ctx is cancelled; Close drains them.
func OpenOutbox(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Outbox, error) {
	if !cfg.MailEnabled() {
		log.Warn().Msg("SES_FROM_EMAIL not set, invitation and reset links are not mailed")
		return &Outbox{}, nil
	}
	notifier, err := mail.NewSESNotifier(ctx, cfg.Mail.Region, cfg.Mail.From, log)
	if err != nil {
		return nil, err
	}

	workCtx, stop := context.WithCancel(context.Background())
	d := queue.NewDispatcher(cfg.Notify.Workers, cfg.Notify.QueueSize, notifier, log)
	d.Start(workCtx)
	log.Info().Str("from", cfg.Mail.From).Str("region", cfg.Mail.Region).Msg("mail delivery enabled")
	return &Outbox{Queue: d, dispatcher: d, stop: stop}, nil
}

// Close delivers what is already queued and stops the workers.
func (o *Outbox) Close() {
	if o.dispatcher == nil {
		return
	}
	o.stop()
	o.dispatcher.Wait()
}
