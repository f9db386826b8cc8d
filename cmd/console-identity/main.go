// @title                      Console Identity API
// @version                    1.0
// @description                Sign-in, sessions, invitations, password recovery and platform administration for the multi-tenant console.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	_ "github.com/nodi/console-identity/docs"
	"github.com/nodi/console-identity/internal/api"
	"github.com/nodi/console-identity/internal/api/handler"
	"github.com/nodi/console-identity/internal/api/middleware"
	"github.com/nodi/console-identity/internal/app"
	"github.com/nodi/console-identity/internal/core/access"
	"github.com/nodi/console-identity/internal/core/ports"
	"github.com/nodi/console-identity/internal/core/service"
	"github.com/nodi/console-identity/internal/infrastructure/config"
	"github.com/nodi/console-identity/internal/infrastructure/db/redis"
	"github.com/nodi/console-identity/internal/infrastructure/oauth"
	"github.com/nodi/console-identity/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		// The logger is not configured yet.
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "console-identity",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("console-identity stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := app.OpenStore(ctx, cfg, logger.Component("store"))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("store close")
		}
	}()

	codec, hasher, err := app.Security(cfg)
	if err != nil {
		return err
	}

	checks := map[string]handler.Check{"store": store.Ping}

	var limiter ports.LoginLimiter
	if cfg.ThrottleEnabled() {
		client, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer func(c *goredis.Client) {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Msg("redis close")
			}
		}(client)
		limiter = redis.NewLoginLimiter(client, cfg.Auth.LoginMaxFailures, cfg.Auth.LoginLockout)
		checks["redis"] = redis.Pinger(client)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("login throttling enabled")
	}

	outbox, err := app.OpenOutbox(ctx, cfg, logger.Component("mail"))
	if err != nil {
		return err
	}

	sessions := service.NewSessionIssuer(cfg.Security.SessionSecret, cfg.Auth.SessionMaxAge)
	auth := service.NewAuthService(store, codec, hasher, limiter, cfg.InviteOnly(), logger.Component("auth"))
	invitations := service.NewInvitationService(store, codec, hasher, outbox.Queue, service.InvitationOptions{
		BaseURL:           cfg.PublicBaseURL,
		DefaultExpiryDays: cfg.Auth.InvitationDefaultExpiryDays,
	}, logger.Component("invitations"))
	resets := service.NewResetService(store, codec, hasher, outbox.Queue, service.ResetOptions{
		BaseURL:  cfg.PublicBaseURL,
		TokenTTL: cfg.Auth.ResetTokenTTL,
	}, logger.Component("reset"))
	accounts := service.NewAccountService(store, codec, hasher, logger.Component("accounts"))
	tenants := service.NewTenantService(store, logger.Component("tenants"))

	deps := api.Deps{
		Auth:        auth,
		Sessions:    sessions,
		Invitations: invitations,
		Resets:      resets,
		Tenants:     tenants,
		Accounts:    accounts,
		Checks:      checks,
		Policy:      access.DefaultPolicy(),
		Cookie: middleware.CookieOptions{
			Secure: cfg.Env == "production" || strings.HasPrefix(cfg.PublicBaseURL, "https://"),
			MaxAge: cfg.Auth.SessionMaxAge,
		},
		Log: logger.Component("http"),
	}
	if cfg.GoogleEnabled() {
		deps.Google = oauth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.PublicBaseURL)
		log.Info().Msg("google sign-in enabled")
	}

	e := api.NewRouter(deps)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("store", cfg.StoreDriver).
			Str("registration", cfg.Auth.RegistrationMode).
			Msg("console-identity listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	outbox.Close()
	log.Info().Msg("console-identity stopped")
	return serveErr
}
