package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/nodi/console-identity/internal/api/handler"
	"github.com/nodi/console-identity/internal/api/middleware"
	"github.com/nodi/console-identity/internal/core/access"
	"github.com/nodi/console-identity/internal/core/ports"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Auth        ports.AuthService
	Sessions    ports.SessionIssuer
	Invitations ports.InvitationService
	Resets      ports.ResetService
	Tenants     ports.TenantService
	Accounts    ports.AccountService
	Google      ports.IdentityProvider // nil disables federated sign-in
	Checks      map[string]handler.Check
	Policy      access.Policy
	Cookie      middleware.CookieOptions
	Log         zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// HTTP metrics live in their own registry so that building a second router
	// never collides with the first; /metrics serves both registries.
	httpMetrics := prometheus.NewRegistry()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "console",
		Subsystem:  "http",
		Registerer: httpMetrics,
	}))
	e.Use(middleware.Session(d.Sessions, d.Auth, d.Cookie, d.Log))
	e.Use(middleware.Gate(d.Policy))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Sessions, d.Cookie, d.Policy, d.Log)
	invitationHandler := handler.NewInvitationHandler(d.Invitations)
	resetHandler := handler.NewResetHandler(d.Resets)
	adminHandler := handler.NewAdminHandler(d.Tenants, d.Accounts)
	healthHandler := handler.NewHealthHandler(d.Checks)

	api := e.Group("/api")

	// --- Auth routes ---
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/session", authHandler.Session)
	api.GET("/auth/gate", authHandler.Gate)
	api.POST("/auth/signup", invitationHandler.Signup)
	if d.Google != nil {
		oauthHandler := handler.NewOAuthHandler(d.Google, authHandler, d.Log)
		api.GET("/auth/oauth/google/login", oauthHandler.Login)
		api.GET("/auth/oauth/google/callback", oauthHandler.Callback)
	}

	// --- Invitations ---
	api.GET("/invitations/:token", invitationHandler.Validate)
	api.POST("/tenants/:id/invitations", invitationHandler.Create)

	// --- Password reset ---
	api.POST("/password-reset/request", resetHandler.Request)
	api.POST("/password-reset/reset", resetHandler.Reset)

	// --- Platform admin ---
	admin := api.Group("/admin", middleware.Require(d.Policy))
	admin.GET("/customers", adminHandler.ListCustomers)
	admin.POST("/customers", adminHandler.CreateCustomer)
	admin.GET("/customers/:id", adminHandler.GetCustomer)
	admin.GET("/users", adminHandler.ListUsers)
	admin.PATCH("/users/:id", adminHandler.UpdateUser)
	admin.DELETE("/users/:id", adminHandler.DeleteUser)

	// --- Health probes, metrics and docs (public) ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{prometheus.DefaultGatherer, httpMetrics},
	}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// requestLogger logs the route pattern, not the URI, so tokens carried in
// paths never reach the log.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("route", v.RoutePath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
