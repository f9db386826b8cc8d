package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/api/middleware"
	"github.com/nodi/console-identity/internal/core/access"
	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/core/ports"
)

type AuthHandler struct {
	auth     ports.AuthService
	sessions ports.SessionIssuer
	cookie   middleware.CookieOptions
	policy   access.Policy
	log      zerolog.Logger
}

func NewAuthHandler(auth ports.AuthService, sessions ports.SessionIssuer, cookie middleware.CookieOptions, policy access.Policy, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, cookie: cookie, policy: policy, log: log}
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token     string          `json:"token,omitempty"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Session   *domain.Session `json:"session"`
}

type gateResponse struct {
	Path     string          `json:"path"`
	Class    string          `json:"class"`
	Decision access.Decision `json:"decision"`
	Location string          `json:"location,omitempty"`
}

// Login authenticates with email and password and opens a session.
//
// @Summary      Sign in with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  sessionResponse
// @Failure      401   {object}  errorBody
// @Failure      422   {object}  errorBody
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	account, err := h.auth.AuthenticateWithPassword(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.openSession(c, account, domain.ProviderCredentials)
}

func (h *AuthHandler) openSession(c echo.Context, account *domain.Account, provider string) error {
	token, session, err := h.sessions.Issue(account, provider)
	if err != nil {
		return err
	}
	session.Name = account.Name
	session.Email = account.Email

	middleware.SetSessionCookie(c, h.cookie, token, session.ExpiresAt)
	return c.JSON(http.StatusOK, sessionResponse{Token: token, ExpiresAt: session.ExpiresAt, Session: session})
}

// Session returns the caller's current session, refreshed from the account.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  errorBody
// @Router       /api/auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	s, err := actor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{ExpiresAt: s.ExpiresAt, Session: s})
}

// Logout clears the session cookie. Bearer tokens stay valid until they
// expire.
//
// @Summary      Sign out
// @Tags         auth
// @Success      204
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	middleware.ClearSessionCookie(c, h.cookie)
	return c.NoContent(http.StatusNoContent)
}

// Gate evaluates the access policy for the caller on an arbitrary path, so
// the page layer applies the same decision as the edge.
//
// @Summary      Access decision for a path
// @Tags         auth
// @Produce      json
// @Param        path  query     string  true  "Path to evaluate"
// @Success      200   {object}  gateResponse
// @Failure      400   {object}  errorBody
// @Router       /api/auth/gate [get]
func (h *AuthHandler) Gate(c echo.Context) error {
	p := c.QueryParam("path")
	if p == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path is required")
	}
	d := h.policy.Decide(middleware.SessionFrom(c), p)
	return c.JSON(http.StatusOK, gateResponse{
		Path:     p,
		Class:    h.policy.Classify(p).String(),
		Decision: d,
		Location: h.policy.Location(d, p),
	})
}
