package handler

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/api/middleware"
	"github.com/nodi/console-identity/internal/core/ports"
	"github.com/nodi/console-identity/internal/crypto"
)

const (
	stateCookie     = "console_oauth_state"
	stateCookiePath = "/api/auth/oauth"
	stateMaxAge     = 600
)

// OAuthHandler runs the redirect flow of a federated identity provider.
type OAuthHandler struct {
	provider ports.IdentityProvider
	auth     *AuthHandler
	secure   bool
	log      zerolog.Logger
}

func NewOAuthHandler(provider ports.IdentityProvider, auth *AuthHandler, log zerolog.Logger) *OAuthHandler {
	return &OAuthHandler{provider: provider, auth: auth, secure: auth.cookie.Secure, log: log}
}

// Login redirects to the provider's consent screen.
//
// @Summary      Start federated sign-in
// @Tags         auth
// @Param        callbackUrl  query  string  false  "Local path to return to"
// @Success      302
// @Router       /api/auth/oauth/google/login [get]
func (h *OAuthHandler) Login(c echo.Context) error {
	state, err := crypto.NewToken()
	if err != nil {
		return err
	}
	c.SetCookie(h.stateCookie(state+"|"+localPath(c.QueryParam("callbackUrl")), stateMaxAge))
	return c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

// Callback completes the flow. Every failure lands back on the login page
// with a generic error so the reason for a rejection is never disclosed.
//
// @Summary      Federated sign-in callback
// @Tags         auth
// @Param        code   query  string  true  "Authorization code"
// @Param        state  query  string  true  "Anti-forgery state"
// @Success      302
// @Router       /api/auth/oauth/google/callback [get]
func (h *OAuthHandler) Callback(c echo.Context) error {
	ck, err := c.Cookie(stateCookie)
	c.SetCookie(h.stateCookie("", -1))
	if err != nil {
		return h.fail(c, "OAuthCallback", "missing state cookie")
	}
	state, callback, _ := strings.Cut(ck.Value, "|")
	got := c.QueryParam("state")
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(got)) != 1 {
		return h.fail(c, "OAuthCallback", "state mismatch")
	}
	if e := c.QueryParam("error"); e != "" {
		return h.fail(c, "OAuthSignin", "provider returned "+e)
	}

	ctx := c.Request().Context()
	identity, err := h.provider.Exchange(ctx, c.QueryParam("code"))
	if err != nil {
		h.log.Error().Err(err).Str("provider", h.provider.Name()).Msg("oauth exchange failed")
		return h.fail(c, "OAuthCallback", "exchange failed")
	}
	account, err := h.auth.auth.AuthenticateWithFederatedIdentity(ctx, *identity, h.provider.Name())
	if err != nil {
		h.log.Info().Err(err).Str("provider", h.provider.Name()).Msg("federated sign-in rejected")
		return h.fail(c, "AccessDenied", "sign-in rejected")
	}

	token, session, err := h.auth.sessions.Issue(account, h.provider.Name())
	if err != nil {
		return err
	}
	middleware.SetSessionCookie(c, h.auth.cookie, token, session.ExpiresAt)
	return c.Redirect(http.StatusFound, localPath(callback))
}

func (h *OAuthHandler) fail(c echo.Context, code, reason string) error {
	h.log.Debug().Str("provider", h.provider.Name()).Str("reason", reason).Msg("oauth sign-in failed")
	return c.Redirect(http.StatusFound, h.auth.policy.LoginPath+"?error="+url.QueryEscape(code))
}

func (h *OAuthHandler) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     stateCookie,
		Value:    value,
		Path:     stateCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// localPath accepts only same-origin absolute paths, defaulting to "/".
func localPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}
