package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/core/ports"
)

const (
	// SessionCookie carries the signed session token for browser callers.
	SessionCookie = "console_session"

	sessionKey = "session"
)

// CookieOptions shapes the session cookie.
type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

// SetSessionCookie stores token on the response.
func SetSessionCookie(c echo.Context, opts CookieOptions, token string, expiresAt time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(opts.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c echo.Context, opts CookieOptions) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Session resolves the caller's session from the session cookie or a Bearer
// token and refreshes it from the account record. Callers without a valid
// session continue unauthenticated; gating is left to Gate.
func Session(issuer ports.SessionIssuer, auth ports.AuthService, cookie CookieOptions, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, fromCookie := sessionToken(c.Request())
			if token == "" {
				return next(c)
			}

			snapshot, err := issuer.Parse(token)
			if err == nil {
				var current *domain.Session
				current, err = auth.MaterializeSession(c.Request().Context(), snapshot)
				if err == nil {
					SetSession(c, current)
					return next(c)
				}
			}

			if !errors.Is(err, domain.ErrSessionExpired) && !errors.Is(err, domain.ErrInvalidSession) {
				return err
			}
			log.Debug().Err(err).Str("path", c.Request().URL.Path).Msg("discarding session")
			if fromCookie {
				ClearSessionCookie(c, cookie)
			}
			return next(c)
		}
	}
}

// SetSession attaches s to the request.
func SetSession(c echo.Context, s *domain.Session) {
	c.Set(sessionKey, s)
}

// SessionFrom returns the materialized session, or nil.
func SessionFrom(c echo.Context) *domain.Session {
	s, _ := c.Get(sessionKey).(*domain.Session)
	return s
}

func sessionToken(r *http.Request) (token string, fromCookie bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1]), false
		}
	}
	if ck, err := r.Cookie(SessionCookie); err == nil {
		return ck.Value, true
	}
	return "", false
}
