package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nodi/console-identity/internal/core/access"
)

// Gate enforces policy on every request. API paths get 401 or 403; page
// paths are redirected.
func Gate(policy access.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := c.Request().URL.Path
			d := policy.Decide(SessionFrom(c), p)
			if d == access.Allow {
				return next(c)
			}
			if isAPI(p) {
				return Deny(d)
			}
			return c.Redirect(http.StatusFound, policy.Location(d, p))
		}
	}
}

// Require re-checks policy inside a route group, so handlers mounted there
// never run on a decision other than Allow even if Gate was bypassed.
func Require(policy access.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if d := policy.Decide(SessionFrom(c), c.Request().URL.Path); d != access.Allow {
				return Deny(d)
			}
			return next(c)
		}
	}
}

// Deny is the API rendition of a redirecting decision.
func Deny(d access.Decision) error {
	if d == access.RedirectToLogin {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return echo.NewHTTPError(http.StatusForbidden, "access forbidden")
}

func isAPI(p string) bool {
	return p == "/api" || strings.HasPrefix(p, "/api/")
}
