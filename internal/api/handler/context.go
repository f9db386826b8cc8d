package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nodi/console-identity/internal/api/middleware"
	"github.com/nodi/console-identity/internal/core/domain"
)

// actor returns the caller's session, failing fast with 401 before any
// service call when the Session middleware found none.
func actor(c echo.Context) (*domain.Session, error) {
	s := middleware.SessionFrom(c)
	if !s.Authenticated() {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return s, nil
}

// bindAndValidate decodes the request body into req and runs struct validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return nil
}
