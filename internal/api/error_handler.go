package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that maps domain
// errors to a status and a stable code, and logs anything unexpected without
// leaking it to the client.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, resp := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, resp)
	}
}

type mapping struct {
	err    error
	status int
	code   string
}

// Order matters only for wrapped errors; the sentinels are distinct.
var domainErrors = []mapping{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{domain.ErrRegistrationClosed, http.StatusForbidden, "REGISTRATION_CLOSED"},
	{domain.ErrSessionExpired, http.StatusUnauthorized, "SESSION_EXPIRED"},
	{domain.ErrInvalidSession, http.StatusUnauthorized, "UNAUTHENTICATED"},
	{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{domain.ErrSelfModification, http.StatusBadRequest, "SELF_MODIFICATION"},
	{domain.ErrAccountNotFound, http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
	{domain.ErrEmailAlreadyRegistered, http.StatusConflict, "EMAIL_ALREADY_REGISTERED"},
	{domain.ErrTenantNotFound, http.StatusNotFound, "TENANT_NOT_FOUND"},
	{domain.ErrTenantCodeExists, http.StatusConflict, "TENANT_CODE_EXISTS"},
	{domain.ErrInvitationNotFound, http.StatusNotFound, "INVITATION_NOT_FOUND"},
	{domain.ErrInvitationAlreadyAccepted, http.StatusConflict, "INVITATION_ALREADY_ACCEPTED"},
	{domain.ErrInvitationExpired, http.StatusGone, "INVITATION_EXPIRED"},
	{domain.ErrResetTokenInvalid, http.StatusBadRequest, "INVALID_TOKEN"},
	{domain.ErrResetTokenUsed, http.StatusBadRequest, "ALREADY_USED"},
	{domain.ErrResetTokenExpired, http.StatusBadRequest, "TOKEN_EXPIRED"},
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, gate denials).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message), Code: statusCode(he.Code)}
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, errorResponse{Error: ve.Error(), Code: "VALIDATION_ERROR"}
	}

	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			return m.status, errorResponse{Error: m.err.Error(), Code: m.code}
		}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "INTERNAL"}
}

// statusCode turns 404 into NOT_FOUND, 401 into UNAUTHENTICATED and so on.
func statusCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusUnprocessableEntity:
		return "VALIDATION_ERROR"
	}
	text := http.StatusText(status)
	if text == "" {
		return fmt.Sprintf("HTTP_%d", status)
	}
	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text))
}
