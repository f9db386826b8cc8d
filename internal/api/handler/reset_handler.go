package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nodi/console-identity/internal/core/ports"
)

type ResetHandler struct {
	service ports.ResetService
}

func NewResetHandler(service ports.ResetService) *ResetHandler {
	return &ResetHandler{service: service}
}

type resetRequestRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token           string `json:"token"                     validate:"required"`
	Password        string `json:"password"                  validate:"required"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

// Request starts password recovery. The answer is the same whether or not
// the address belongs to an account.
//
// @Summary      Request a password reset
// @Tags         password-reset
// @Accept       json
// @Produce      json
// @Param        body  body      resetRequestRequest  true  "Email"
// @Success      200   {object}  successResponse
// @Failure      422   {object}  errorBody
// @Router       /api/password-reset/request [post]
func (h *ResetHandler) Request(c echo.Context) error {
	var req resetRequestRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.service.RequestReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

// Reset sets a new password with a reset token.
//
// @Summary      Reset password
// @Tags         password-reset
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Token and new password"
// @Success      200   {object}  successResponse
// @Failure      400   {object}  errorBody
// @Router       /api/password-reset/reset [post]
func (h *ResetHandler) Reset(c echo.Context) error {
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.service.ResetPassword(c.Request().Context(), req.Token, req.Password, req.ConfirmPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}
