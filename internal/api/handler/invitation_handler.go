package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/core/ports"
)

type InvitationHandler struct {
	service ports.InvitationService
}

func NewInvitationHandler(service ports.InvitationService) *InvitationHandler {
	return &InvitationHandler{service: service}
}

type createInvitationRequest struct {
	Role          string `json:"role"                    validate:"required"`
	ExpiresInDays int    `json:"expiresInDays,omitempty" validate:"gte=0,lte=90"`
	Email         string `json:"email,omitempty"         validate:"omitempty,email"`
}

type invitationResponse struct {
	ID        string      `json:"id"`
	Token     string      `json:"token"`
	TenantID  string      `json:"tenantId"`
	Role      domain.Role `json:"role"`
	ExpiresAt time.Time   `json:"expiresAt"`
	InviteURL string      `json:"inviteUrl"`
}

type signupRequest struct {
	Token           string `json:"token"                     validate:"required"`
	Email           string `json:"email"                     validate:"required,email"`
	Password        string `json:"password"                  validate:"required"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
	Name            string `json:"name"                      validate:"required,max=100"`
}

type accountResponse struct {
	Account *domain.Account `json:"account"`
}

// Create issues an invitation into a tenant.
//
// @Summary      Invite into a tenant
// @Tags         invitations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                   true  "Tenant id"
// @Param        body  body      createInvitationRequest  true  "Invitation"
// @Success      201   {object}  invitationResponse
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  errorBody
// @Failure      403   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Router       /api/tenants/{id}/invitations [post]
func (h *InvitationHandler) Create(c echo.Context) error {
	s, err := actor(c)
	if err != nil {
		return err
	}
	var req createInvitationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return err
	}

	issued, err := h.service.Create(c.Request().Context(), ports.CreateInvitationInput{
		TenantID:   c.Param("id"),
		Role:       role,
		ExpiryDays: req.ExpiresInDays,
		IssuerID:   s.AccountID,
		Email:      req.Email,
	})
	if err != nil {
		return err
	}

	inv := issued.Invitation
	return c.JSON(http.StatusCreated, invitationResponse{
		ID:        inv.ID,
		Token:     inv.Token,
		TenantID:  inv.TenantID,
		Role:      inv.Role,
		ExpiresAt: inv.ExpiresAt,
		InviteURL: issued.URL,
	})
}

// Validate reports whether an invitation token can still be redeemed. It
// always answers 200; an unusable token carries a reason.
//
// @Summary      Validate an invitation
// @Tags         invitations
// @Produce      json
// @Param        token  path      string  true  "Invitation token"
// @Success      200    {object}  domain.InvitationStatus
// @Router       /api/invitations/{token} [get]
func (h *InvitationHandler) Validate(c echo.Context) error {
	status, err := h.service.Validate(c.Request().Context(), c.Param("token"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

// Signup redeems an invitation and creates the account.
//
// @Summary      Sign up with an invitation
// @Tags         invitations
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Sign-up details"
// @Success      201   {object}  accountResponse
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Failure      410   {object}  errorBody
// @Router       /api/auth/signup [post]
func (h *InvitationHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	account, err := h.service.Redeem(c.Request().Context(), ports.RedeemInvitationInput{
		Token:           req.Token,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Name:            req.Name,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, accountResponse{Account: account})
}
