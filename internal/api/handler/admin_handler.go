package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/core/ports"
)

// AdminHandler serves the platform admin area: customers (tenants) and users.
type AdminHandler struct {
	tenants  ports.TenantService
	accounts ports.AccountService
}

func NewAdminHandler(tenants ports.TenantService, accounts ports.AccountService) *AdminHandler {
	return &AdminHandler{tenants: tenants, accounts: accounts}
}

type createCustomerRequest struct {
	Code        string `json:"code"                  validate:"required,max=32"`
	Name        string `json:"name"                  validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=1000"`
}

type customerResponse struct {
	Customer *domain.Tenant `json:"customer"`
}

type customersResponse struct {
	Customers []*domain.Tenant `json:"customers"`
}

type usersResponse struct {
	Users []*domain.Account `json:"users"`
}

type userResponse struct {
	User *domain.Account `json:"user"`
}

// updateUserRequest leaves absent fields unchanged; "tenantId": null removes
// the tenant.
type updateUserRequest struct {
	Role     *string        `json:"role,omitempty"`
	TenantID optionalString `json:"tenantId" swaggertype:"string"`
}

// ListCustomers lists tenants.
//
// @Summary      List customers
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        search  query     string  false  "Substring of code, name or description"
// @Success      200     {object}  customersResponse
// @Failure      401     {object}  errorBody
// @Failure      403     {object}  errorBody
// @Router       /api/admin/customers [get]
func (h *AdminHandler) ListCustomers(c echo.Context) error {
	s, err := actor(c)
	if err != nil {
		return err
	}
	tenants, err := h.tenants.List(c.Request().Context(), s, c.QueryParam("search"))
	if err != nil {
		return err
	}
	if tenants == nil {
		tenants = []*domain.Tenant{}
	}
	return c.JSON(http.StatusOK, customersResponse{Customers: tenants})
}

// CreateCustomer creates a tenant.
//
// @Summary      Create a customer
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createCustomerRequest  true  "Customer"
// @Success      201   {object}  customerResponse
// @Failure      400   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /api/admin/customers [post]
func (h *AdminHandler) CreateCustomer(c echo.Context) error {
	s, err := actor(c)
	if err != nil {
		return err
	}
	var req createCustomerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	t, err := h.tenants.Create(c.Request().Context(), s, ports.CreateTenantInput{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, customerResponse{Customer: t})
}

// GetCustomer returns one tenant.
//
// @Summary      Get a customer
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Customer id"
// @Success      200  {object}  customerResponse
// @Failure      404  {object}  errorBody
// @Router       /api/admin/customers/{id} [get]
func (h *AdminHandler) GetCustomer(c echo.Context) error {
	s, err := actor(c)
	if err != nil {
		return err
	}
	t, err := h.tenants.Get(c.Request().Context(), s, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customerResponse{Customer: t})
}

// ListUsers lists accounts, newest first.
//
// @Summary      List users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        search  query     string  false  "Substring of name or email"
// @Success      200     {object}  usersResponse
// @Failure      403     {object}  errorBody
// @Router       /api/admin/users [get]
func (h *AdminHandler) ListUsers(c echo.Context) error {
	s, err := actor(c)
	if err != nil {
		return err
	}
	accounts, err := h.accounts.List(c.Request().Context(), s, c.QueryParam("search"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, usersResponse{Users: accounts})
}

// UpdateUser reassigns a user's role and tenant.
//
// @Summary      Update a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "User id"
// @Param        body  body      updateUserRequest  true  "Changes"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Router       /api/admin/users/{id} [patch]
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	s, err := actor(c)
	if err != nil {
		return err
	}
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	var upd ports.AccountUpdate
	if req.Role != nil {
		role, err := domain.ParseRole(*req.Role)
		if err != nil {
			return err
		}
		upd.Role = &role
	}
	if req.TenantID.Set {
		if req.TenantID.Value == nil || *req.TenantID.Value == "" {
			upd.ClearTenant = true
		} else {
			upd.TenantID = req.TenantID.Value
		}
	}

	account, err := h.accounts.Update(c.Request().Context(), s, c.Param("id"), upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: account})
}

// DeleteUser removes a user.
//
// @Summary      Delete a user
// @Tags         admin
// @Security     BearerAuth
// @Param        id   path  string  true  "User id"
// @Success      204
// @Failure      400  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Router       /api/admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	s, err := actor(c)
	if err != nil {
		return err
	}
	if err := h.accounts.Delete(c.Request().Context(), s, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
