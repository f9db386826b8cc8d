package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/core/ports"
)

var platformAdmin = &domain.Session{AccountID: "admin-1", Role: domain.RoleSuperAdmin, PlatformAdmin: true}

func TestAdminHandler_ListCustomers(t *testing.T) {
	tenants := &stubTenantService{listFn: func(_ context.Context, actor *domain.Session, search string) ([]*domain.Tenant, error) {
		if actor != platformAdmin || search != "acme" {
			t.Fatalf("unexpected args %+v %q", actor, search)
		}
		return nil, nil
	}}
	c, rec := newContext(http.MethodGet, "/api/admin/customers?search=acme", "")
	withSession(c, platformAdmin)

	if err := NewAdminHandler(tenants, &stubAccountService{}).ListCustomers(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if body := rec.Body.String(); body != "{\"customers\":[]}\n" {
		t.Fatalf("expected empty array, got %s", body)
	}
}

func TestAdminHandler_CreateCustomer(t *testing.T) {
	tenants := &stubTenantService{createFn: func(_ context.Context, _ *domain.Session, in ports.CreateTenantInput) (*domain.Tenant, error) {
		if in.Code == "ACME" {
			return nil, domain.ErrTenantCodeExists
		}
		return &domain.Tenant{ID: "t-2", Code: in.Code, Name: in.Name}, nil
	}}
	h := NewAdminHandler(tenants, &stubAccountService{})

	c, rec := newContext(http.MethodPost, "/api/admin/customers", `{"code":"GLOBEX","name":"Globex"}`)
	withSession(c, platformAdmin)
	if err := h.CreateCustomer(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	c, _ = newContext(http.MethodPost, "/api/admin/customers", `{"code":"ACME","name":"Acme"}`)
	withSession(c, platformAdmin)
	if err := h.CreateCustomer(c); !errors.Is(err, domain.ErrTenantCodeExists) {
		t.Fatalf("expected ErrTenantCodeExists, got %v", err)
	}

	c, _ = newContext(http.MethodPost, "/api/admin/customers", `{"name":"No code"}`)
	withSession(c, platformAdmin)
	if code := httpCode(h.CreateCustomer(c)); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
}

func TestAdminHandler_UpdateUser(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, upd ports.AccountUpdate)
	}{
		{"role only", `{"role":"viewer"}`, func(t *testing.T, upd ports.AccountUpdate) {
			if upd.Role == nil || *upd.Role != domain.RoleViewer || upd.TenantID != nil || upd.ClearTenant {
				t.Fatalf("unexpected update %+v", upd)
			}
		}},
		{"assign tenant", `{"tenantId":"t-9"}`, func(t *testing.T, upd ports.AccountUpdate) {
			if upd.Role != nil || upd.TenantID == nil || *upd.TenantID != "t-9" || upd.ClearTenant {
				t.Fatalf("unexpected update %+v", upd)
			}
		}},
		{"clear tenant", `{"tenantId":null}`, func(t *testing.T, upd ports.AccountUpdate) {
			if upd.TenantID != nil || !upd.ClearTenant {
				t.Fatalf("unexpected update %+v", upd)
			}
		}},
		{"empty body", `{}`, func(t *testing.T, upd ports.AccountUpdate) {
			if upd.Role != nil || upd.TenantID != nil || upd.ClearTenant {
				t.Fatalf("unexpected update %+v", upd)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := &stubAccountService{updateFn: func(_ context.Context, _ *domain.Session, id string, upd ports.AccountUpdate) (*domain.Account, error) {
				if id != "u-1" {
					t.Fatalf("unexpected id %q", id)
				}
				tt.check(t, upd)
				return &domain.Account{ID: id, Role: domain.RoleViewer}, nil
			}}
			c, rec := newContext(http.MethodPatch, "/api/admin/users/u-1", tt.body)
			c.SetParamNames("id")
			c.SetParamValues("u-1")
			withSession(c, platformAdmin)

			if err := NewAdminHandler(&stubTenantService{}, accounts).UpdateUser(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			var resp map[string]map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp["user"]["id"] != "u-1" {
				t.Fatalf("unexpected body %s", rec.Body.String())
			}
		})
	}
}

func TestAdminHandler_UpdateUser_UnknownRole(t *testing.T) {
	accounts := &stubAccountService{updateFn: func(context.Context, *domain.Session, string, ports.AccountUpdate) (*domain.Account, error) {
		t.Fatal("should not be called")
		return nil, nil
	}}
	c, _ := newContext(http.MethodPatch, "/api/admin/users/u-1", `{"role":"ROOT"}`)
	withSession(c, platformAdmin)

	if err := NewAdminHandler(&stubTenantService{}, accounts).UpdateUser(c); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdminHandler_DeleteUser(t *testing.T) {
	accounts := &stubAccountService{deleteFn: func(_ context.Context, actor *domain.Session, id string) error {
		if id == actor.AccountID {
			return domain.ErrSelfModification
		}
		return nil
	}}
	h := NewAdminHandler(&stubTenantService{}, accounts)

	c, rec := newContext(http.MethodDelete, "/api/admin/users/u-1", "")
	c.SetParamNames("id")
	c.SetParamValues("u-1")
	withSession(c, platformAdmin)
	if err := h.DeleteUser(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	c, _ = newContext(http.MethodDelete, "/api/admin/users/admin-1", "")
	c.SetParamNames("id")
	c.SetParamValues("admin-1")
	withSession(c, platformAdmin)
	if err := h.DeleteUser(c); !errors.Is(err, domain.ErrSelfModification) {
		t.Fatalf("expected ErrSelfModification, got %v", err)
	}
}

func TestAdminHandler_RequiresSession(t *testing.T) {
	h := NewAdminHandler(&stubTenantService{}, &stubAccountService{})
	c, _ := newContext(http.MethodGet, "/api/admin/users", "")

	if code := httpCode(h.ListUsers(c)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}
