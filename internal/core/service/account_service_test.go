package service

import (
	"context"
	"testing"

	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/core/ports"
)

func TestAccountService_ListDegradesPerRecord(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	f.account(t, "alice@acme.com", "", domain.RoleViewer, nil, false)
	broken := f.account(t, "bob@acme.com", "", domain.RoleViewer, nil, false)

	f.store.mu.Lock()
	f.store.state.accounts[broken.ID].EmailCiphertext = "a:b:c"
	f.store.mu.Unlock()

	accounts, err := f.accounts.List(context.Background(), sessionFor(admin), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("expected every account to be listed, got %d", len(accounts))
	}
	emails := map[string]string{}
	for _, a := range accounts {
		emails[a.ID] = a.Email
	}
	if emails[broken.ID] != EmailPlaceholder {
		t.Fatalf("expected placeholder for broken record, got %q", emails[broken.ID])
	}
	if emails["acct-alice@acme.com"] != "alice@acme.com" {
		t.Fatalf("expected healthy record to decrypt, got %q", emails["acct-alice@acme.com"])
	}
}

func TestAccountService_ListSearch(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	f.account(t, "alice@acme.com", "", domain.RoleViewer, nil, false)
	f.account(t, "bob@globex.com", "", domain.RoleViewer, nil, false)

	accounts, err := f.accounts.List(context.Background(), sessionFor(admin), "ACME")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Email != "alice@acme.com" {
		t.Fatalf("unexpected search result %+v", accounts)
	}
}

func TestAccountService_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	op := f.account(t, "op@x.com", "", domain.RoleSuperAdmin, nil, false)
	ctx := context.Background()

	if _, err := f.accounts.List(ctx, sessionFor(op), ""); err != domain.ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.accounts.Delete(ctx, nil, "x"); err != domain.ErrForbidden {
		t.Fatalf("expected ErrForbidden for anonymous, got %v", err)
	}
}

func TestAccountService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	acme := f.tenant(t, "ACME", "ACME")
	target := f.account(t, "t@x.com", "", domain.RoleViewer, nil, false)

	role := domain.RoleCustomerAdmin
	updated, err := f.accounts.Update(ctx, sessionFor(admin), target.ID, ports.AccountUpdate{Role: &role, TenantID: &acme.ID})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Role != role || !updated.InTenant(acme.ID) || updated.Email != "t@x.com" {
		t.Fatalf("unexpected account %+v", updated)
	}

	updated, err = f.accounts.Update(ctx, sessionFor(admin), target.ID, ports.AccountUpdate{ClearTenant: true})
	if err != nil {
		t.Fatalf("clear tenant: %v", err)
	}
	if updated.TenantID != nil || updated.Role != role {
		t.Fatalf("expected tenant cleared and role kept, got %+v", updated)
	}

	missing := "missing"
	_, err = f.accounts.Update(ctx, sessionFor(admin), target.ID, ports.AccountUpdate{TenantID: &missing})
	expectErr(t, err, domain.ErrTenantNotFound)

	bad := domain.Role("ROOT")
	if _, err := f.accounts.Update(ctx, sessionFor(admin), target.ID, ports.AccountUpdate{Role: &bad}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = f.accounts.Update(ctx, sessionFor(admin), "ghost", ports.AccountUpdate{Role: &role})
	expectErr(t, err, domain.ErrAccountNotFound)
}

func TestAccountService_NeverSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	role := domain.RoleViewer

	if _, err := f.accounts.Update(ctx, sessionFor(admin), admin.ID, ports.AccountUpdate{Role: &role}); err != domain.ErrSelfModification {
		t.Fatalf("expected ErrSelfModification, got %v", err)
	}
	if err := f.accounts.Delete(ctx, sessionFor(admin), admin.ID); err != domain.ErrSelfModification {
		t.Fatalf("expected ErrSelfModification, got %v", err)
	}
}

func TestAccountService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	target := f.account(t, "t@x.com", "", domain.RoleViewer, nil, false)

	if err := f.accounts.Delete(ctx, sessionFor(admin), target.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	expectErr(t, f.accounts.Delete(ctx, sessionFor(admin), target.ID), domain.ErrAccountNotFound)
}

func TestAccountService_BootstrapAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account, created, err := f.accounts.BootstrapAdmin(ctx, "Admin@Nodi.io", "Passw0rd!", "")
	if err != nil || !created {
		t.Fatalf("bootstrap: created=%v err=%v", created, err)
	}
	if !account.PlatformAdmin || account.TenantID != nil || account.Name != "Admin" {
		t.Fatalf("unexpected admin %+v", account)
	}

	again, created, err := f.accounts.BootstrapAdmin(ctx, "admin@nodi.io", "Different1!", "Other")
	if err != nil || created {
		t.Fatalf("expected idempotent bootstrap, created=%v err=%v", created, err)
	}
	if again.ID != account.ID {
		t.Fatalf("expected existing account to be returned")
	}
	if _, err := f.auth.AuthenticateWithPassword(ctx, "admin@nodi.io", "Passw0rd!"); err != nil {
		t.Fatalf("expected original password to remain: %v", err)
	}
}
