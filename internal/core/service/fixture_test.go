package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/core/ports"
	"github.com/nodi/console-identity/internal/crypto"
)

var (
	hasherOnce sync.Once
	testHasher *crypto.PasswordHasher
)

func sharedHasher(t *testing.T) *crypto.PasswordHasher {
	t.Helper()
	hasherOnce.Do(func() {
		h, err := crypto.NewPasswordHasher(crypto.MinPasswordCost, 4)
		if err != nil {
			panic(err)
		}
		testHasher = h
	})
	return testHasher
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type stubQueue struct {
	mu   sync.Mutex
	msgs []ports.Message
}

func (q *stubQueue) Enqueue(msg ports.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return true
}

func (q *stubQueue) messages() []ports.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]ports.Message(nil), q.msgs...)
}

type stubLimiter struct {
	mu       sync.Mutex
	failures map[string]int
	max      int
	err      error
}

func newStubLimiter(max int) *stubLimiter {
	return &stubLimiter{failures: map[string]int{}, max: max}
}

func (l *stubLimiter) Blocked(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	return l.failures[key] >= l.max, nil
}

func (l *stubLimiter) RecordFailure(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[key]++
	return l.err
}

func (l *stubLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, key)
	return l.err
}

type fixture struct {
	store    *memStore
	codec    *crypto.EmailCodec
	hasher   *crypto.PasswordHasher
	queue    *stubQueue
	limiter  *stubLimiter
	clock    *testClock
	auth     *AuthService
	invites  *InvitationService
	resets   *ResetService
	accounts *AccountService
	tenants  *TenantService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec, err := crypto.NewEmailCodec(bytes.Repeat([]byte{1}, crypto.KeySize))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	f := &fixture{
		store:   newMemStore(),
		codec:   codec,
		hasher:  sharedHasher(t),
		queue:   &stubQueue{},
		limiter: newStubLimiter(3),
		clock:   &testClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)},
	}
	log := zerolog.Nop()

	f.auth = NewAuthService(f.store, codec, f.hasher, f.limiter, true, log)
	f.auth.now = f.clock.Now
	f.invites = NewInvitationService(f.store, codec, f.hasher, f.queue, InvitationOptions{BaseURL: "https://console.example.com/"}, log)
	f.invites.now = f.clock.Now
	f.resets = NewResetService(f.store, codec, f.hasher, f.queue, ResetOptions{BaseURL: "https://console.example.com"}, log)
	f.resets.now = f.clock.Now
	f.accounts = NewAccountService(f.store, codec, f.hasher, log)
	f.accounts.now = f.clock.Now
	f.tenants = NewTenantService(f.store, log)
	f.tenants.now = f.clock.Now
	return f
}

func (f *fixture) tenant(t *testing.T, code, name string) *domain.Tenant {
	t.Helper()
	tenant, err := f.tenants.Bootstrap(context.Background(), ports.CreateTenantInput{Code: code, Name: name})
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return tenant
}

// account stores an account directly. An empty password makes it
// federated-only.
func (f *fixture) account(t *testing.T, email, password string, role domain.Role, tenantID *string, admin bool) *domain.Account {
	t.Helper()
	hash, ct, err := f.codec.Seal(email)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	a := &domain.Account{
		ID:              "acct-" + email,
		EmailHash:       hash,
		EmailCiphertext: ct,
		Name:            email,
		Role:            role,
		TenantID:        tenantID,
		PlatformAdmin:   admin,
		CreatedAt:       f.clock.Now(),
		UpdatedAt:       f.clock.Now(),
	}
	if password != "" {
		if a.PasswordHash, err = f.hasher.Hash(context.Background(), password); err != nil {
			t.Fatalf("hash: %v", err)
		}
	}
	if err := f.store.Accounts().Create(context.Background(), a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func (f *fixture) admin(t *testing.T) *domain.Account {
	t.Helper()
	return f.account(t, "root@nodi.io", "", domain.RoleSuperAdmin, nil, true)
}

func sessionFor(a *domain.Account) *domain.Session {
	return &domain.Session{AccountID: a.ID, Role: a.Role, TenantID: a.TenantID, PlatformAdmin: a.PlatformAdmin}
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
