package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/core/ports"
)

// memStore is an in-memory ports.Store. Transactions run on a copy of the
// state under the store mutex and replace it on success, so a failed
// transaction leaves no trace and concurrent transactions serialize.
type memStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	accounts    map[string]*domain.Account
	tenants     map[string]*domain.Tenant
	invitations map[string]*domain.Invitation
	resets      map[string]*domain.PasswordResetToken
	resetMarks  map[string]int
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		accounts:    map[string]*domain.Account{},
		tenants:     map[string]*domain.Tenant{},
		invitations: map[string]*domain.Invitation{},
		resets:      map[string]*domain.PasswordResetToken{},
		resetMarks:  map[string]int{},
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		accounts:    make(map[string]*domain.Account, len(s.accounts)),
		tenants:     make(map[string]*domain.Tenant, len(s.tenants)),
		invitations: make(map[string]*domain.Invitation, len(s.invitations)),
		resets:      make(map[string]*domain.PasswordResetToken, len(s.resets)),
		resetMarks:  make(map[string]int, len(s.resetMarks)),
	}
	for k, v := range s.resetMarks {
		c.resetMarks[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = cloneAccount(v)
	}
	for k, v := range s.tenants {
		t := *v
		c.tenants[k] = &t
	}
	for k, v := range s.invitations {
		i := *v
		c.invitations[k] = &i
	}
	for k, v := range s.resets {
		r := *v
		c.resets[k] = &r
	}
	return c
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	if a.TenantID != nil {
		id := *a.TenantID
		c.TenantID = &id
	}
	return &c
}

// memRepos binds repositories to a state. guard is nil inside a transaction.
type memRepos struct {
	state func() *memState
	guard *sync.Mutex
}

func (r memRepos) with(fn func(st *memState)) {
	if r.guard != nil {
		r.guard.Lock()
		defer r.guard.Unlock()
	}
	fn(r.state())
}

func (s *memStore) live() memRepos {
	return memRepos{state: func() *memState { return s.state }, guard: &s.mu}
}

func (s *memStore) Accounts() ports.AccountRepository { return memAccounts{s.live()} }
func (s *memStore) Tenants() ports.TenantRepository { return memTenants{s.live()} }
func (s *memStore) Invitations() ports.InvitationRepository { return memInvitations{s.live()} }
func (s *memStore) ResetTokens() ports.ResetTokenRepository { return memResets{s.live()} }
func (s *memStore) Ping(context.Context) error { return nil }
func (s *memStore) Close(context.Context) error { return nil }
func (r memRepos) Accounts() ports.AccountRepository { return memAccounts{r} }
func (r memRepos) Tenants() ports.TenantRepository { return memTenants{r} }
func (r memRepos) Invitations() ports.InvitationRepository { return memInvitations{r} }
func (r memRepos) ResetTokens() ports.ResetTokenRepository { return memResets{r} }

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, memRepos{state: func() *memState { return work }}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// ── accounts ─────────────────────────────────────────────────────────────────

type memAccounts struct{ memRepos }

func (r memAccounts) Create(_ context.Context, a *domain.Account) (err error) {
	r.with(func(st *memState) {
		for _, existing := range st.accounts {
			if existing.EmailHash == a.EmailHash {
				err = domain.ErrEmailAlreadyRegistered
				return
			}
		}
		stored := cloneAccount(a)
		stored.Email = ""
		st.accounts[a.ID] = stored
	})
	return err
}

func (r memAccounts) FindByID(_ context.Context, id string) (out *domain.Account, err error) {
	r.with(func(st *memState) {
		if a, ok := st.accounts[id]; ok {
			out = cloneAccount(a)
			return
		}
		err = domain.ErrAccountNotFound
	})
	return out, err
}

func (r memAccounts) FindByEmailHash(_ context.Context, hash string) (out *domain.Account, err error) {
	r.with(func(st *memState) {
		for _, a := range st.accounts {
			if a.EmailHash == hash {
				out = cloneAccount(a)
				return
			}
		}
		err = domain.ErrAccountNotFound
	})
	return out, err
}

func (r memAccounts) List(_ context.Context, f ports.ListAccountsFilter) (out []*domain.Account, err error) {
	r.with(func(st *memState) {
		for _, a := range st.accounts {
			if f.TenantID != "" && !a.InTenant(f.TenantID) {
				continue
			}
			out = append(out, cloneAccount(a))
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r memAccounts) UpdatePassword(_ context.Context, id, hash string, now time.Time) (err error) {
	r.with(func(st *memState) {
		a, ok := st.accounts[id]
		if !ok {
			err = domain.ErrAccountNotFound
			return
		}
		a.PasswordHash, a.UpdatedAt = hash, now
	})
	return err
}

func (r memAccounts) UpdateAssignment(_ context.Context, id string, role domain.Role, tenantID *string, now time.Time) (err error) {
	r.with(func(st *memState) {
		a, ok := st.accounts[id]
		if !ok {
			err = domain.ErrAccountNotFound
			return
		}
		a.Role, a.UpdatedAt = role, now
		a.TenantID = nil
		if tenantID != nil {
			id := *tenantID
			a.TenantID = &id
		}
	})
	return err
}

func (r memAccounts) MarkResetRequested(_ context.Context, id string, _ time.Time) (err error) {
	r.with(func(st *memState) {
		if _, ok := st.accounts[id]; !ok {
			err = domain.ErrAccountNotFound
			return
		}
		st.resetMarks[id]++
	})
	return err
}

func (r memAccounts) Delete(_ context.Context, id string) (err error) {
	r.with(func(st *memState) {
		if _, ok := st.accounts[id]; !ok {
			err = domain.ErrAccountNotFound
			return
		}
		delete(st.accounts, id)
	})
	return err
}

// ── tenants ──────────────────────────────────────────────────────────────────

type memTenants struct{ memRepos }

func (r memTenants) Create(_ context.Context, t *domain.Tenant) (err error) {
	r.with(func(st *memState) {
		for _, existing := range st.tenants {
			if existing.Code == t.Code {
				err = domain.ErrTenantCodeExists
				return
			}
		}
		c := *t
		st.tenants[t.ID] = &c
	})
	return err
}

func (r memTenants) FindByID(_ context.Context, id string) (out *domain.Tenant, err error) {
	r.with(func(st *memState) {
		if t, ok := st.tenants[id]; ok {
			c := *t
			out = &c
			return
		}
		err = domain.ErrTenantNotFound
	})
	return out, err
}

func (r memTenants) List(_ context.Context, search string) (out []*domain.Tenant, err error) {
	needle := strings.ToLower(search)
	r.with(func(st *memState) {
		for _, t := range st.tenants {
			hay := strings.ToLower(t.Code + "\n" + t.Name + "\n" + t.Description)
			if needle != "" && !strings.Contains(hay, needle) {
				continue
			}
			c := *t
			out = append(out, &c)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// ── invitations ──────────────────────────────────────────────────────────────

type memInvitations struct{ memRepos }

func (r memInvitations) Create(_ context.Context, inv *domain.Invitation) (err error) {
	r.with(func(st *memState) {
		if _, ok := st.invitations[inv.Token]; ok {
			err = domain.ErrDuplicateToken
			return
		}
		c := *inv
		st.invitations[inv.Token] = &c
	})
	return err
}

func (r memInvitations) FindByToken(_ context.Context, token string) (out *domain.Invitation, err error) {
	r.with(func(st *memState) {
		if inv, ok := st.invitations[token]; ok {
			c := *inv
			out = &c
			return
		}
		err = domain.ErrInvitationNotFound
	})
	return out, err
}

func (r memInvitations) Accept(_ context.Context, token string, now time.Time) (out *domain.Invitation, err error) {
	r.with(func(st *memState) {
		inv, ok := st.invitations[token]
		if !ok {
			err = domain.ErrInvitationNotFound
			return
		}
		if err = inv.Check(now); err != nil {
			return
		}
		accepted := now
		inv.AcceptedAt = &accepted
		c := *inv
		out = &c
	})
	return out, err
}

// ── reset tokens ─────────────────────────────────────────────────────────────

type memResets struct{ memRepos }

func (r memResets) Create(_ context.Context, t *domain.PasswordResetToken) (err error) {
	r.with(func(st *memState) {
		if _, ok := st.resets[t.Token]; ok {
			err = domain.ErrDuplicateToken
			return
		}
		c := *t
		st.resets[t.Token] = &c
	})
	return err
}

func (r memResets) FindByToken(_ context.Context, token string) (out *domain.PasswordResetToken, err error) {
	r.with(func(st *memState) {
		if t, ok := st.resets[token]; ok {
			c := *t
			out = &c
			return
		}
		err = domain.ErrResetTokenInvalid
	})
	return out, err
}

func (r memResets) DeleteUnused(_ context.Context, emailHash string) (n int64, err error) {
	r.with(func(st *memState) {
		for token, t := range st.resets {
			if t.EmailHash == emailHash && t.UsedAt == nil {
				delete(st.resets, token)
				n++
			}
		}
	})
	return n, nil
}

func (r memResets) MarkUsed(_ context.Context, token string, now time.Time) (out *domain.PasswordResetToken, err error) {
	r.with(func(st *memState) {
		t, ok := st.resets[token]
		if !ok {
			err = domain.ErrResetTokenInvalid
			return
		}
		if err = t.Check(now); err != nil {
			return
		}
		used := now
		t.UsedAt = &used
		c := *t
		out = &c
	})
	return out, err
}
