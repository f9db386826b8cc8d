package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/core/ports"
)

// recordingStore logs the repository writes made inside transactions.
type recordingStore struct {
	*memStore
	mu    sync.Mutex
	calls []string
}

func (s *recordingStore) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *recordingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Repositories) error) error {
	return s.memStore.WithinTx(ctx, func(ctx context.Context, tx ports.Repositories) error {
		return fn(ctx, recordingRepos{Repositories: tx, s: s})
	})
}

type recordingRepos struct {
	ports.Repositories
	s *recordingStore
}

func (r recordingRepos) Accounts() ports.AccountRepository {
	return recordingAccounts{AccountRepository: r.Repositories.Accounts(), s: r.s}
}

func (r recordingRepos) ResetTokens() ports.ResetTokenRepository {
	return recordingResets{ResetTokenRepository: r.Repositories.ResetTokens(), s: r.s}
}

type recordingAccounts struct {
	ports.AccountRepository
	s *recordingStore
}

func (a recordingAccounts) MarkResetRequested(ctx context.Context, id string, now time.Time) error {
	a.s.record("mark_account")
	return a.AccountRepository.MarkResetRequested(ctx, id, now)
}

type recordingResets struct {
	ports.ResetTokenRepository
	s *recordingStore
}

func (r recordingResets) DeleteUnused(ctx context.Context, emailHash string) (int64, error) {
	r.s.record("delete_unused")
	return r.ResetTokenRepository.DeleteUnused(ctx, emailHash)
}

func (r recordingResets) Create(ctx context.Context, t *domain.PasswordResetToken) error {
	r.s.record("create_token")
	return r.ResetTokenRepository.Create(ctx, t)
}

func unusedResetTokens(f *fixture, emailHash string) int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	n := 0
	for _, tok := range f.store.state.resets {
		if tok.EmailHash == emailHash && tok.UsedAt == nil {
			n++
		}
	}
	return n
}

func TestReset_IssueMarksAccountBeforeReplacingTokens(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "real@x.com", "Passw0rd!", domain.RoleViewer, nil, false)

	store := &recordingStore{memStore: f.store}
	resets := NewResetService(store, f.codec, f.hasher, f.queue, ResetOptions{BaseURL: "https://console.example.com"}, zerolog.Nop())
	if err := resets.RequestReset(context.Background(), "real@x.com"); err != nil {
		t.Fatalf("request: %v", err)
	}

	want := []string{"mark_account", "delete_unused", "create_token"}
	if !reflect.DeepEqual(store.calls, want) {
		t.Fatalf("transaction writes = %v, want %v", store.calls, want)
	}
	if n := unusedResetTokens(f, account.EmailHash); n != 1 {
		t.Fatalf("expected one unused token, got %d", n)
	}
}

func TestReset_ConcurrentRequestsLeaveOneLiveToken(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "real@x.com", "Passw0rd!", domain.RoleViewer, nil, false)

	const requests = 8
	var wg sync.WaitGroup
	errs := make([]error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.resets.RequestReset(context.Background(), "real@x.com")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if n := unusedResetTokens(f, account.EmailHash); n != 1 {
		t.Fatalf("expected exactly one unused token, got %d", n)
	}
	f.store.mu.Lock()
	marks := f.store.state.resetMarks[account.ID]
	f.store.mu.Unlock()
	if marks != requests {
		t.Fatalf("expected every issuance to mark the account, got %d", marks)
	}
}

func TestReset_ConcurrentResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, "real@x.com", "Passw0rd!", domain.RoleViewer, nil, false)
	if err := f.resets.RequestReset(ctx, "real@x.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	token := lastResetToken(t, f)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, password := range []string{"FirstPassw0rd", "SecondPassw0rd"} {
		wg.Add(1)
		go func(i int, password string) {
			defer wg.Done()
			errs[i] = f.resets.ResetPassword(ctx, token, password, password)
		}(i, password)
	}
	wg.Wait()

	var ok, used int
	winner := -1
	for i, err := range errs {
		switch {
		case err == nil:
			ok++
			winner = i
		case errors.Is(err, domain.ErrResetTokenUsed):
			used++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 || used != 1 {
		t.Fatalf("expected one success and one ErrResetTokenUsed, got %d/%d", ok, used)
	}

	passwords := []string{"FirstPassw0rd", "SecondPassw0rd"}
	if _, err := f.auth.AuthenticateWithPassword(ctx, "real@x.com", passwords[winner]); err != nil {
		t.Fatalf("expected the winning password to be stored: %v", err)
	}
	if _, err := f.auth.AuthenticateWithPassword(ctx, "real@x.com", passwords[1-winner]); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected the losing password to be rejected, got %v", err)
	}
}
