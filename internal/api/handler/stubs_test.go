package handler

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nodi/console-identity/internal/api/middleware"
	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/core/ports"
)

var errNotStubbed = errors.New("not stubbed")

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// withSession mimics the Session middleware.
func withSession(c echo.Context, s *domain.Session) {
	middleware.SetSession(c, s)
}

func httpCode(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

type stubAuthService struct {
	passwordFn  func(ctx context.Context, email, password string) (*domain.Account, error)
	federatedFn func(ctx context.Context, identity ports.FederatedIdentity, provider string) (*domain.Account, error)
}

func (s *stubAuthService) AuthenticateWithPassword(ctx context.Context, email, password string) (*domain.Account, error) {
	if s.passwordFn == nil {
		return nil, errNotStubbed
	}
	return s.passwordFn(ctx, email, password)
}

func (s *stubAuthService) AuthenticateWithFederatedIdentity(ctx context.Context, identity ports.FederatedIdentity, provider string) (*domain.Account, error) {
	if s.federatedFn == nil {
		return nil, errNotStubbed
	}
	return s.federatedFn(ctx, identity, provider)
}

func (s *stubAuthService) MaterializeSession(_ context.Context, snapshot *domain.Session) (*domain.Session, error) {
	return snapshot, nil
}

type stubIssuer struct{}

func (stubIssuer) Issue(a *domain.Account, provider string) (string, *domain.Session, error) {
	login := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return "signed-" + a.ID, &domain.Session{
		AccountID:     a.ID,
		Role:          a.Role,
		TenantID:      a.TenantID,
		PlatformAdmin: a.PlatformAdmin,
		Provider:      provider,
		LoginAt:       login,
		ExpiresAt:     login.Add(time.Hour),
	}, nil
}

func (stubIssuer) Parse(string) (*domain.Session, error) { return nil, domain.ErrInvalidSession }

type stubInvitationService struct {
	createFn   func(ctx context.Context, in ports.CreateInvitationInput) (*ports.IssuedInvitation, error)
	validateFn func(ctx context.Context, token string) (*domain.InvitationStatus, error)
	redeemFn   func(ctx context.Context, in ports.RedeemInvitationInput) (*domain.Account, error)
}

func (s *stubInvitationService) Create(ctx context.Context, in ports.CreateInvitationInput) (*ports.IssuedInvitation, error) {
	if s.createFn == nil {
		return nil, errNotStubbed
	}
	return s.createFn(ctx, in)
}

func (s *stubInvitationService) Validate(ctx context.Context, token string) (*domain.InvitationStatus, error) {
	if s.validateFn == nil {
		return nil, errNotStubbed
	}
	return s.validateFn(ctx, token)
}

func (s *stubInvitationService) Redeem(ctx context.Context, in ports.RedeemInvitationInput) (*domain.Account, error) {
	if s.redeemFn == nil {
		return nil, errNotStubbed
	}
	return s.redeemFn(ctx, in)
}

type stubResetService struct {
	requestFn func(ctx context.Context, email string) error
	resetFn   func(ctx context.Context, token, password, confirm string) error
}

func (s *stubResetService) RequestReset(ctx context.Context, email string) error {
	if s.requestFn == nil {
		return errNotStubbed
	}
	return s.requestFn(ctx, email)
}

func (s *stubResetService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if s.resetFn == nil {
		return errNotStubbed
	}
	return s.resetFn(ctx, token, password, confirm)
}

type stubTenantService struct {
	createFn func(ctx context.Context, actor *domain.Session, in ports.CreateTenantInput) (*domain.Tenant, error)
	listFn   func(ctx context.Context, actor *domain.Session, search string) ([]*domain.Tenant, error)
	getFn    func(ctx context.Context, actor *domain.Session, id string) (*domain.Tenant, error)
}

func (s *stubTenantService) Create(ctx context.Context, actor *domain.Session, in ports.CreateTenantInput) (*domain.Tenant, error) {
	if s.createFn == nil {
		return nil, errNotStubbed
	}
	return s.createFn(ctx, actor, in)
}

func (s *stubTenantService) List(ctx context.Context, actor *domain.Session, search string) ([]*domain.Tenant, error) {
	if s.listFn == nil {
		return nil, errNotStubbed
	}
	return s.listFn(ctx, actor, search)
}

func (s *stubTenantService) Get(ctx context.Context, actor *domain.Session, id string) (*domain.Tenant, error) {
	if s.getFn == nil {
		return nil, errNotStubbed
	}
	return s.getFn(ctx, actor, id)
}

type stubAccountService struct {
	listFn   func(ctx context.Context, actor *domain.Session, search string) ([]*domain.Account, error)
	updateFn func(ctx context.Context, actor *domain.Session, id string, upd ports.AccountUpdate) (*domain.Account, error)
	deleteFn func(ctx context.Context, actor *domain.Session, id string) error
}

func (s *stubAccountService) List(ctx context.Context, actor *domain.Session, search string) ([]*domain.Account, error) {
	if s.listFn == nil {
		return nil, errNotStubbed
	}
	return s.listFn(ctx, actor, search)
}

func (s *stubAccountService) Update(ctx context.Context, actor *domain.Session, id string, upd ports.AccountUpdate) (*domain.Account, error) {
	if s.updateFn == nil {
		return nil, errNotStubbed
	}
	return s.updateFn(ctx, actor, id, upd)
}

func (s *stubAccountService) Delete(ctx context.Context, actor *domain.Session, id string) error {
	if s.deleteFn == nil {
		return errNotStubbed
	}
	return s.deleteFn(ctx, actor, id)
}

type stubProvider struct {
	exchangeFn func(ctx context.Context, code string) (*ports.FederatedIdentity, error)
}

func (stubProvider) Name() string { return domain.ProviderGoogle }

func (stubProvider) AuthCodeURL(state string) string {
	return "https://accounts.example/auth?state=" + state
}

func (s stubProvider) Exchange(ctx context.Context, code string) (*ports.FederatedIdentity, error) {
	if s.exchangeFn == nil {
		return nil, errNotStubbed
	}
	return s.exchangeFn(ctx, code)
}
