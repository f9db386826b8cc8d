package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/core/domain"
	"github.com/nodi/console-identity/internal/core/ports"
)

var tenantCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{1,31}$`)

// TenantService administers tenants on behalf of platform admins.
type TenantService struct {
	store ports.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewTenantService(store ports.Store, log zerolog.Logger) *TenantService {
	return &TenantService{store: store, log: log, now: time.Now}
}

// Create adds a tenant. Codes are stored upper-case and must be unique.
func (s *TenantService) Create(ctx context.Context, actor *domain.Session, in ports.CreateTenantInput) (*domain.Tenant, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.create(ctx, in)
}

// Bootstrap creates a tenant without an acting session. It backs the admin
// command line.
func (s *TenantService) Bootstrap(ctx context.Context, in ports.CreateTenantInput) (*domain.Tenant, error) {
	return s.create(ctx, in)
}

func (s *TenantService) create(ctx context.Context, in ports.CreateTenantInput) (*domain.Tenant, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if !tenantCodePattern.MatchString(code) {
		return nil, domain.Invalid("code", "code must be 2-32 letters, digits, '-' or '_'")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Invalid("name", "name is required")
	}

	tenant := &domain.Tenant{
		ID:          uuid.NewString(),
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Tenants().Create(ctx, tenant); err != nil {
		if errors.Is(err, domain.ErrTenantCodeExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	s.log.Info().Str("tenant_id", tenant.ID).Str("code", tenant.Code).Msg("tenant created")
	return tenant, nil
}

func (s *TenantService) List(ctx context.Context, actor *domain.Session, search string) ([]*domain.Tenant, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	tenants, err := s.store.Tenants().List(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

func (s *TenantService) Get(ctx context.Context, actor *domain.Session, id string) (*domain.Tenant, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	tenant, err := s.store.Tenants().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return tenant, nil
}
