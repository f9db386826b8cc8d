package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is a tenant-level privilege. Roles are totally ordered:
// VIEWER < OPERATOR < CUSTOMER_ADMIN < SUPER_ADMIN.
type Role string

const (
	RoleViewer        Role = "VIEWER"
	RoleOperator      Role = "OPERATOR"
	RoleCustomerAdmin Role = "CUSTOMER_ADMIN"
	RoleSuperAdmin    Role = "SUPER_ADMIN"
)

var roleRank = map[Role]int{
	RoleViewer:        1,
	RoleOperator:      2,
	RoleCustomerAdmin: 3,
	RoleSuperAdmin:    4,
}

// Roles lists every role from least to most privileged.
func Roles() []Role {
	return []Role{RoleViewer, RoleOperator, RoleCustomerAdmin, RoleSuperAdmin}
}

// ParseRole accepts role names case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", Invalid("role", fmt.Sprintf("unknown role %q", s))
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r is as privileged as other. Unknown roles are
// never at least anything.
func (r Role) AtLeast(other Role) bool {
	rr, ok := roleRank[r]
	if !ok {
		return false
	}
	return rr >= roleRank[other]
}

// Account is an identity record. The plaintext email is never persisted: only
// EmailHash (lookup key, unique) and EmailCiphertext are stored, and always
// together.
type Account struct {
	ID              string    `json:"id"`
	EmailHash       string    `json:"-"`
	EmailCiphertext string    `json:"-"`
	PasswordHash    string    `json:"-"`
	Name            string    `json:"name"`
	Role            Role      `json:"role"`
	PlatformAdmin   bool      `json:"platformAdmin"`
	TenantID        *string   `json:"tenantId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	// Email is the decrypted address, filled in after retrieval only.
	Email string `json:"email,omitempty"`
}

// HasPassword is false for federated-only accounts.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// InTenant reports whether the account is assigned to tenantID.
func (a *Account) InTenant(tenantID string) bool {
	return a.TenantID != nil && *a.TenantID == tenantID
}

// TenantIDValue returns the tenant id or "" for tenant-less accounts.
func (a *Account) TenantIDValue() string {
	if a.TenantID == nil {
		return ""
	}
	return *a.TenantID
}
