package domain

import "time"

// Tenant is a customer organization. Tenants are only created by an admin.
type Tenant struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
