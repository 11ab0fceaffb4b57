package domain

import "time"

// Tenant is an isolated dealership account. All users of a tenant share its
// booking data and nothing else.
type Tenant struct {
	ID        string
	Name      string
	Slug      string // URL-safe, unique
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
