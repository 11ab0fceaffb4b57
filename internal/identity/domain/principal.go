package domain

import "time"

// Role is the tenant-scoped role of a user.
type Role string

const (
	RoleDealer Role = "dealer"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known tenant role.
func (r Role) Valid() bool {
	return r == RoleDealer || r == RoleAdmin
}

// Principal is an authenticable identity: a tenant-scoped user or a
// platform super admin. A user always belongs to exactly one tenant; a
// super admin belongs to none (empty TenantID, SuperAdmin set).
//
// Lifecycle: created unverified+unapproved+active. Email verification comes
// from redeeming a workflow token (or a successful password reset, which
// proves mailbox ownership). Approval is a separate admin step that requires
// the account to be verified first. Active can be toggled at any time and
// overrides everything else at authentication.
type Principal struct {
	ID           string
	TenantID     string // empty for super admins
	Email        string // stored lower-cased, unique
	PasswordHash string // argon2id PHC string
	Role         Role
	SuperAdmin   bool

	EmailVerifiedAt *time.Time
	ApprovedAt      *time.Time
	Active          bool

	// TwoFactorSecret is present between setup-begin and confirmation, and
	// while 2FA is enabled. Replaced only by disabling first.
	TwoFactorSecret    *string
	TwoFactorEnabledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Principal) Verified() bool { return p.EmailVerifiedAt != nil }

func (p Principal) Approved() bool { return p.ApprovedAt != nil }

func (p Principal) TwoFactorEnabled() bool { return p.TwoFactorEnabledAt != nil }

// Scope is the authorization context resolved for an authenticated
// principal. Every tenant-scoped operation must check TenantID; SuperAdmin
// bypasses tenant isolation.
type Scope struct {
	PrincipalID string
	TenantID    string
	Role        Role
	SuperAdmin  bool
}

// ScopeOf resolves the authorization scope for a principal.
func ScopeOf(p Principal) Scope {
	return Scope{
		PrincipalID: p.ID,
		TenantID:    p.TenantID,
		Role:        p.Role,
		SuperAdmin:  p.SuperAdmin,
	}
}

// AllowsTenant reports whether the scope may act on resources of tenantID.
func (s Scope) AllowsTenant(tenantID string) bool {
	return s.SuperAdmin || (s.TenantID != "" && s.TenantID == tenantID)
}
