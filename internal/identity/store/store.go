package store

import (
	"context"
	"errors"
	"time"

	"github.com/proefritapp/identity/internal/identity/domain"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned when a uniqueness constraint is violated.
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the persistence boundary of the identity service. Implementations
// must be safe for concurrent use.
type Store interface {
	Principals() PrincipalRepository
	Tenants() TenantRepository
	WorkflowTokens() WorkflowTokenRepository
	Feedback() FeedbackRepository

	// ApplyMigrations brings the schema up to date.
	ApplyMigrations() error

	// Tx starts a transaction. Prefer WithTx unless the commit point has to
	// move across function boundaries.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn inside a transaction, committing when fn returns nil
	// and rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Tx is a transactional view of the store.
type Tx interface {
	Principals() PrincipalRepository
	Tenants() TenantRepository
	WorkflowTokens() WorkflowTokenRepository
	Feedback() FeedbackRepository

	Commit() error
	Rollback() error
}

// PrincipalRepository persists principals.
type PrincipalRepository interface {
	Create(ctx context.Context, p domain.Principal) error
	GetByID(ctx context.Context, id string) (domain.Principal, error)
	GetByEmail(ctx context.Context, email string) (domain.Principal, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.Principal, error)

	UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error
	MarkEmailVerified(ctx context.Context, id string, now time.Time) error
	Approve(ctx context.Context, id string, now time.Time) error
	SetActive(ctx context.Context, id string, active bool, now time.Time) error

	SetTwoFactorSecret(ctx context.Context, id, secret string, now time.Time) error
	EnableTwoFactor(ctx context.Context, id string, now time.Time) error
	DisableTwoFactor(ctx context.Context, id string, now time.Time) error
}

// TenantRepository persists tenants.
type TenantRepository interface {
	Create(ctx context.Context, t domain.Tenant) error
	GetByID(ctx context.Context, id string) (domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (domain.Tenant, error)
}

// WorkflowTokenRepository persists workflow tokens. Lookups are by SHA-256
// fingerprint; the opaque value itself is never stored.
type WorkflowTokenRepository interface {
	Create(ctx context.Context, t domain.WorkflowToken) error
	GetByFingerprint(ctx context.Context, fingerprint string) (domain.WorkflowToken, error)

	// DeleteUnusedByOwnerPurpose invalidates prior tokens before a reissue.
	DeleteUnusedByOwnerPurpose(ctx context.Context, ownerID string, purpose domain.TokenPurpose) error

	Delete(ctx context.Context, id string) error
	MarkUsed(ctx context.Context, id string, now time.Time) error

	// DeleteExpired removes tokens past their expiry and returns how many
	// were purged.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// FeedbackRepository persists test-ride feedback.
type FeedbackRepository interface {
	Create(ctx context.Context, f domain.Feedback) error
	GetByTestRide(ctx context.Context, testRideID string) (domain.Feedback, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.Feedback, error)
}
