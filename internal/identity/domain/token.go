package domain

import "time"

// TokenPurpose tags a workflow token so a token minted for one flow can
// never be redeemed in another.
type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify-email"
	PurposeResetPassword TokenPurpose = "reset-password"
	PurposeFeedback      TokenPurpose = "feedback"
)

// TTL returns the issuance lifetime for the purpose.
func (p TokenPurpose) TTL() time.Duration {
	switch p {
	case PurposeVerifyEmail:
		return 24 * time.Hour
	case PurposeResetPassword:
		return time.Hour
	case PurposeFeedback:
		return 30 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// WorkflowToken is a single-use, expiring secret that authorizes one action
// over an untrusted channel (an emailed link). Only the SHA-256 fingerprint
// of the opaque value is stored.
//
// At most one unused, unexpired token exists per (owner, purpose): issuance
// deletes prior tokens of the same purpose in the same transaction.
// Verification and reset tokens are deleted on redemption; feedback tokens
// are stamped with UsedAt and kept for audit.
type WorkflowToken struct {
	ID          string
	Fingerprint string
	Purpose     TokenPurpose

	// OwnerID is the principal id for verification/reset tokens, and the
	// test-ride id for feedback tokens.
	OwnerID string

	// TenantID is set on feedback tokens so redemption can attribute the
	// feedback row without a test-ride lookup. Empty for account tokens.
	TenantID string

	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at the given time.
func (t WorkflowToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
