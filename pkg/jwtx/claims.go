package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the default lifetime for session tokens. Short-lived;
// clients re-authenticate rather than refresh.
const DefaultSessionTTL = 15 * time.Minute

var (
	ErrIssuer      = errors.New("jwtx: wrong issuer")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// Claims are the session-token claims. The custom fields mirror the
// authorization scope of the principal: tenant binding, role, and the
// platform super-admin flag.
type Claims struct {
	jwt.RegisteredClaims

	// TenantID is the dealership the principal belongs to. Empty for
	// super admins, who are platform-scoped.
	TenantID string `json:"tid,omitempty"`

	// Role is "dealer" or "admin" for tenant users.
	Role string `json:"role,omitempty"`

	// SuperAdmin marks platform operators.
	SuperAdmin bool `json:"sa,omitempty"`

	// AMR lists authentication method references, e.g. ["pwd"] or
	// ["pwd","otp"] when a TOTP code was presented.
	AMR []string `json:"amr,omitempty"`

	// Email of the authenticated principal.
	Email string `json:"email,omitempty"`
}

// NewSessionClaims builds minimally-correct claims for a freshly
// authenticated principal.
func NewSessionClaims(
	subject, tenantID, role string,
	superAdmin bool,
	amr []string,
	email, issuer string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        newJTI(),
		},
		TenantID:   tenantID,
		Role:       role,
		SuperAdmin: superAdmin,
		AMR:        amr,
		Email:      email,
	}
}

// newJTI returns a URL-safe random identifier for the "jti" claim.
func newJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks the issuer claim against the expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateExpiry ensures the token is inside its [nbf, exp] validity window.
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
