package service

import (
	"context"
	"errors"
	"testing"

	"github.com/proefritapp/identity/internal/identity/domain"
	"github.com/stretchr/testify/require"
)

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("unknown tenant", func(t *testing.T) {
		_, err := env.accounts.Register(ctx, "no-such-dealer", "a@example.com", testPassword, domain.RoleDealer, "203.0.113.1")
		require.ErrorIs(t, err, ErrUnknownTenant)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := env.accounts.Register(ctx, env.tenant.Slug, "b@example.com", "weak", domain.RoleDealer, "203.0.113.1")
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := env.accounts.Register(ctx, env.tenant.Slug, "not-an-email", testPassword, domain.RoleDealer, "203.0.113.1")
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, _ = env.register(t, "dup@example.com", testPassword)
		_, err := env.accounts.Register(ctx, env.tenant.Slug, "DUP@example.com", testPassword, domain.RoleDealer, "203.0.113.1")
		require.ErrorIs(t, err, ErrEmailAlreadyRegistered, "emails are matched case-insensitively")
	})
}

func TestAuthenticateUniformFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	principal, token := env.register(t, "henk@example.com", testPassword)
	_, err := env.tokens.RedeemVerification(ctx, token)
	require.NoError(t, err)

	t.Run("unknown email", func(t *testing.T) {
		_, _, _, err := env.accounts.Authenticate(ctx, "ghost@example.com", testPassword, "", "198.51.100.10")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, _, err := env.accounts.Authenticate(ctx, "henk@example.com", "Wrong#Pass123", "", "198.51.100.11")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("inactive account with correct password", func(t *testing.T) {
		_, err := env.accounts.SetActive(ctx, principal.ID, false)
		require.NoError(t, err)

		// Same error class as a wrong password: no state leakage.
		_, _, _, err = env.accounts.Authenticate(ctx, "henk@example.com", testPassword, "", "198.51.100.12")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = env.accounts.SetActive(ctx, principal.ID, true)
		require.NoError(t, err)
	})

	t.Run("succeeds when active again", func(t *testing.T) {
		got, scope, session, err := env.accounts.Authenticate(ctx, "henk@example.com", testPassword, "", "198.51.100.13")
		require.NoError(t, err)
		require.Equal(t, principal.ID, got.ID)
		require.Equal(t, env.tenant.ID, scope.TenantID)
		require.NotEmpty(t, session)
	})
}

func TestAuthenticateSessionClaims(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	principal, token := env.register(t, "ineke@example.com", testPassword)
	_, err := env.tokens.RedeemVerification(ctx, token)
	require.NoError(t, err)

	_, _, session, err := env.accounts.Authenticate(ctx, "ineke@example.com", testPassword, "", "198.51.100.20")
	require.NoError(t, err)

	claims, err := env.verifier.Verify(session)
	require.NoError(t, err)
	require.Equal(t, principal.ID, claims.Subject)
	require.Equal(t, env.tenant.ID, claims.TenantID)
	require.Equal(t, string(domain.RoleDealer), claims.Role)
	require.False(t, claims.SuperAdmin)
	require.Equal(t, []string{"pwd"}, claims.AMR)
}

func TestAuthenticateRateLimited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _ = env.register(t, "joris@example.com", testPassword)

	// 5 failed attempts exhaust the login budget for the email.
	for i := range 5 {
		ip := "198.51.100." + string(rune('1'+i))
		_, _, _, err := env.accounts.Authenticate(ctx, "joris@example.com", "Wrong#Pass123", "", ip)
		require.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i+1)
	}

	_, _, _, err := env.accounts.Authenticate(ctx, "joris@example.com", "Wrong#Pass123", "", "198.51.100.99")
	require.ErrorIs(t, err, ErrRateLimited)

	var limited *RateLimitedError
	require.True(t, errors.As(err, &limited))
	require.Greater(t, limited.RetryAfter.Seconds(), 0.0)

	// Unblocking the email restores access immediately.
	_, err = env.limiter.Unblock(ctx, "joris@example.com")
	require.NoError(t, err)
	_, _, _, err = env.accounts.Authenticate(ctx, "joris@example.com", testPassword, "", "198.51.100.99")
	require.NoError(t, err)
}

func TestApproveRequiresVerified(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	principal, token := env.register(t, "klaas@example.com", testPassword)

	_, err := env.accounts.Approve(ctx, principal.ID)
	require.ErrorIs(t, err, ErrNotVerified, "approving an unverified account is a domain error")

	_, err = env.tokens.RedeemVerification(ctx, token)
	require.NoError(t, err)

	approved, err := env.accounts.Approve(ctx, principal.ID)
	require.NoError(t, err)
	require.True(t, approved.Approved())

	// Idempotent on repeat.
	again, err := env.accounts.Approve(ctx, principal.ID)
	require.NoError(t, err)
	require.Equal(t, approved.ApprovedAt.Unix(), again.ApprovedAt.Unix())
}

func TestApproveUnknownPrincipal(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.accounts.Approve(context.Background(), "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestEnsureSuperAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, err := env.accounts.EnsureSuperAdmin(ctx, "root@proefrit.test", testPassword)
	require.NoError(t, err)
	require.True(t, admin.SuperAdmin)
	require.Empty(t, admin.TenantID)
	require.True(t, admin.Verified())
	require.True(t, admin.Approved())

	// Second call is a no-op returning the existing account.
	again, err := env.accounts.EnsureSuperAdmin(ctx, "root@proefrit.test", testPassword)
	require.NoError(t, err)
	require.Equal(t, admin.ID, again.ID)

	_, scope, _, err := env.accounts.Authenticate(ctx, "root@proefrit.test", testPassword, "", "198.51.100.30")
	require.NoError(t, err)
	require.True(t, scope.SuperAdmin)
	require.True(t, scope.AllowsTenant(env.tenant.ID), "super admin bypasses tenant isolation")
}
