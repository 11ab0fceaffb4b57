package service

import (
	"context"
	"testing"
	"time"

	"github.com/proefritapp/identity/internal/identity/domain"
	"github.com/proefritapp/identity/internal/identity/store"
	"github.com/proefritapp/identity/pkg/cryptox"
	"github.com/proefritapp/identity/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestRegisterVerifyFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	principal, token := env.register(t, "alice@example.com", testPassword)
	require.False(t, principal.Verified())
	require.False(t, principal.Approved())
	require.True(t, principal.Active)

	verified, err := env.tokens.RedeemVerification(ctx, token)
	require.NoError(t, err)
	require.True(t, verified.Verified())
	require.False(t, verified.Approved(), "verification must not grant approval")

	// Second redemption of the same token must fail.
	_, err = env.tokens.RedeemVerification(ctx, token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenPerformsNoSideEffect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	principal, _ := env.register(t, "bob@example.com", testPassword)

	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	now := time.Now().UTC()
	expired := domain.WorkflowToken{
		ID:          idx.New().String(),
		Fingerprint: cryptox.FingerprintToken(raw),
		Purpose:     domain.PurposeVerifyEmail,
		OwnerID:     principal.ID,
		ExpiresAt:   now.Add(-time.Hour),
		CreatedAt:   now.Add(-25 * time.Hour),
	}
	require.NoError(t, env.store.WorkflowTokens().Create(ctx, expired))

	_, err = env.tokens.RedeemVerification(ctx, raw)
	require.ErrorIs(t, err, ErrExpiredToken)

	reloaded, err := env.store.Principals().GetByID(ctx, principal.ID)
	require.NoError(t, err)
	require.False(t, reloaded.Verified(), "expired token must not verify the account")

	// The dead token is purged on sight.
	_, err = env.store.WorkflowTokens().GetByFingerprint(ctx, expired.Fingerprint)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestReissueInvalidatesPriorToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, first := env.register(t, "carol@example.com", testPassword)

	require.NoError(t, env.accounts.ResendVerification(ctx, "carol@example.com", "203.0.113.1"))
	second := tokenFromBody(t, env.mail.last(t).TextBody)
	require.NotEqual(t, first, second)

	_, err := env.tokens.RedeemVerification(ctx, first)
	require.ErrorIs(t, err, ErrInvalidToken, "reissue must invalidate the prior token")

	verified, err := env.tokens.RedeemVerification(ctx, second)
	require.NoError(t, err)
	require.True(t, verified.Verified())
}

func TestPasswordResetImpliesVerified(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	principal, _ := env.register(t, "dave@example.com", testPassword)
	require.False(t, principal.Verified())

	require.NoError(t, env.accounts.RequestPasswordReset(ctx, "dave@example.com", "203.0.113.1"))
	resetToken := tokenFromBody(t, env.mail.last(t).TextBody)

	const newPassword = "Regenboog!Rit77"
	require.NoError(t, env.tokens.RedeemPasswordReset(ctx, resetToken, newPassword))

	reloaded, err := env.store.Principals().GetByID(ctx, principal.ID)
	require.NoError(t, err)
	require.True(t, reloaded.Verified(), "successful reset proves mailbox ownership")

	// Old password out, new password in.
	_, _, _, err = env.accounts.Authenticate(ctx, "dave@example.com", testPassword, "", "198.51.100.1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, _, err = env.accounts.Authenticate(ctx, "dave@example.com", newPassword, "", "198.51.100.2")
	require.NoError(t, err)

	// The reset token is single-use.
	err = env.tokens.RedeemPasswordReset(ctx, resetToken, "Nog-Een$Rit88")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordResetRejectsWeakPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _ = env.register(t, "erin@example.com", testPassword)
	require.NoError(t, env.accounts.RequestPasswordReset(ctx, "erin@example.com", "203.0.113.1"))
	resetToken := tokenFromBody(t, env.mail.last(t).TextBody)

	err := env.tokens.RedeemPasswordReset(ctx, resetToken, "short")
	require.ErrorIs(t, err, ErrValidation)

	// The rejected attempt must not burn the token.
	require.NoError(t, env.tokens.RedeemPasswordReset(ctx, resetToken, "Sterke&Fiets33"))
}

func TestTokenPurposeIsEnforced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, verifyToken := env.register(t, "frank@example.com", testPassword)

	// A verification token must not work as a reset token.
	err := env.tokens.RedeemPasswordReset(ctx, verifyToken, "Sterke&Fiets33")
	require.ErrorIs(t, err, ErrInvalidToken)

	// And it must still be redeemable for its own purpose afterwards.
	_, err = env.tokens.RedeemVerification(ctx, verifyToken)
	require.NoError(t, err)
}

func TestRequestPasswordResetUnknownEmailWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	before := env.mail.count()
	require.NoError(t, env.accounts.RequestPasswordReset(ctx, "unknown@x.com", "203.0.113.1"))
	require.Equal(t, before, env.mail.count(), "unknown email must not trigger a send")
}

func TestHousekeepingPurgesExpiredTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	principal, _ := env.register(t, "grace@example.com", testPassword)

	now := time.Now().UTC()
	for i := range 3 {
		raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
		require.NoError(t, err)
		require.NoError(t, env.store.WorkflowTokens().Create(ctx, domain.WorkflowToken{
			ID:          idx.New().String(),
			Fingerprint: cryptox.FingerprintToken(raw),
			Purpose:     domain.PurposeResetPassword,
			OwnerID:     principal.ID + string(rune('a'+i)),
			ExpiresAt:   now.Add(-time.Minute),
			CreatedAt:   now.Add(-2 * time.Hour),
		}))
	}

	purged, err := env.store.WorkflowTokens().DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 3, purged)
}
