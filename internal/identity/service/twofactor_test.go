package service

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestTwoFactorSetupConfirmFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	principal, token := env.register(t, "lotte@example.com", testPassword)
	_, err := env.tokens.RedeemVerification(ctx, token)
	require.NoError(t, err)

	enrollment, err := env.twoFactor.BeginSetup(ctx, principal.ID)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	require.Contains(t, enrollment.OtpauthURL, "otpauth://totp/")

	// A pending secret must not demand a code at login yet.
	_, _, _, err = env.accounts.Authenticate(ctx, "lotte@example.com", testPassword, "", "198.51.100.40")
	require.NoError(t, err)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.twoFactor.ConfirmSetup(ctx, principal.ID, code))

	// Enabled: a login without a code now fails...
	_, _, _, err = env.accounts.Authenticate(ctx, "lotte@example.com", testPassword, "", "198.51.100.41")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// ...and one with a fresh code succeeds, recording the otp factor.
	code, err = totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	_, _, session, err := env.accounts.Authenticate(ctx, "lotte@example.com", testPassword, code, "198.51.100.42")
	require.NoError(t, err)

	claims, err := env.verifier.Verify(session)
	require.NoError(t, err)
	require.Equal(t, []string{"pwd", "otp"}, claims.AMR)

	// Re-enrollment is refused while enabled.
	_, err = env.twoFactor.BeginSetup(ctx, principal.ID)
	require.ErrorIs(t, err, ErrTwoFactorAlreadyEnabled)

	// Disable clears secret and flag; logins drop back to password-only.
	require.NoError(t, env.twoFactor.Disable(ctx, principal.ID))
	reloaded, err := env.accounts.GetPrincipal(ctx, principal.ID)
	require.NoError(t, err)
	require.False(t, reloaded.TwoFactorEnabled())
	require.Nil(t, reloaded.TwoFactorSecret)

	_, _, _, err = env.accounts.Authenticate(ctx, "lotte@example.com", testPassword, "", "198.51.100.43")
	require.NoError(t, err)
}

func TestTwoFactorConfirmRejectsForeignSecret(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	principal, _ := env.register(t, "mees@example.com", testPassword)

	enrollment, err := env.twoFactor.BeginSetup(ctx, principal.ID)
	require.NoError(t, err)

	// A code computed from a different secret must not confirm.
	foreign, err := totp.Generate(totp.GenerateOpts{Issuer: "x", AccountName: "y"})
	require.NoError(t, err)
	require.NotEqual(t, enrollment.Secret, foreign.Secret())

	code, err := totp.GenerateCode(foreign.Secret(), time.Now())
	require.NoError(t, err)
	err = env.twoFactor.ConfirmSetup(ctx, principal.ID, code)
	require.ErrorIs(t, err, ErrInvalidTwoFactorCode)

	reloaded, err := env.accounts.GetPrincipal(ctx, principal.ID)
	require.NoError(t, err)
	require.False(t, reloaded.TwoFactorEnabled(), "failed confirmation must not enable two-factor")
}

func TestTwoFactorConfirmWithoutSetup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	principal, _ := env.register(t, "noor@example.com", testPassword)

	err := env.twoFactor.ConfirmSetup(ctx, principal.ID, "000000")
	require.ErrorIs(t, err, ErrTwoFactorNotConfigured)

	err = env.twoFactor.Disable(ctx, principal.ID)
	require.ErrorIs(t, err, ErrTwoFactorNotConfigured)
}

func TestTwoFactorConfirmRateLimited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	principal, _ := env.register(t, "olaf@example.com", testPassword)
	_, err := env.twoFactor.BeginSetup(ctx, principal.ID)
	require.NoError(t, err)

	// The two-factor budget is 5 attempts per 5 minutes per principal.
	for i := range 5 {
		err := env.twoFactor.ConfirmSetup(ctx, principal.ID, "000000")
		require.ErrorIs(t, err, ErrInvalidTwoFactorCode, "attempt %d", i+1)
	}
	err = env.twoFactor.ConfirmSetup(ctx, principal.ID, "000000")
	require.ErrorIs(t, err, ErrRateLimited)
}
