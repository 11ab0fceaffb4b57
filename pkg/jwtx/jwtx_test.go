package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := NewSignerFromKey("test-key", priv)
	require.NoError(t, err)
	return signer
}

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	verifier := NewVerifier(signer.Public(), "proefrit-identity")

	claims := NewSessionClaims(
		"principal-1", "tenant-1", "dealer",
		false,
		[]string{"pwd"},
		"alice@example.com", "proefrit-identity",
		DefaultSessionTTL,
		time.Now(),
	)

	raw, err := signer.Sign(claims)
	require.NoError(t, err)

	parsed, err := verifier.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "principal-1", parsed.Subject)
	require.Equal(t, "tenant-1", parsed.TenantID)
	require.Equal(t, "dealer", parsed.Role)
	require.False(t, parsed.SuperAdmin)
	require.Equal(t, []string{"pwd"}, parsed.AMR)
	require.NotEmpty(t, parsed.ID, "jti should be set")
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	verifier := NewVerifier(signer.Public(), "expected-issuer")

	claims := NewSessionClaims("p", "", "", true, nil, "", "other-issuer", time.Minute, time.Now())
	raw, err := signer.Sign(claims)
	require.NoError(t, err)

	_, err = verifier.Verify(raw)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	verifier := NewVerifier(signer.Public(), "iss")

	claims := NewSessionClaims("p", "", "", false, nil, "", "iss", time.Minute, time.Now().Add(-time.Hour))
	raw, err := signer.Sign(claims)
	require.NoError(t, err)

	_, err = verifier.Verify(raw)
	require.Error(t, err)
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	other := newTestSigner(t)
	verifier := NewVerifier(other.Public(), "iss")

	claims := NewSessionClaims("p", "", "", false, nil, "", "iss", time.Minute, time.Now())
	raw, err := signer.Sign(claims)
	require.NoError(t, err)

	_, err = verifier.Verify(raw)
	require.Error(t, err)
}
