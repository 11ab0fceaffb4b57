package service

import (
	"context"
	"strings"
	"testing"

	"github.com/proefritapp/identity/internal/identity/domain"
	"github.com/stretchr/testify/require"
)

func TestFeedbackFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	adminScope := domain.Scope{
		PrincipalID: "admin-1",
		TenantID:    env.tenant.ID,
		Role:        domain.RoleAdmin,
	}

	link, err := env.feedback.IssueLink(ctx, adminScope, env.tenant.ID, "ride-42", "klant@example.com")
	require.NoError(t, err)
	require.Contains(t, link, "/feedback/")

	token := strings.TrimPrefix(link, "https://app.proefrit.test/feedback/")

	// The form can validate the token without consuming it.
	peeked, err := env.feedback.Check(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "ride-42", peeked.OwnerID)
	require.Equal(t, env.tenant.ID, peeked.TenantID)

	fb, err := env.feedback.Submit(ctx, token, 5, "Geweldige auto!", "203.0.113.50")
	require.NoError(t, err)
	require.Equal(t, "ride-42", fb.TestRideID)
	require.Equal(t, env.tenant.ID, fb.TenantID)
	require.Equal(t, 5, fb.Rating)

	// The token is single-use.
	_, err = env.feedback.Submit(ctx, token, 4, "tweede poging", "203.0.113.50")
	require.ErrorIs(t, err, ErrTokenAlreadyUsed)

	// And the ride can never get a second link once feedback exists.
	_, err = env.feedback.IssueLink(ctx, adminScope, env.tenant.ID, "ride-42", "klant@example.com")
	require.ErrorIs(t, err, ErrFeedbackAlreadySubmitted)

	records, err := env.feedback.ListByTenant(ctx, adminScope, env.tenant.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, fb.ID, records[0].ID)
}

func TestFeedbackTenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	other, err := env.tenants.CreateTenant(ctx, "Other Dealer", "other-dealer")
	require.NoError(t, err)

	foreignScope := domain.Scope{
		PrincipalID: "dealer-9",
		TenantID:    other.ID,
		Role:        domain.RoleDealer,
	}

	_, err = env.feedback.IssueLink(ctx, foreignScope, env.tenant.ID, "ride-7", "klant@example.com")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = env.feedback.ListByTenant(ctx, foreignScope, env.tenant.ID)
	require.ErrorIs(t, err, ErrForbidden)

	// A super admin is not bound to a tenant.
	rootScope := domain.Scope{PrincipalID: "root-1", SuperAdmin: true}
	_, err = env.feedback.IssueLink(ctx, rootScope, env.tenant.ID, "ride-7", "klant@example.com")
	require.NoError(t, err)
}

func TestFeedbackRejectsInvalidRating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	scope := domain.Scope{PrincipalID: "admin-1", TenantID: env.tenant.ID, Role: domain.RoleAdmin}
	link, err := env.feedback.IssueLink(ctx, scope, env.tenant.ID, "ride-11", "klant@example.com")
	require.NoError(t, err)
	token := strings.TrimPrefix(link, "https://app.proefrit.test/feedback/")

	_, err = env.feedback.Submit(ctx, token, 0, "", "203.0.113.60")
	require.ErrorIs(t, err, ErrValidation)
	_, err = env.feedback.Submit(ctx, token, 6, "", "203.0.113.60")
	require.ErrorIs(t, err, ErrValidation)

	// Invalid submissions must not burn the token.
	_, err = env.feedback.Submit(ctx, token, 3, "prima", "203.0.113.60")
	require.NoError(t, err)
}
