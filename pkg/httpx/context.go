package httpx

import (
	"context"

	"github.com/proefritapp/identity/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyPrincipalID ctxKey = "principal_id"
	CtxKeyClaims      ctxKey = "claims"
)

// ClaimsFromContext returns the verified session claims, or nil when the
// request did not pass AuthnMiddleware.
func ClaimsFromContext(ctx context.Context) *jwtx.Claims {
	c, ok := ctx.Value(CtxKeyClaims).(*jwtx.Claims)
	if !ok {
		return nil
	}
	return c
}

// PrincipalIDFromContext returns the authenticated principal id, or "".
func PrincipalIDFromContext(ctx context.Context) string {
	id, ok := ctx.Value(CtxKeyPrincipalID).(string)
	if !ok {
		return ""
	}
	return id
}
