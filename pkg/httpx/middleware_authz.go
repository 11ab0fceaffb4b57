package httpx

import (
	"net/http"
	"slices"
)

// RequireSuperAdmin refuses callers without the platform super-admin flag.
func RequireSuperAdmin() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil || !claims.SuperAdmin {
				writeForbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits callers holding any of the listed tenant roles.
// Super admins pass regardless of role.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeForbidden(w)
				return
			}
			if claims.SuperAdmin || slices.Contains(roles, claims.Role) {
				next.ServeHTTP(w, r)
				return
			}
			writeForbidden(w)
		})
	}
}

func writeForbidden(w http.ResponseWriter) {
	WriteError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
}
