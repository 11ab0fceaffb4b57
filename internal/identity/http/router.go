package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/proefritapp/identity/internal/identity/domain"
	"github.com/proefritapp/identity/internal/identity/service"
	"github.com/proefritapp/identity/internal/identity/store"
	"github.com/proefritapp/identity/pkg/httpx"
	"github.com/proefritapp/identity/pkg/jwtx"
	"github.com/proefritapp/identity/pkg/limitx"
	"github.com/proefritapp/identity/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     *jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store   store.Store
	limiter *limitx.Limiter

	Accounts  *service.AccountService
	Tokens    *service.TokenService
	TwoFactor *service.TwoFactorService
	Feedback  *service.FeedbackService
	Tenants   *service.TenantService
}

func NewRouter(
	verifier *jwtx.Verifier,
	buildVersion string,
	st store.Store,
	limiter *limitx.Limiter,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		limiter:      limiter,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerTwoFactor()
	r.registerFeedback()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Accounts: r.Accounts, Tokens: r.Tokens}

	// Public credential endpoints: strict per-IP throttle on top of the
	// per-action limitx budgets inside the services.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/verify/resend",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyResend),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/forgot",
		httpx.Chain(http.HandlerFunc(h.HandleForgotPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{TwoFactor: r.TwoFactor}

	r.Mux.Handle("POST /v1/2fa/setup",
		httpx.Chain(http.HandlerFunc(h.HandleSetup),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)

	// Strict per-principal throttle: TOTP codes are brute-forceable.
	r.Mux.Handle("POST /v1/2fa/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirm),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByPrincipal(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/2fa/disable",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerFeedback() {
	h := &FeedbackHandler{Feedback: r.Feedback}

	// Public endpoints behind emailed links.
	r.Mux.Handle("GET /v1/feedback/{token}",
		httpx.Chain(http.HandlerFunc(h.HandleCheck),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/feedback/{token}",
		httpx.Chain(http.HandlerFunc(h.HandleSubmit),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{
		Accounts: r.Accounts,
		Tenants:  r.Tenants,
		Feedback: r.Feedback,
		Limiter:  r.limiter,
	}

	superAdmin := func(handler http.HandlerFunc) http.Handler {
		return httpx.Chain(handler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireSuperAdmin(),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/admin/principals/{id}/approve", superAdmin(h.HandleApprove))
	r.Mux.Handle("POST /v1/admin/principals/{id}/active", superAdmin(h.HandleSetActive))
	r.Mux.Handle("POST /v1/admin/tenants", superAdmin(h.HandleCreateTenant))
	r.Mux.Handle("GET /v1/admin/ratelimits", superAdmin(h.HandleListRateLimits))
	r.Mux.Handle("DELETE /v1/admin/ratelimits", superAdmin(h.HandleClearRateLimits))
	r.Mux.Handle("DELETE /v1/admin/ratelimits/{identity}", superAdmin(h.HandleUnblock))

	// Tenant staff issue and review feedback for their own tenant; the
	// services enforce the tenant boundary from the caller's scope.
	tenantStaff := func(handler http.HandlerFunc) http.Handler {
		return httpx.Chain(handler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(string(domain.RoleAdmin), string(domain.RoleDealer)),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/admin/feedback-links", tenantStaff(h.HandleIssueFeedbackLink))
	r.Mux.Handle("GET /v1/admin/feedback", tenantStaff(h.HandleListFeedback))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
