package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/proefritapp/identity/internal/identity/service"
	"github.com/proefritapp/identity/pkg/httpx"
	"github.com/proefritapp/identity/pkg/limitx"
	"github.com/proefritapp/identity/pkg/slogx"
)

// decodeJSON reads a JSON request body into v, capping the body at 64 KiB.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return false
	}
	return true
}

// writeServiceError maps service sentinels to HTTP responses. Anything
// unrecognized is logged in full and surfaces as an opaque server error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var limited *service.RateLimitedError
	if errors.As(err, &limited) {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(limited.RetryAfter.Seconds())))
		httpx.WriteError(w, http.StatusTooManyRequests,
			"rate_limited", "Too many attempts. Please try again later.")
		return
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", validationDetail(err))
	case errors.Is(err, service.ErrInvalidCredentials):
		// One message for every credential failure: unknown account, wrong
		// password, inactive account and bad code are indistinguishable.
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
	case errors.Is(err, service.ErrUnauthorized):
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
	case errors.Is(err, service.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
	case errors.Is(err, service.ErrInvalidToken):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_token", "Token is invalid or unknown")
	case errors.Is(err, service.ErrExpiredToken):
		httpx.WriteError(w, http.StatusBadRequest, "expired_token", "Token has expired")
	case errors.Is(err, service.ErrTokenAlreadyUsed):
		httpx.WriteError(w, http.StatusConflict, "token_used", "Token has already been used")
	case errors.Is(err, service.ErrPrincipalNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Principal not found")
	case errors.Is(err, service.ErrNotVerified):
		httpx.WriteError(w, http.StatusConflict, "not_verified", "Account email is not verified")
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		httpx.WriteError(w, http.StatusConflict, "email_taken", "Email is already registered")
	case errors.Is(err, service.ErrUnknownTenant):
		httpx.WriteError(w, http.StatusBadRequest, "unknown_tenant", "Unknown or inactive dealership")
	case errors.Is(err, service.ErrFeedbackAlreadySubmitted):
		httpx.WriteError(w, http.StatusConflict, "feedback_exists", "Feedback was already submitted for this test ride")
	case errors.Is(err, service.ErrTwoFactorAlreadyEnabled):
		httpx.WriteError(w, http.StatusConflict, "two_factor_enabled", "Two-factor authentication is already enabled")
	case errors.Is(err, service.ErrTwoFactorNotConfigured):
		httpx.WriteError(w, http.StatusConflict, "two_factor_not_configured", "Two-factor authentication is not set up")
	case errors.Is(err, service.ErrInvalidTwoFactorCode):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", "Two-factor code is invalid")
	case errors.Is(err, limitx.ErrStoreUnavailable):
		httpx.WriteError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "Please try again later")
	default:
		slogx.FromContext(r.Context()).Error("unhandled service error", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal error")
	}
}

// validationDetail strips the sentinel prefix so clients see only the rule.
func validationDetail(err error) string {
	msg := err.Error()
	if detail, ok := strings.CutPrefix(msg, service.ErrValidation.Error()+": "); ok {
		return detail
	}
	return msg
}
