package http

import (
	"net/http"

	"github.com/proefritapp/identity/internal/identity/domain"
	"github.com/proefritapp/identity/internal/identity/service"
	"github.com/proefritapp/identity/pkg/httpx"
)

// AuthHandler serves the public account endpoints: registration, login,
// verification and password reset.
type AuthHandler struct {
	Accounts *service.AccountService
	Tokens   *service.TokenService
}

type principalResponse struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id,omitempty"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Verified bool   `json:"verified"`
	Approved bool   `json:"approved"`
	Active   bool   `json:"active"`
}

func toPrincipalResponse(p domain.Principal) principalResponse {
	return principalResponse{
		ID:       p.ID,
		TenantID: p.TenantID,
		Email:    p.Email,
		Role:     string(p.Role),
		Verified: p.Verified(),
		Approved: p.Approved(),
		Active:   p.Active,
	}
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tenant   string `json:"tenant"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	principal, err := h.Accounts.Register(
		r.Context(), req.Tenant, req.Email, req.Password,
		domain.Role(req.Role), httpx.IPKeyExtractor(r),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toPrincipalResponse(principal))
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		OTP      string `json:"otp,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	principal, scope, session, err := h.Accounts.Authenticate(
		r.Context(), req.Email, req.Password, req.OTP, httpx.IPKeyExtractor(r),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, struct {
		SessionToken string            `json:"session_token"`
		TokenType    string            `json:"token_type"`
		Principal    principalResponse `json:"principal"`
		SuperAdmin   bool              `json:"super_admin,omitempty"`
	}{
		SessionToken: session,
		TokenType:    "Bearer",
		Principal:    toPrincipalResponse(principal),
		SuperAdmin:   scope.SuperAdmin,
	})
}

func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	principal, err := h.Tokens.RedeemVerification(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toPrincipalResponse(principal))
}

func (h *AuthHandler) HandleVerifyResend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.Accounts.ResendVerification(r.Context(), req.Email, httpx.IPKeyExtractor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Accepted regardless of whether the email exists.
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.Accounts.RequestPasswordReset(r.Context(), req.Email, httpx.IPKeyExtractor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Accepted regardless of whether the email exists.
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.Tokens.RedeemPasswordReset(r.Context(), req.Token, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "password_reset"})
}
