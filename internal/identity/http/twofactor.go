package http

import (
	"net/http"

	"github.com/proefritapp/identity/internal/identity/service"
	"github.com/proefritapp/identity/pkg/httpx"
)

// TwoFactorHandler serves the authenticated TOTP enrollment endpoints.
type TwoFactorHandler struct {
	TwoFactor *service.TwoFactorService
}

func (h *TwoFactorHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	principalID := httpx.PrincipalIDFromContext(r.Context())

	enrollment, err := h.TwoFactor.BeginSetup(r.Context(), principalID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, struct {
		Secret     string `json:"secret"`
		OtpauthURL string `json:"otpauth_url"`
	}{
		Secret:     enrollment.Secret,
		OtpauthURL: enrollment.OtpauthURL,
	})
}

func (h *TwoFactorHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	principalID := httpx.PrincipalIDFromContext(r.Context())
	if err := h.TwoFactor.ConfirmSetup(r.Context(), principalID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "two_factor_enabled"})
}

func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	principalID := httpx.PrincipalIDFromContext(r.Context())

	if err := h.TwoFactor.Disable(r.Context(), principalID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "two_factor_disabled"})
}
