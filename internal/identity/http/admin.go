package http

import (
	"net/http"

	"github.com/proefritapp/identity/internal/identity/domain"
	"github.com/proefritapp/identity/internal/identity/service"
	"github.com/proefritapp/identity/pkg/httpx"
	"github.com/proefritapp/identity/pkg/limitx"
)

// AdminHandler serves the platform administration endpoints. Routing puts
// RequireSuperAdmin in front of everything here except the feedback-link
// endpoints, which tenant admins and dealers may use for their own tenant.
type AdminHandler struct {
	Accounts *service.AccountService
	Tenants  *service.TenantService
	Feedback *service.FeedbackService
	Limiter  *limitx.Limiter
}

// scopeFromRequest rebuilds the authorization scope from verified claims.
func scopeFromRequest(r *http.Request) domain.Scope {
	claims := httpx.ClaimsFromContext(r.Context())
	if claims == nil {
		return domain.Scope{}
	}
	return domain.Scope{
		PrincipalID: claims.Subject,
		TenantID:    claims.TenantID,
		Role:        domain.Role(claims.Role),
		SuperAdmin:  claims.SuperAdmin,
	}
}

func (h *AdminHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	principal, err := h.Accounts.Approve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPrincipalResponse(principal))
}

func (h *AdminHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	principal, err := h.Accounts.SetActive(r.Context(), r.PathValue("id"), req.Active)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPrincipalResponse(principal))
}

func (h *AdminHandler) HandleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	tenant, err := h.Tenants.CreateTenant(r.Context(), req.Name, req.Slug)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Slug string `json:"slug"`
	}{tenant.ID, tenant.Name, tenant.Slug})
}

func (h *AdminHandler) HandleListRateLimits(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.Limiter.ListBlocked(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	type blockedResponse struct {
		Key              string `json:"key"`
		Count            int    `json:"count"`
		RemainingSeconds int    `json:"remaining_seconds"`
	}
	out := make([]blockedResponse, 0, len(blocked))
	for _, b := range blocked {
		out = append(out, blockedResponse{
			Key:              b.Key,
			Count:            b.Count,
			RemainingSeconds: int(b.Remaining.Seconds()),
		})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"blocked": out})
}

func (h *AdminHandler) HandleClearRateLimits(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.Limiter.ClearAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

func (h *AdminHandler) HandleUnblock(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Limiter.Unblock(r.Context(), r.PathValue("identity"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *AdminHandler) HandleIssueFeedbackLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID      string `json:"tenant_id"`
		TestRideID    string `json:"test_ride_id"`
		CustomerEmail string `json:"customer_email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	scope := scopeFromRequest(r)
	if req.TenantID == "" {
		req.TenantID = scope.TenantID
	}

	link, err := h.Feedback.IssueLink(r.Context(), scope, req.TenantID, req.TestRideID, req.CustomerEmail)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"link": link})
}

func (h *AdminHandler) HandleListFeedback(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromRequest(r)
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		tenantID = scope.TenantID
	}

	records, err := h.Feedback.ListByTenant(r.Context(), scope, tenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	type feedbackResponse struct {
		ID         string `json:"id"`
		TestRideID string `json:"test_ride_id"`
		Rating     int    `json:"rating"`
		Comment    string `json:"comment,omitempty"`
		CreatedAt  string `json:"created_at"`
	}
	out := make([]feedbackResponse, 0, len(records))
	for _, f := range records {
		out = append(out, feedbackResponse{
			ID:         f.ID,
			TestRideID: f.TestRideID,
			Rating:     f.Rating,
			Comment:    f.Comment,
			CreatedAt:  f.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"feedback": out})
}
