package http

import (
	"net/http"

	"github.com/proefritapp/identity/internal/identity/service"
	"github.com/proefritapp/identity/pkg/httpx"
)

// FeedbackHandler serves the public feedback endpoints behind emailed links.
type FeedbackHandler struct {
	Feedback *service.FeedbackService
}

// HandleCheck validates the link token so the client can render the form.
func (h *FeedbackHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	tok, err := h.Feedback.Check(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, struct {
		TestRideID string `json:"test_ride_id"`
		ExpiresAt  string `json:"expires_at"`
	}{
		TestRideID: tok.OwnerID,
		ExpiresAt:  tok.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (h *FeedbackHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	fb, err := h.Feedback.Submit(
		r.Context(), r.PathValue("token"), req.Rating, req.Comment, httpx.IPKeyExtractor(r),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, struct {
		ID         string `json:"id"`
		TestRideID string `json:"test_ride_id"`
		Rating     int    `json:"rating"`
	}{
		ID:         fb.ID,
		TestRideID: fb.TestRideID,
		Rating:     fb.Rating,
	})
}
