package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/proefritapp/identity/internal/identity/domain"
	"github.com/proefritapp/identity/internal/identity/store"
	"github.com/proefritapp/identity/pkg/limitx"
	"github.com/proefritapp/identity/pkg/mailx"
	"github.com/proefritapp/identity/pkg/slogx"
)

// FeedbackService issues post-drive feedback links and accepts submissions
// through them. The link token carries the tenant, so the public submission
// endpoint needs no authentication and no test-ride lookup.
type FeedbackService struct {
	Store   store.Store
	Limiter *limitx.Limiter
	Tokens  *TokenService
	Mail    mailx.EmailSender

	// BaseURL is the public web origin used in emailed links.
	BaseURL string
}

// IssueLink mints a feedback token for a completed test ride and emails the
// customer. The caller's scope must cover the tenant.
func (s *FeedbackService) IssueLink(
	ctx context.Context,
	scope domain.Scope,
	tenantID string,
	testRideID string,
	customerEmail string,
) (string, error) {
	log := slogx.FromContext(ctx)

	if !scope.AllowsTenant(tenantID) {
		log.Warn("feedback link requested outside caller tenant",
			slog.String("principal_id", scope.PrincipalID),
			slog.String("tenant_id", tenantID),
		)
		return "", ErrForbidden
	}
	if testRideID == "" {
		return "", validationError("test ride id is required")
	}
	customerEmail = normalizeEmail(customerEmail)
	if !strings.Contains(customerEmail, "@") {
		return "", validationError("invalid customer email address")
	}

	// A test ride with feedback on record needs no further link.
	if _, err := s.Store.Feedback().GetByTestRide(ctx, testRideID); err == nil {
		return "", ErrFeedbackAlreadySubmitted
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	token, err := s.Tokens.Issue(ctx, domain.PurposeFeedback, testRideID, tenantID)
	if err != nil {
		return "", err
	}

	link := s.BaseURL + "/feedback/" + token
	if err := s.Mail.Send(ctx, mailx.FeedbackEmail(customerEmail, link)); err != nil {
		log.Error("failed to send feedback email",
			slog.String("test_ride_id", testRideID),
			slog.Any("error", err),
		)
	}

	log.Info("feedback link issued",
		slog.String("test_ride_id", testRideID),
		slog.String("tenant_id", tenantID),
	)

	return link, nil
}

// Check validates a feedback token without consuming it, for rendering the
// form behind the emailed link.
func (s *FeedbackService) Check(ctx context.Context, token string) (domain.WorkflowToken, error) {
	return s.Tokens.Peek(ctx, token, domain.PurposeFeedback)
}

// Submit redeems a feedback token with the customer's rating and comment.
// Rate-limited per request IP; the token itself is single-use.
func (s *FeedbackService) Submit(
	ctx context.Context,
	token string,
	rating int,
	comment string,
	requestIP string,
) (domain.Feedback, error) {
	if err := checkLimit(ctx, s.Limiter, limitx.ActionFeedback, requestIP); err != nil {
		return domain.Feedback{}, err
	}
	return s.Tokens.RedeemFeedback(ctx, token, rating, comment)
}

// ListByTenant returns a tenant's feedback records, newest first.
func (s *FeedbackService) ListByTenant(ctx context.Context, scope domain.Scope, tenantID string) ([]domain.Feedback, error) {
	if !scope.AllowsTenant(tenantID) {
		return nil, ErrForbidden
	}
	return s.Store.Feedback().ListByTenant(ctx, tenantID)
}
