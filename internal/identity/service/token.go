package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/proefritapp/identity/internal/identity/domain"
	"github.com/proefritapp/identity/internal/identity/store"
	"github.com/proefritapp/identity/pkg/cryptox"
	"github.com/proefritapp/identity/pkg/idx"
	"github.com/proefritapp/identity/pkg/slogx"
)

// TokenService mints and redeems single-use workflow tokens. Redemption and
// its side effect always happen inside one transaction so a token can never
// be consumed without its effect, or the other way around.
type TokenService struct {
	Store store.Store
}

// Issue creates a fresh workflow token for (owner, purpose). Any previously
// issued, unused token of the same purpose for the same owner is invalidated
// in the same transaction, so at most one live token exists per pair. The
// raw token is returned to the caller; only its fingerprint is stored.
func (s *TokenService) Issue(
	ctx context.Context,
	purpose domain.TokenPurpose,
	ownerID string,
	tenantID string,
) (string, error) {
	log := slogx.FromContext(ctx)

	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate workflow token", slog.Any("error", err))
		return "", err
	}

	now := time.Now().UTC()
	tok := domain.WorkflowToken{
		ID:          idx.New().String(),
		Fingerprint: cryptox.FingerprintToken(raw),
		Purpose:     purpose,
		OwnerID:     ownerID,
		TenantID:    tenantID,
		ExpiresAt:   now.Add(purpose.TTL()),
		CreatedAt:   now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.WorkflowTokens().DeleteUnusedByOwnerPurpose(ctx, ownerID, purpose); err != nil {
			return err
		}
		return tx.WorkflowTokens().Create(ctx, tok)
	})
	if err != nil {
		log.Error("failed to store workflow token",
			slog.String("purpose", string(purpose)),
			slog.Any("error", err),
		)
		return "", err
	}

	log.Debug("workflow token issued",
		slog.String("token_id", tok.ID),
		slog.String("purpose", string(purpose)),
		slog.Time("expires_at", tok.ExpiresAt),
	)

	return raw, nil
}

// RedeemVerification consumes an email-verification token, marking the owning
// principal's email as verified. The token is deleted on success; a second
// redemption fails with ErrInvalidToken.
func (s *TokenService) RedeemVerification(ctx context.Context, token string) (domain.Principal, error) {
	log := slogx.FromContext(ctx)

	tok, err := s.lookup(ctx, token, domain.PurposeVerifyEmail)
	if err != nil {
		return domain.Principal{}, err
	}

	principal, err := s.Store.Principals().GetByID(ctx, tok.OwnerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Owner no longer exists; the token is garbage.
			_ = s.Store.WorkflowTokens().Delete(ctx, tok.ID)
			return domain.Principal{}, ErrInvalidToken
		}
		return domain.Principal{}, err
	}

	now := time.Now().UTC()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Principals().MarkEmailVerified(ctx, tok.OwnerID, now); err != nil &&
			!errors.Is(err, store.ErrNotFound) { // already verified is fine
			return err
		}
		return tx.WorkflowTokens().Delete(ctx, tok.ID)
	})
	if err != nil {
		log.Error("failed to redeem verification token",
			slog.String("token_id", tok.ID),
			slog.Any("error", err),
		)
		return domain.Principal{}, err
	}

	log.Info("email verified",
		slog.String("principal_id", principal.ID),
	)

	return s.Store.Principals().GetByID(ctx, principal.ID)
}

// RedeemPasswordReset consumes a password-reset token, replacing the owner's
// password hash. A successful reset proves mailbox ownership, so the same
// transaction also marks the email as verified.
func (s *TokenService) RedeemPasswordReset(ctx context.Context, token, newPassword string) error {
	log := slogx.FromContext(ctx)

	if strength := cryptox.ValidatePassword(newPassword); !strength.Valid {
		if len(strength.Errors) > 0 {
			return validationError(strength.Errors[0])
		}
		return validationError("password is too weak")
	}

	tok, err := s.lookup(ctx, token, domain.PurposeResetPassword)
	if err != nil {
		return err
	}

	if _, err := s.Store.Principals().GetByID(ctx, tok.OwnerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = s.Store.WorkflowTokens().Delete(ctx, tok.ID)
			return ErrInvalidToken
		}
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return err
	}

	now := time.Now().UTC()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Principals().UpdatePasswordHash(ctx, tok.OwnerID, hash, now); err != nil {
			return err
		}
		if err := tx.Principals().MarkEmailVerified(ctx, tok.OwnerID, now); err != nil &&
			!errors.Is(err, store.ErrNotFound) { // already verified is fine
			return err
		}
		return tx.WorkflowTokens().Delete(ctx, tok.ID)
	})
	if err != nil {
		log.Error("failed to redeem reset token",
			slog.String("token_id", tok.ID),
			slog.Any("error", err),
		)
		return err
	}

	log.Info("password reset completed",
		slog.String("principal_id", tok.OwnerID),
	)

	return nil
}

// RedeemFeedback consumes a feedback token, creating the feedback record for
// its test ride. The token is stamped used and retained for audit; a second
// submission fails, as does any other token for a test ride that already has
// feedback.
func (s *TokenService) RedeemFeedback(
	ctx context.Context,
	token string,
	rating int,
	comment string,
) (domain.Feedback, error) {
	log := slogx.FromContext(ctx)

	if rating < 1 || rating > 5 {
		return domain.Feedback{}, validationError("rating must be between 1 and 5")
	}

	tok, err := s.lookup(ctx, token, domain.PurposeFeedback)
	if err != nil {
		return domain.Feedback{}, err
	}

	fb := domain.Feedback{
		ID:         idx.New().String(),
		TestRideID: tok.OwnerID,
		TenantID:   tok.TenantID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.WorkflowTokens().MarkUsed(ctx, tok.ID, fb.CreatedAt); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTokenAlreadyUsed
			}
			return err
		}
		if err := tx.Feedback().Create(ctx, fb); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrFeedbackAlreadySubmitted
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTokenAlreadyUsed) || errors.Is(err, ErrFeedbackAlreadySubmitted) {
			return domain.Feedback{}, err
		}
		log.Error("failed to redeem feedback token",
			slog.String("token_id", tok.ID),
			slog.Any("error", err),
		)
		return domain.Feedback{}, err
	}

	log.Info("feedback submitted",
		slog.String("test_ride_id", fb.TestRideID),
		slog.String("tenant_id", fb.TenantID),
		slog.Int("rating", fb.Rating),
	)

	return fb, nil
}

// Peek validates a token without consuming it, for rendering a form before
// submission.
func (s *TokenService) Peek(ctx context.Context, token string, purpose domain.TokenPurpose) (domain.WorkflowToken, error) {
	return s.lookup(ctx, token, purpose)
}

// lookup fingerprints the raw token and resolves it to a live record.
// Purpose mismatches are indistinguishable from unknown tokens so a
// verification token can never be probed against the reset endpoint.
func (s *TokenService) lookup(ctx context.Context, token string, purpose domain.TokenPurpose) (domain.WorkflowToken, error) {
	log := slogx.FromContext(ctx)

	if token == "" {
		return domain.WorkflowToken{}, ErrInvalidToken
	}

	fingerprint := cryptox.FingerprintToken(token)
	tok, err := s.Store.WorkflowTokens().GetByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("redemption attempted with unknown token",
				slog.String("purpose", string(purpose)),
			)
			return domain.WorkflowToken{}, ErrInvalidToken
		}
		return domain.WorkflowToken{}, err
	}

	if tok.Purpose != purpose {
		log.Warn("redemption attempted with wrong-purpose token",
			slog.String("token_purpose", string(tok.Purpose)),
			slog.String("requested_purpose", string(purpose)),
		)
		return domain.WorkflowToken{}, ErrInvalidToken
	}

	if tok.Expired(time.Now().UTC()) {
		// Account tokens are purged on sight; used feedback tokens are kept
		// for audit and swept by housekeeping instead.
		if tok.UsedAt == nil {
			_ = s.Store.WorkflowTokens().Delete(ctx, tok.ID)
		}
		return domain.WorkflowToken{}, ErrExpiredToken
	}

	if tok.UsedAt != nil {
		return domain.WorkflowToken{}, ErrTokenAlreadyUsed
	}

	return tok, nil
}
