package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/proefritapp/identity/internal/identity/store"
	"github.com/proefritapp/identity/pkg/limitx"
	"github.com/proefritapp/identity/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TwoFactorService manages TOTP enrollment. Enrollment is a two-step flow:
// BeginSetup stores the secret with the enabled flag still off, ConfirmSetup
// proves the authenticator works and flips the flag. A stored-but-unconfirmed
// secret never satisfies an authentication check because Authenticate only
// demands a code once the enabled flag is set.
type TwoFactorService struct {
	Store   store.Store
	Limiter *limitx.Limiter

	// Issuer is the account label shown in authenticator apps.
	Issuer string
}

// TwoFactorEnrollment is the outcome of BeginSetup.
type TwoFactorEnrollment struct {
	Secret     string
	OtpauthURL string
}

// BeginSetup generates and stores a fresh TOTP secret for the principal.
// Refused while two-factor is already enabled; disable first.
func (s *TwoFactorService) BeginSetup(ctx context.Context, principalID string) (TwoFactorEnrollment, error) {
	log := slogx.FromContext(ctx)

	principal, err := s.Store.Principals().GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TwoFactorEnrollment{}, ErrPrincipalNotFound
		}
		return TwoFactorEnrollment{}, err
	}
	if principal.TwoFactorEnabled() {
		return TwoFactorEnrollment{}, ErrTwoFactorAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: principal.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		log.Error("failed to generate TOTP key", slog.Any("error", err))
		return TwoFactorEnrollment{}, err
	}

	if err := s.Store.Principals().SetTwoFactorSecret(ctx, principalID, key.Secret(), time.Now().UTC()); err != nil {
		return TwoFactorEnrollment{}, err
	}

	log.Info("two-factor setup started", slog.String("principal_id", principalID))

	return TwoFactorEnrollment{
		Secret:     key.Secret(),
		OtpauthURL: key.URL(),
	}, nil
}

// ConfirmSetup validates a code against the pending secret and enables
// two-factor in one update. Code attempts are rate-limited per principal.
func (s *TwoFactorService) ConfirmSetup(ctx context.Context, principalID, code string) error {
	log := slogx.FromContext(ctx)

	if err := checkLimit(ctx, s.Limiter, limitx.ActionTwoFactor, principalID); err != nil {
		return err
	}

	principal, err := s.Store.Principals().GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPrincipalNotFound
		}
		return err
	}
	if principal.TwoFactorEnabled() {
		return ErrTwoFactorAlreadyEnabled
	}
	if principal.TwoFactorSecret == nil || *principal.TwoFactorSecret == "" {
		return ErrTwoFactorNotConfigured
	}

	if !validateTOTP(code, *principal.TwoFactorSecret) {
		log.Warn("two-factor confirmation failed",
			slog.String("principal_id", principalID),
		)
		return ErrInvalidTwoFactorCode
	}

	if err := s.Store.Principals().EnableTwoFactor(ctx, principalID, time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Secret vanished between check and update.
			return ErrTwoFactorNotConfigured
		}
		return err
	}

	log.Info("two-factor enabled", slog.String("principal_id", principalID))
	return nil
}

// Disable clears the secret and the enabled flag in one update.
func (s *TwoFactorService) Disable(ctx context.Context, principalID string) error {
	log := slogx.FromContext(ctx)

	principal, err := s.Store.Principals().GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPrincipalNotFound
		}
		return err
	}
	if !principal.TwoFactorEnabled() && principal.TwoFactorSecret == nil {
		return ErrTwoFactorNotConfigured
	}

	if err := s.Store.Principals().DisableTwoFactor(ctx, principalID, time.Now().UTC()); err != nil {
		return err
	}

	log.Info("two-factor disabled", slog.String("principal_id", principalID))
	return nil
}
