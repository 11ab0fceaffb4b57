package service

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared across the identity services. Handlers map these to
// HTTP status codes; anything else surfaces as an internal error.
var (
	ErrValidation               = errors.New("validation failed")
	ErrRateLimited              = errors.New("rate limited")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrForbidden                = errors.New("forbidden")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrInvalidToken             = errors.New("invalid or unknown token")
	ErrExpiredToken             = errors.New("token expired")
	ErrTokenAlreadyUsed         = errors.New("token already used")
	ErrPrincipalNotFound        = errors.New("principal not found")
	ErrNotVerified              = errors.New("account email not verified")
	ErrEmailAlreadyRegistered   = errors.New("email already registered")
	ErrUnknownTenant            = errors.New("unknown or inactive tenant")
	ErrFeedbackAlreadySubmitted = errors.New("feedback already submitted for this test ride")
	ErrTwoFactorAlreadyEnabled  = errors.New("two-factor authentication already enabled")
	ErrTwoFactorNotConfigured   = errors.New("two-factor authentication not configured")
	ErrInvalidTwoFactorCode     = errors.New("invalid two-factor code")
)

// RateLimitedError carries the retry hint alongside the ErrRateLimited
// sentinel, so callers can match with errors.Is and still read RetryAfter.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
