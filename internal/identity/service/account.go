package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/proefritapp/identity/internal/identity/domain"
	"github.com/proefritapp/identity/internal/identity/store"
	"github.com/proefritapp/identity/pkg/cryptox"
	"github.com/proefritapp/identity/pkg/idx"
	"github.com/proefritapp/identity/pkg/jwtx"
	"github.com/proefritapp/identity/pkg/limitx"
	"github.com/proefritapp/identity/pkg/mailx"
	"github.com/proefritapp/identity/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// AccountService owns the principal lifecycle: registration, authentication,
// verification resends, password resets and the admin state transitions.
type AccountService struct {
	Store   store.Store
	Limiter *limitx.Limiter
	Tokens  *TokenService
	Mail    mailx.EmailSender
	Signer  *jwtx.Signer

	// Issuer is the iss claim of session tokens and the TOTP issuer name.
	Issuer string

	// BaseURL is the public web origin used in emailed links.
	BaseURL string

	SessionTTL time.Duration
}

// Register creates an unverified, unapproved, active principal in the tenant
// identified by slug, issues a verification token and emails the link. A
// failed email send is logged but never undoes the registration.
func (s *AccountService) Register(
	ctx context.Context,
	tenantSlug string,
	email string,
	password string,
	role domain.Role,
	requestIP string,
) (domain.Principal, error) {
	log := slogx.FromContext(ctx)
	email = normalizeEmail(email)

	if err := s.checkLimit(ctx, limitx.ActionRegistration, requestIP, email); err != nil {
		return domain.Principal{}, err
	}

	if !strings.Contains(email, "@") {
		return domain.Principal{}, validationError("invalid email address")
	}
	if role == "" {
		role = domain.RoleDealer
	}
	if !role.Valid() {
		return domain.Principal{}, validationError("invalid role")
	}
	if strength := cryptox.ValidatePassword(password); !strength.Valid {
		if len(strength.Errors) > 0 {
			return domain.Principal{}, validationError(strength.Errors[0])
		}
		return domain.Principal{}, validationError("password is too weak")
	}

	tenant, err := s.Store.Tenants().GetBySlug(ctx, tenantSlug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("registration against unknown tenant",
				slog.String("tenant_slug", tenantSlug),
			)
			return domain.Principal{}, ErrUnknownTenant
		}
		return domain.Principal{}, err
	}
	if !tenant.Active {
		log.Warn("registration against inactive tenant",
			slog.String("tenant_id", tenant.ID),
		)
		return domain.Principal{}, ErrUnknownTenant
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return domain.Principal{}, err
	}

	now := time.Now().UTC()
	principal := domain.Principal{
		ID:           idx.New().String(),
		TenantID:     tenant.ID,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Principals().Create(ctx, principal); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Principal{}, ErrEmailAlreadyRegistered
		}
		log.Error("failed to create principal", slog.Any("error", err))
		return domain.Principal{}, err
	}

	s.sendVerification(ctx, principal)

	log.Info("principal registered",
		slog.String("principal_id", principal.ID),
		slog.String("tenant_id", tenant.ID),
		slog.String("role", string(role)),
	)

	return principal, nil
}

// Authenticate verifies credentials and returns the principal, its resolved
// authorization scope and a signed session token.
//
// Every failure between the rate-limit gate and a fully verified credential
// set surfaces as ErrInvalidCredentials; the precise reason only appears in
// the logs so callers cannot probe which accounts exist or are disabled.
func (s *AccountService) Authenticate(
	ctx context.Context,
	email string,
	password string,
	otpCode string,
	requestIP string,
) (domain.Principal, domain.Scope, string, error) {
	log := slogx.FromContext(ctx)
	email = normalizeEmail(email)

	if err := s.checkLimit(ctx, limitx.ActionLogin, requestIP, email); err != nil {
		return domain.Principal{}, domain.Scope{}, "", err
	}

	fail := func(reason string) (domain.Principal, domain.Scope, string, error) {
		log.Warn("authentication failed",
			slog.String("reason", reason),
			slog.String("ip", requestIP),
		)
		return domain.Principal{}, domain.Scope{}, "", ErrInvalidCredentials
	}

	principal, err := s.Store.Principals().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail("unknown email")
		}
		return domain.Principal{}, domain.Scope{}, "", err
	}

	if !principal.Active {
		return fail("account inactive")
	}

	if err := cryptox.VerifyPassword(password, principal.PasswordHash); err != nil {
		return fail("password mismatch")
	}

	amr := []string{"pwd"}
	if principal.TwoFactorEnabled() {
		if principal.TwoFactorSecret == nil {
			return fail("two-factor enabled without secret")
		}
		if otpCode == "" {
			return fail("two-factor code missing")
		}
		if !validateTOTP(otpCode, *principal.TwoFactorSecret) {
			return fail("two-factor code mismatch")
		}
		amr = append(amr, "otp")
	}

	scope := domain.ScopeOf(principal)

	ttl := s.SessionTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}
	claims := jwtx.NewSessionClaims(
		principal.ID, principal.TenantID, string(principal.Role),
		principal.SuperAdmin, amr, principal.Email,
		s.Issuer, ttl, time.Now().UTC(),
	)
	session, err := s.Signer.Sign(claims)
	if err != nil {
		log.Error("failed to sign session token", slog.Any("error", err))
		return domain.Principal{}, domain.Scope{}, "", err
	}

	log.Info("authentication succeeded",
		slog.String("principal_id", principal.ID),
		slog.Any("amr", amr),
	)

	return principal, scope, session, nil
}

// RequestPasswordReset issues a reset token and emails the link. It succeeds
// externally no matter what: an unknown email only burns the rate-limit
// budget and writes nothing.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email, requestIP string) error {
	log := slogx.FromContext(ctx)
	email = normalizeEmail(email)

	if err := s.checkLimit(ctx, limitx.ActionPasswordReset, requestIP, email); err != nil {
		return err
	}

	principal, err := s.Store.Principals().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := s.Tokens.Issue(ctx, domain.PurposeResetPassword, principal.ID, "")
	if err != nil {
		return err
	}

	msg := mailx.PasswordResetEmail(principal.Email, s.BaseURL+"/reset?token="+token)
	if err := s.Mail.Send(ctx, msg); err != nil {
		log.Error("failed to send password reset email",
			slog.String("principal_id", principal.ID),
			slog.Any("error", err),
		)
	}

	return nil
}

// ResendVerification reissues the verification token. Rate-limited per
// request IP and per target email, so rotating IPs cannot flood one victim
// mailbox. Unknown or already-verified emails no-op.
func (s *AccountService) ResendVerification(ctx context.Context, email, requestIP string) error {
	log := slogx.FromContext(ctx)
	email = normalizeEmail(email)

	if err := s.checkLimit(ctx, limitx.ActionEmailVerification, requestIP, email); err != nil {
		return err
	}

	principal, err := s.Store.Principals().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("verification resend requested for unknown email")
			return nil
		}
		return err
	}
	if principal.Verified() {
		log.Debug("verification resend requested for verified account",
			slog.String("principal_id", principal.ID),
		)
		return nil
	}

	s.sendVerification(ctx, principal)
	return nil
}

// Approve marks a verified principal as approved. Approving an unverified
// account is a domain error, not a generic failure.
func (s *AccountService) Approve(ctx context.Context, principalID string) (domain.Principal, error) {
	log := slogx.FromContext(ctx)

	principal, err := s.Store.Principals().GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, ErrPrincipalNotFound
		}
		return domain.Principal{}, err
	}

	if !principal.Verified() {
		log.Warn("attempted to approve unverified principal",
			slog.String("principal_id", principalID),
		)
		return domain.Principal{}, ErrNotVerified
	}
	if principal.Approved() {
		return principal, nil
	}

	if err := s.Store.Principals().Approve(ctx, principalID, time.Now().UTC()); err != nil &&
		!errors.Is(err, store.ErrNotFound) { // lost race with another approve
		return domain.Principal{}, err
	}

	log.Info("principal approved", slog.String("principal_id", principalID))
	return s.Store.Principals().GetByID(ctx, principalID)
}

// SetActive toggles the active flag independent of verification and approval.
func (s *AccountService) SetActive(ctx context.Context, principalID string, active bool) (domain.Principal, error) {
	log := slogx.FromContext(ctx)

	if err := s.Store.Principals().SetActive(ctx, principalID, active, time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, ErrPrincipalNotFound
		}
		return domain.Principal{}, err
	}

	log.Info("principal active flag changed",
		slog.String("principal_id", principalID),
		slog.Bool("active", active),
	)
	return s.Store.Principals().GetByID(ctx, principalID)
}

// GetPrincipal fetches a principal by id.
func (s *AccountService) GetPrincipal(ctx context.Context, principalID string) (domain.Principal, error) {
	principal, err := s.Store.Principals().GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, ErrPrincipalNotFound
		}
		return domain.Principal{}, err
	}
	return principal, nil
}

// sendVerification issues a verification token and emails the link. Failures
// are logged, never returned: the state change already happened.
func (s *AccountService) sendVerification(ctx context.Context, principal domain.Principal) {
	log := slogx.FromContext(ctx)

	token, err := s.Tokens.Issue(ctx, domain.PurposeVerifyEmail, principal.ID, "")
	if err != nil {
		log.Error("failed to issue verification token",
			slog.String("principal_id", principal.ID),
			slog.Any("error", err),
		)
		return
	}

	msg := mailx.VerificationEmail(principal.Email, s.BaseURL+"/verify?token="+token)
	if err := s.Mail.Send(ctx, msg); err != nil {
		log.Error("failed to send verification email",
			slog.String("principal_id", principal.ID),
			slog.Any("error", err),
		)
	}
}

// checkLimit records one attempt against each non-empty identity and stops
// at the first one over budget.
func (s *AccountService) checkLimit(ctx context.Context, action limitx.Action, identities ...string) error {
	return checkLimit(ctx, s.Limiter, action, identities...)
}

func checkLimit(ctx context.Context, limiter *limitx.Limiter, action limitx.Action, identities ...string) error {
	for _, identity := range identities {
		if identity == "" {
			continue
		}
		res, err := limiter.CheckAndRecord(ctx, action, identity)
		if err != nil {
			return err
		}
		if !res.Allowed {
			return &RateLimitedError{RetryAfter: res.RetryAfter}
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateTOTP checks a code against the stored secret with one period of
// clock skew in either direction.
func validateTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
