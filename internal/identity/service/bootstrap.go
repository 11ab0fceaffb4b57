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

// EnsureSuperAdmin creates the platform super admin on first start. The
// account is created verified, approved and active since it comes from
// deployment configuration, not a public signup. A no-op when the email
// already exists.
func (s *AccountService) EnsureSuperAdmin(ctx context.Context, email, password string) (domain.Principal, error) {
	log := slogx.FromContext(ctx)
	email = normalizeEmail(email)

	existing, err := s.Store.Principals().GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Principal{}, err
	}

	if strength := cryptox.ValidatePassword(password); !strength.Valid {
		if len(strength.Errors) > 0 {
			return domain.Principal{}, validationError(strength.Errors[0])
		}
		return domain.Principal{}, validationError("super admin password is too weak")
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.Principal{}, err
	}

	now := time.Now().UTC()
	admin := domain.Principal{
		ID:              idx.New().String(),
		Email:           email,
		PasswordHash:    hash,
		Role:            domain.RoleAdmin,
		SuperAdmin:      true,
		EmailVerifiedAt: &now,
		ApprovedAt:      &now,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.Store.Principals().Create(ctx, admin); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race with a concurrent bootstrap.
			return s.Store.Principals().GetByEmail(ctx, email)
		}
		return domain.Principal{}, err
	}

	log.Info("super admin bootstrapped",
		slog.String("principal_id", admin.ID),
	)
	return admin, nil
}
