package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/proefritapp/identity/internal/identity/domain"
	"github.com/proefritapp/identity/internal/identity/store"
	"github.com/proefritapp/identity/pkg/idx"
	"github.com/proefritapp/identity/pkg/slogx"
)

// TenantService manages dealership records. Creation is a super-admin
// operation; the slug is the stable public handle used at registration.
type TenantService struct {
	Store store.Store
}

// CreateTenant creates an active dealership with a unique slug.
func (s *TenantService) CreateTenant(ctx context.Context, name, slug string) (domain.Tenant, error) {
	log := slogx.FromContext(ctx)

	if name == "" {
		return domain.Tenant{}, validationError("tenant name is required")
	}
	if !validSlug(slug) {
		return domain.Tenant{}, validationError("slug must be lowercase letters, digits and hyphens")
	}

	now := time.Now().UTC()
	tenant := domain.Tenant{
		ID:        idx.New().String(),
		Name:      name,
		Slug:      slug,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Store.Tenants().Create(ctx, tenant); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Tenant{}, validationError("slug already taken")
		}
		log.Error("failed to create tenant", slog.Any("error", err))
		return domain.Tenant{}, err
	}

	log.Info("tenant created",
		slog.String("tenant_id", tenant.ID),
		slog.String("slug", slug),
	)
	return tenant, nil
}

// GetBySlug resolves a tenant by its public slug.
func (s *TenantService) GetBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	tenant, err := s.Store.Tenants().GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Tenant{}, ErrUnknownTenant
		}
		return domain.Tenant{}, err
	}
	return tenant, nil
}

func validSlug(slug string) bool {
	if slug == "" || len(slug) > 64 {
		return false
	}
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return slug[0] != '-' && slug[len(slug)-1] != '-'
}
