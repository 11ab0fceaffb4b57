package sqlite

import (
	"context"

	"github.com/proefritapp/identity/internal/identity/domain"
)

type tenantsRepo struct {
	q dbtx
}

func (r *tenantsRepo) Create(ctx context.Context, t domain.Tenant) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO tenants (id, name, slug, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Slug, t.Active, t.CreatedAt, t.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *tenantsRepo) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return r.get(ctx, `WHERE id = ?`, id)
}

func (r *tenantsRepo) GetBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	return r.get(ctx, `WHERE slug = ?`, slug)
}

func (r *tenantsRepo) get(ctx context.Context, where string, arg any) (domain.Tenant, error) {
	var t domain.Tenant
	err := r.q.QueryRowContext(ctx,
		`SELECT id, name, slug, active, created_at, updated_at FROM tenants `+where, arg,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Tenant{}, mapNotFound(err)
	}
	return t, nil
}
