package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/proefritapp/identity/internal/identity/domain"
	"github.com/proefritapp/identity/internal/identity/store"
)

type principalsRepo struct {
	q dbtx
}

const principalColumns = `id, tenant_id, email, password_hash, role, super_admin,
	email_verified_at, approved_at, active, two_factor_secret, two_factor_enabled_at,
	created_at, updated_at`

func (r *principalsRepo) Create(ctx context.Context, p domain.Principal) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO principals (
			id, tenant_id, email, password_hash, role, super_admin,
			email_verified_at, approved_at, active, two_factor_secret,
			two_factor_enabled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, mapStringNull(p.TenantID), p.Email, p.PasswordHash, string(p.Role),
		p.SuperAdmin, mapOptionalTime(p.EmailVerifiedAt), mapOptionalTime(p.ApprovedAt),
		p.Active, mapOptionalString(p.TwoFactorSecret), mapOptionalTime(p.TwoFactorEnabledAt),
		p.CreatedAt, p.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *principalsRepo) GetByID(ctx context.Context, id string) (domain.Principal, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id = ?`, id)
	return scanPrincipal(row)
}

func (r *principalsRepo) GetByEmail(ctx context.Context, email string) (domain.Principal, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE email = ?`, email)
	return scanPrincipal(row)
}

func (r *principalsRepo) ListByTenant(ctx context.Context, tenantID string) ([]domain.Principal, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE tenant_id = ? ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *principalsRepo) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	return r.exec(ctx,
		`UPDATE principals SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, now, id)
}

func (r *principalsRepo) MarkEmailVerified(ctx context.Context, id string, now time.Time) error {
	return r.exec(ctx, `
		UPDATE principals SET email_verified_at = ?, updated_at = ?
		WHERE id = ? AND email_verified_at IS NULL`,
		now, now, id)
}

func (r *principalsRepo) Approve(ctx context.Context, id string, now time.Time) error {
	return r.exec(ctx, `
		UPDATE principals SET approved_at = ?, updated_at = ?
		WHERE id = ? AND approved_at IS NULL`,
		now, now, id)
}

func (r *principalsRepo) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	return r.exec(ctx,
		`UPDATE principals SET active = ?, updated_at = ? WHERE id = ?`,
		active, now, id)
}

func (r *principalsRepo) SetTwoFactorSecret(ctx context.Context, id, secret string, now time.Time) error {
	return r.exec(ctx,
		`UPDATE principals SET two_factor_secret = ?, updated_at = ? WHERE id = ?`,
		secret, now, id)
}

func (r *principalsRepo) EnableTwoFactor(ctx context.Context, id string, now time.Time) error {
	return r.exec(ctx, `
		UPDATE principals SET two_factor_enabled_at = ?, updated_at = ?
		WHERE id = ? AND two_factor_secret IS NOT NULL`,
		now, now, id)
}

func (r *principalsRepo) DisableTwoFactor(ctx context.Context, id string, now time.Time) error {
	return r.exec(ctx, `
		UPDATE principals SET two_factor_secret = NULL, two_factor_enabled_at = NULL, updated_at = ?
		WHERE id = ?`,
		now, id)
}

// exec runs an UPDATE that must touch exactly one row, mapping a zero-row
// result to store.ErrNotFound.
func (r *principalsRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (domain.Principal, error) {
	var (
		p        domain.Principal
		tenantID sql.NullString
		verified sql.NullTime
		approved sql.NullTime
		secret   sql.NullString
		enabled  sql.NullTime
		role     string
	)
	err := row.Scan(
		&p.ID, &tenantID, &p.Email, &p.PasswordHash, &role, &p.SuperAdmin,
		&verified, &approved, &p.Active, &secret, &enabled,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Principal{}, mapNotFound(err)
	}

	p.TenantID = mapNullString(tenantID)
	p.Role = domain.Role(role)
	p.EmailVerifiedAt = mapNullTimePtr(verified)
	p.ApprovedAt = mapNullTimePtr(approved)
	p.TwoFactorSecret = mapNullStringPtr(secret)
	p.TwoFactorEnabledAt = mapNullTimePtr(enabled)
	return p, nil
}
