package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/proefritapp/identity/internal/identity/domain"
	"github.com/proefritapp/identity/internal/identity/store"
)

type workflowTokensRepo struct {
	q dbtx
}

func (r *workflowTokensRepo) Create(ctx context.Context, t domain.WorkflowToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO workflow_tokens (id, fingerprint, purpose, owner_id, tenant_id, expires_at, used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Fingerprint, string(t.Purpose), t.OwnerID, mapStringNull(t.TenantID),
		t.ExpiresAt, mapOptionalTime(t.UsedAt), t.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *workflowTokensRepo) GetByFingerprint(ctx context.Context, fingerprint string) (domain.WorkflowToken, error) {
	var (
		t        domain.WorkflowToken
		purpose  string
		tenantID sql.NullString
		usedAt   sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, fingerprint, purpose, owner_id, tenant_id, expires_at, used_at, created_at
		FROM workflow_tokens WHERE fingerprint = ?`, fingerprint,
	).Scan(&t.ID, &t.Fingerprint, &purpose, &t.OwnerID, &tenantID, &t.ExpiresAt, &usedAt, &t.CreatedAt)
	if err != nil {
		return domain.WorkflowToken{}, mapNotFound(err)
	}
	t.Purpose = domain.TokenPurpose(purpose)
	t.TenantID = mapNullString(tenantID)
	t.UsedAt = mapNullTimePtr(usedAt)
	return t, nil
}

func (r *workflowTokensRepo) DeleteUnusedByOwnerPurpose(ctx context.Context, ownerID string, purpose domain.TokenPurpose) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM workflow_tokens
		WHERE owner_id = ? AND purpose = ? AND used_at IS NULL`,
		ownerID, string(purpose))
	return err
}

func (r *workflowTokensRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM workflow_tokens WHERE id = ?`, id)
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

func (r *workflowTokensRepo) MarkUsed(ctx context.Context, id string, now time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE workflow_tokens SET used_at = ?
		WHERE id = ? AND used_at IS NULL`,
		now, id)
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

func (r *workflowTokensRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM workflow_tokens WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
