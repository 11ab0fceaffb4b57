package sqlite

import (
	"context"

	"github.com/proefritapp/identity/internal/identity/domain"
)

type feedbackRepo struct {
	q dbtx
}

func (r *feedbackRepo) Create(ctx context.Context, f domain.Feedback) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO feedback (id, test_ride_id, tenant_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.TestRideID, f.TenantID, f.Rating, f.Comment, f.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *feedbackRepo) GetByTestRide(ctx context.Context, testRideID string) (domain.Feedback, error) {
	var f domain.Feedback
	err := r.q.QueryRowContext(ctx, `
		SELECT id, test_ride_id, tenant_id, rating, comment, created_at
		FROM feedback WHERE test_ride_id = ?`, testRideID,
	).Scan(&f.ID, &f.TestRideID, &f.TenantID, &f.Rating, &f.Comment, &f.CreatedAt)
	if err != nil {
		return domain.Feedback{}, mapNotFound(err)
	}
	return f, nil
}

func (r *feedbackRepo) ListByTenant(ctx context.Context, tenantID string) ([]domain.Feedback, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, test_ride_id, tenant_id, rating, comment, created_at
		FROM feedback WHERE tenant_id = ? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Feedback
	for rows.Next() {
		var f domain.Feedback
		if err := rows.Scan(&f.ID, &f.TestRideID, &f.TenantID, &f.Rating, &f.Comment, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
