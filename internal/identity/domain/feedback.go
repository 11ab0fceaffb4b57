package domain

import "time"

// Feedback is a customer's post-drive review of one test ride. At most one
// feedback record exists per test ride, enforced both by the unique index
// and by the token redemption path.
type Feedback struct {
	ID         string
	TestRideID string
	TenantID   string
	Rating     int // 1..5
	Comment    string
	CreatedAt  time.Time
}
