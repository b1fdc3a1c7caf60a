package scheduledjob

import (
	"context"
	"time"
)

// Repository defines the interface for durable scheduled job access
type Repository interface {
	Create(ctx context.Context, job *ScheduledJob) error
	Get(ctx context.Context, id string) (*ScheduledJob, error)

	// ClaimDue atomically claims up to limit pending jobs with run_at <= now
	// for the given instance. A job claimed longer ago than the lease is
	// considered abandoned and may be re-claimed.
	ClaimDue(ctx context.Context, instanceID string, now time.Time, lease time.Duration, limit int) ([]*ScheduledJob, error)

	// Complete marks a claimed job as completed
	Complete(ctx context.Context, id string) error

	// Release returns a claimed job to pending so another poll can pick it up
	Release(ctx context.Context, id string) error

	// CancelPendingByCart cancels every pending job for a cart. Called when
	// a plan is replaced or the cart leaves the abandoned state.
	CancelPendingByCart(ctx context.Context, cartID string) error
}
