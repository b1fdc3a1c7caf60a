package scheduledjob

import (
	"time"

	"github.com/cartpulse/cartpulse/internal/types"
)

// ScheduledJob is a durable scheduled recovery attempt. Jobs live in the
// store, not in process memory, so pending attempts survive restarts and a
// claim/lease keyed by instance prevents duplicate execution across
// horizontally scaled workers.
type ScheduledJob struct {
	ID string `db:"id" json:"id"`

	CartID    string `db:"cart_id" json:"cart_id"`
	PlanID    string `db:"plan_id" json:"plan_id"`
	AttemptID string `db:"attempt_id" json:"attempt_id"`

	RunAt time.Time `db:"run_at" json:"run_at"`

	Status types.ScheduledJobStatus `db:"status" json:"status"`

	ClaimedBy string     `db:"claimed_by" json:"claimed_by"`
	ClaimedAt *time.Time `db:"claimed_at" json:"claimed_at"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// New creates a pending job for a plan attempt
func New(cartID, planID, attemptID string, runAt time.Time) *ScheduledJob {
	now := time.Now().UTC()
	return &ScheduledJob{
		ID:        types.GenerateUUIDWithPrefix(types.UUIDPrefixScheduledJob),
		CartID:    cartID,
		PlanID:    planID,
		AttemptID: attemptID,
		RunAt:     runAt,
		Status:    types.ScheduledJobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsDue reports whether the job should run at the given time
func (j *ScheduledJob) IsDue(now time.Time) bool {
	return j.Status == types.ScheduledJobStatusPending && !j.RunAt.After(now)
}
