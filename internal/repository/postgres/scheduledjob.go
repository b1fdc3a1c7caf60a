package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cartpulse/cartpulse/internal/domain/scheduledjob"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/logger"
	"github.com/cartpulse/cartpulse/internal/postgres"
	"github.com/cartpulse/cartpulse/internal/types"
)

type scheduledJobRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewScheduledJobRepository creates a postgres backed scheduled job repository
func NewScheduledJobRepository(db *postgres.DB, logger *logger.Logger) scheduledjob.Repository {
	return &scheduledJobRepository{db: db, logger: logger}
}

const jobColumns = `id, cart_id, plan_id, attempt_id, run_at, status, claimed_by, claimed_at, created_at, updated_at`

func scanJob(scan func(...interface{}) error) (*scheduledjob.ScheduledJob, error) {
	var j scheduledjob.ScheduledJob
	var claimedBy sql.NullString

	if err := scan(
		&j.ID,
		&j.CartID,
		&j.PlanID,
		&j.AttemptID,
		&j.RunAt,
		&j.Status,
		&claimedBy,
		&j.ClaimedAt,
		&j.CreatedAt,
		&j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	j.ClaimedBy = claimedBy.String
	return &j, nil
}

func (r *scheduledJobRepository) Create(ctx context.Context, job *scheduledjob.ScheduledJob) error {
	query := `
	INSERT INTO scheduled_jobs (` + jobColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)
	`

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		job.ID,
		job.CartID,
		job.PlanID,
		job.AttemptID,
		job.RunAt,
		job.Status,
		job.ClaimedBy,
		job.ClaimedAt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to insert scheduled job").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *scheduledJobRepository) Get(ctx context.Context, id string) (*scheduledjob.ScheduledJob, error) {
	row := r.db.GetQuerier(ctx).QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM scheduled_jobs WHERE id = $1`, id)

	j, err := scanJob(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ierr.NewError("scheduled job not found").
			WithHintf("No scheduled job with id %s", id).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch scheduled job").
			Mark(ierr.ErrDatabase)
	}
	return j, nil
}

// ClaimDue claims due pending jobs and stale claims whose lease expired.
// SKIP LOCKED keeps concurrently polling instances from blocking each other.
func (r *scheduledJobRepository) ClaimDue(ctx context.Context, instanceID string, now time.Time, lease time.Duration, limit int) ([]*scheduledjob.ScheduledJob, error) {
	query := `
	UPDATE scheduled_jobs SET
		status = $1, claimed_by = $2, claimed_at = $3, updated_at = $3
	WHERE id IN (
		SELECT id FROM scheduled_jobs
		WHERE run_at <= $3
		  AND (status = $4 OR (status = $1 AND claimed_at < $5))
		ORDER BY run_at
		LIMIT $6
		FOR UPDATE SKIP LOCKED
	)
	RETURNING ` + jobColumns + `
	`

	rows, err := r.db.GetQuerier(ctx).QueryContext(ctx, query,
		types.ScheduledJobStatusClaimed,
		instanceID,
		now,
		types.ScheduledJobStatusPending,
		now.Add(-lease),
		limit,
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to claim due jobs").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var jobs []*scheduledjob.ScheduledJob
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan claimed job").
				Mark(ierr.ErrDatabase)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate claimed jobs").
			Mark(ierr.ErrDatabase)
	}
	return jobs, nil
}

func (r *scheduledJobRepository) Complete(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, types.ScheduledJobStatusCompleted)
}

func (r *scheduledJobRepository) Release(ctx context.Context, id string) error {
	query := `
	UPDATE scheduled_jobs SET
		status = $2, claimed_by = NULL, claimed_at = NULL, updated_at = NOW()
	WHERE id = $1
	`
	if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, id, types.ScheduledJobStatusPending); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to release scheduled job").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *scheduledJobRepository) CancelPendingByCart(ctx context.Context, cartID string) error {
	query := `
	UPDATE scheduled_jobs SET status = $2, updated_at = NOW()
	WHERE cart_id = $1 AND status = $3
	`
	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		cartID, types.ScheduledJobStatusCancelled, types.ScheduledJobStatusPending)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to cancel pending jobs for cart").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *scheduledJobRepository) setStatus(ctx context.Context, id string, status types.ScheduledJobStatus) error {
	res, err := r.db.GetQuerier(ctx).ExecContext(ctx,
		`UPDATE scheduled_jobs SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update scheduled job status").
			Mark(ierr.ErrDatabase)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ierr.NewError("scheduled job not found").
			WithHintf("No scheduled job with id %s", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
