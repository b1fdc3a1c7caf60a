package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/cartpulse/cartpulse/internal/domain/scheduledjob"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

// InMemoryScheduledJobStore implements scheduledjob.Repository with the same
// claim semantics as the postgres store: a due pending job or a claim older
// than the lease is claimable, everything else is not.
type InMemoryScheduledJobStore struct {
	*InMemoryStore[*scheduledjob.ScheduledJob]
}

// NewInMemoryScheduledJobStore creates a new in-memory scheduled job store
func NewInMemoryScheduledJobStore() *InMemoryScheduledJobStore {
	return &InMemoryScheduledJobStore{
		InMemoryStore: NewInMemoryStore[*scheduledjob.ScheduledJob](),
	}
}

func copyJob(j *scheduledjob.ScheduledJob) *scheduledjob.ScheduledJob {
	cp := *j
	if j.ClaimedAt != nil {
		t := *j.ClaimedAt
		cp.ClaimedAt = &t
	}
	return &cp
}

func (s *InMemoryScheduledJobStore) Create(ctx context.Context, job *scheduledjob.ScheduledJob) error {
	if err := s.InMemoryStore.Create(ctx, job.ID, copyJob(job)); err != nil {
		return ierr.NewError("job already exists").
			WithHintf("Scheduled job %s already exists", job.ID).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (s *InMemoryScheduledJobStore) Get(ctx context.Context, id string) (*scheduledjob.ScheduledJob, error) {
	job, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("job not found").
			WithHintf("Scheduled job %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	return copyJob(job), nil
}

func (s *InMemoryScheduledJobStore) ClaimDue(ctx context.Context, instanceID string, now time.Time, lease time.Duration, limit int) ([]*scheduledjob.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*scheduledjob.ScheduledJob
	for _, job := range s.items {
		if job.RunAt.After(now) {
			continue
		}
		claimable := job.Status == types.ScheduledJobStatusPending ||
			(job.Status == types.ScheduledJobStatusClaimed &&
				job.ClaimedAt != nil && job.ClaimedAt.Before(now.Add(-lease)))
		if claimable {
			due = append(due, job)
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*scheduledjob.ScheduledJob, 0, len(due))
	for _, job := range due {
		t := now
		job.Status = types.ScheduledJobStatusClaimed
		job.ClaimedBy = instanceID
		job.ClaimedAt = &t
		job.UpdatedAt = now
		claimed = append(claimed, copyJob(job))
	}
	return claimed, nil
}

func (s *InMemoryScheduledJobStore) Complete(ctx context.Context, id string) error {
	return s.setStatus(id, types.ScheduledJobStatusCompleted)
}

func (s *InMemoryScheduledJobStore) Release(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.items[id]
	if !exists {
		return ierr.NewError("job not found").
			WithHintf("Scheduled job %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	job.Status = types.ScheduledJobStatusPending
	job.ClaimedBy = ""
	job.ClaimedAt = nil
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryScheduledJobStore) CancelPendingByCart(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.items {
		if job.CartID == cartID && job.Status == types.ScheduledJobStatusPending {
			job.Status = types.ScheduledJobStatusCancelled
			job.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *InMemoryScheduledJobStore) setStatus(id string, status types.ScheduledJobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.items[id]
	if !exists {
		return ierr.NewError("job not found").
			WithHintf("Scheduled job %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// JobsByStatus returns the jobs currently in the given status, ordered by
// run time
func (s *InMemoryScheduledJobStore) JobsByStatus(status types.ScheduledJobStatus) []*scheduledjob.ScheduledJob {
	jobs, _ := s.List(context.Background(),
		func(_ context.Context, j *scheduledjob.ScheduledJob) bool { return j.Status == status },
		func(i, j *scheduledjob.ScheduledJob) bool { return i.RunAt.Before(j.RunAt) },
	)
	return jobs
}
