package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cartpulse/cartpulse/internal/config"
	"github.com/cartpulse/cartpulse/internal/domain/scheduledjob"
	"github.com/cartpulse/cartpulse/internal/logger"
	"github.com/cartpulse/cartpulse/internal/service"
	"github.com/cartpulse/cartpulse/internal/types"
)

// Scheduler drives the durable recovery schedule. It periodically claims due
// jobs from the store under a lease and executes them, and runs the
// abandonment sweep on its own interval. Jobs live in the store rather than
// in process memory, so a restart loses nothing and multiple instances share
// the work without double sends.
type Scheduler struct {
	logger   *logger.Logger
	cfg      config.SchedulerConfig
	jobs     scheduledjob.Repository
	recovery service.RecoveryService

	// instanceID marks claims in the store so a crashed peer's leases can
	// be told apart from our own
	instanceID string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(
	log *logger.Logger,
	cfg *config.Configuration,
	jobs scheduledjob.Repository,
	recovery service.RecoveryService,
) *Scheduler {
	hostname, _ := os.Hostname()
	return &Scheduler{
		logger:     log,
		cfg:        cfg.Scheduler,
		jobs:       jobs,
		recovery:   recovery,
		instanceID: hostname + "/" + types.GenerateUUIDWithPrefix("worker"),
	}
}

// Start launches the poll and sweep loops. It returns immediately.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go s.pollLoop(ctx)
	go s.sweepLoop(ctx)

	s.logger.Infow("scheduler started",
		"instance_id", s.instanceID,
		"poll_interval", s.cfg.PollInterval(),
		"sweep_interval", s.cfg.SweepInterval())
}

// Stop halts the loops and waits for in-flight jobs to finish
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Infow("scheduler stopped", "instance_id", s.instanceID)
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *Scheduler) pollOnce(ctx context.Context) {
	var claimed []*scheduledjob.ScheduledJob

	// transient claim failures retry with exponential backoff inside one
	// poll; persistent failure waits for the next tick
	operation := func() error {
		var err error
		claimed, err = s.jobs.ClaimDue(ctx, s.instanceID, time.Now().UTC(), s.cfg.Lease(), s.cfg.ClaimBatchSize)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		s.logger.Errorw("failed to claim due jobs", "error", err)
		return
	}
	if len(claimed) == 0 {
		return
	}

	s.logger.Debugw("claimed due jobs", "count", len(claimed))
	for _, job := range claimed {
		s.wg.Add(1)
		go func(job *scheduledjob.ScheduledJob) {
			defer s.wg.Done()
			s.execute(ctx, job)
		}(job)
	}
}

func (s *Scheduler) execute(ctx context.Context, job *scheduledjob.ScheduledJob) {
	if err := s.recovery.ExecuteAttempt(ctx, job); err != nil {
		s.logger.Errorw("recovery attempt failed, releasing job",
			"job_id", job.ID, "cart_id", job.CartID, "error", err)
		if releaseErr := s.jobs.Release(ctx, job.ID); releaseErr != nil {
			s.logger.Errorw("failed to release job",
				"job_id", job.ID, "error", releaseErr)
		}
	}
}

func (s *Scheduler) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.recovery.RunAbandonmentSweep(ctx); err != nil {
				s.logger.Errorw("abandonment sweep failed", "error", err)
			}
		}
	}
}
