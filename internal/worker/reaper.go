package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/hiddenhill/api/internal/logger"
	"github.com/hiddenhill/api/internal/service"
)

// Reaper fails jobs that stopped making progress, e.g. because the worker
// holding them died.
type Reaper struct {
	jobs       *service.JobService
	staleAfter time.Duration
	now        func() time.Time
}

func NewReaper(jobs *service.JobService, staleAfter time.Duration) *Reaper {
	return &Reaper{
		jobs:       jobs,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// NewReapTask builds the periodic sweep task
func NewReapTask() *asynq.Task {
	return asynq.NewTask(service.TaskTypeReapStale, nil)
}

// ProcessTask runs one sweep
func (r *Reaper) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	n, err := r.Sweep(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Warnf("Reaper failed %d stale job(s)", n)
	}
	return nil
}

// Sweep fails every non-final job idle for longer than staleAfter
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	return r.jobs.FailStale(ctx, r.now().Add(-r.staleAfter))
}
