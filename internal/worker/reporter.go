package worker

import (
	"context"

	"github.com/hiddenhill/api/internal/events"
	"github.com/hiddenhill/api/internal/logger"
	"github.com/hiddenhill/api/internal/model"
	"github.com/hiddenhill/api/internal/service"
)

// ProgressReporter is the executor's write path for intermediate progress.
// Every report commits on its own and is then published to subscribers.
type ProgressReporter struct {
	jobs      *service.JobService
	publisher events.Publisher
}

// NewProgressReporter creates a reporter. publisher may be nil.
func NewProgressReporter(jobs *service.JobService, publisher events.Publisher) *ProgressReporter {
	return &ProgressReporter{
		jobs:      jobs,
		publisher: publisher,
	}
}

// Report records progress and, when given, a new status for the job
func (r *ProgressReporter) Report(ctx context.Context, jobID string, progress int, status *model.JobStatus) error {
	job, err := r.jobs.UpdateJob(ctx, jobID, model.JobUpdate{
		Status:   status,
		Progress: &progress,
	})
	if err != nil {
		return err
	}
	r.publish(ctx, job)
	return nil
}

// publish logs and swallows delivery errors.
func (r *ProgressReporter) publish(ctx context.Context, job *model.Job) {
	if r.publisher == nil || job == nil {
		return
	}
	if err := r.publisher.Publish(ctx, model.NewProgressEvent(job)); err != nil {
		logger.Warnf("Failed to publish progress for job %s: %v", job.ID, err)
	}
}
