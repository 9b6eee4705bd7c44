package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/hiddenhill/api/internal/logger"
	"github.com/hiddenhill/api/internal/model"
	"github.com/hiddenhill/api/internal/service"
)

// Progress checkpoints of the generate task
const (
	ProgressStarted    = 5
	ProgressGenerating = 25
	ProgressFinalizing = 90
	ProgressDone       = 100
)

// failTimeout bounds the write that records a failure once the task context
// is gone.
const failTimeout = 5 * time.Second

// Generator produces the video for a document and returns its location
type Generator interface {
	Generate(ctx context.Context, pubmedID string) (string, error)
}

// PlaceholderGenerator returns a fixed location without doing any work
type PlaceholderGenerator struct {
	URL string
}

func (g PlaceholderGenerator) Generate(context.Context, string) (string, error) {
	if g.URL == "" {
		return "", errors.New("placeholder url not configured")
	}
	return g.URL, nil
}

// VideoWorker processes generate tasks
type VideoWorker struct {
	jobs      *service.JobService
	reporter  *ProgressReporter
	generator Generator
}

// NewVideoWorker creates a new video worker
func NewVideoWorker(jobs *service.JobService, reporter *ProgressReporter, generator Generator) *VideoWorker {
	return &VideoWorker{
		jobs:      jobs,
		reporter:  reporter,
		generator: generator,
	}
}

// ProcessTask handles generate task processing
func (w *VideoWorker) ProcessTask(ctx context.Context, t *asynq.Task) (err error) {
	payload, err := service.ParseGenerateVideoTask(t)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	jobID := payload.JobID

	job, err := w.jobs.GetJob(ctx, jobID)
	if errors.Is(err, service.ErrNotFound) {
		logger.Warnf("Dropping task for unknown job %s", jobID)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	if job.Status.IsFinal() {
		logger.InfoWithFields("Job already finished, skipping redelivered task", map[string]interface{}{
			"job_id": jobID,
			"status": job.Status,
		})
		return nil
	}

	taskID, _ := asynq.GetTaskID(ctx)
	if job.TaskID != nil && *job.TaskID != taskID {
		taskID = ""
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while generating video: %v", r)
			w.failJob(ctx, jobID, err)
		}
	}()

	logger.InfoWithFields("Starting video job", map[string]interface{}{
		"job_id":    jobID,
		"pubmed_id": payload.PubmedID,
		"task_id":   taskID,
	})

	if err := w.process(ctx, jobID, payload.PubmedID, taskID); err != nil {
		w.failJob(ctx, jobID, err)
		w.writeResult(t, jobID, model.JobStatusFailed)
		return err
	}

	w.writeResult(t, jobID, model.JobStatusCompleted)
	logger.InfoWithFields("Video job completed", map[string]interface{}{"job_id": jobID})
	return nil
}

func (w *VideoWorker) process(ctx context.Context, jobID, pubmedID, taskID string) error {
	upd := model.JobUpdate{
		Status:   model.StatusPtr(model.JobStatusProcessing),
		Progress: model.IntPtr(ProgressStarted),
	}
	if taskID != "" {
		upd.TaskID = &taskID
	}
	job, err := w.jobs.UpdateJob(ctx, jobID, upd)
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}
	w.reporter.publish(ctx, job)

	if err := w.reporter.Report(ctx, jobID, ProgressGenerating, nil); err != nil {
		return fmt.Errorf("failed to report progress: %w", err)
	}

	videoURL, err := w.generator.Generate(ctx, pubmedID)
	if err != nil {
		return fmt.Errorf("video generation failed: %w", err)
	}

	if err := w.reporter.Report(ctx, jobID, ProgressFinalizing, nil); err != nil {
		return fmt.Errorf("failed to report progress: %w", err)
	}

	job, err = w.jobs.UpdateJob(ctx, jobID, model.JobUpdate{
		Status:   model.StatusPtr(model.JobStatusCompleted),
		Progress: model.IntPtr(ProgressDone),
		VideoURL: &videoURL,
	})
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	w.reporter.publish(ctx, job)
	return nil
}

// failJob records the failure even when ctx was cancelled by a task timeout
// or a shutdown.
func (w *VideoWorker) failJob(ctx context.Context, jobID string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failTimeout)
	defer cancel()

	msg := cause.Error()
	job, err := w.jobs.UpdateJob(ctx, jobID, model.JobUpdate{
		Status:       model.StatusPtr(model.JobStatusFailed),
		ErrorMessage: &msg,
	})
	if err != nil {
		logger.ErrorWithFields("Failed to mark job as failed", map[string]interface{}{
			"job_id": jobID,
			"cause":  msg,
			"error":  err.Error(),
		})
		return
	}
	logger.ErrorWithFields("Video job failed", map[string]interface{}{
		"job_id": jobID,
		"error":  msg,
	})
	w.reporter.publish(ctx, job)
}

func (w *VideoWorker) writeResult(t *asynq.Task, jobID string, status model.JobStatus) {
	rw := t.ResultWriter()
	if rw == nil {
		return
	}
	data, err := json.Marshal(model.GenerateVideoResult{JobID: jobID, Status: status})
	if err != nil {
		return
	}
	if _, err := rw.Write(data); err != nil {
		logger.Warnf("Failed to write result for job %s: %v", jobID, err)
	}
}
