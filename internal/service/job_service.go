package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hiddenhill/api/internal/db/repos"
	"github.com/hiddenhill/api/internal/logger"
	"github.com/hiddenhill/api/internal/model"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200

	// StaleJobMessage is recorded on jobs failed by the reaper.
	StaleJobMessage = "job timed out"
)

// JobService owns every write to jobs and their videos. Each call runs in
// its own store transaction; concurrent writers are serialised by the store.
type JobService struct {
	jobs   *repos.JobRepository
	videos *repos.VideoRepository
}

func NewJobService(jobs *repos.JobRepository, videos *repos.VideoRepository) *JobService {
	return &JobService{
		jobs:   jobs,
		videos: videos,
	}
}

// CreateJob creates a pending video and its pending job atomically
func (s *JobService) CreateJob(ctx context.Context, pubmedID string, user *model.User) (*model.Job, error) {
	pubmedID = strings.TrimSpace(pubmedID)
	if pubmedID == "" {
		return nil, fmt.Errorf("%w: pubmed_id must not be empty", ErrValidation)
	}

	video := &model.Video{
		ID:       uuid.New().String(),
		PubmedID: pubmedID,
		Status:   model.JobStatusPending,
	}
	if user != nil {
		video.UserID = &user.ID
	}
	job := &model.Job{
		ID:       uuid.New().String(),
		Status:   model.JobStatusPending,
		Progress: 0,
	}

	if err := s.jobs.Create(ctx, video, job); err != nil {
		return nil, err
	}

	logger.InfoWithFields("Job created", map[string]interface{}{
		"job_id":    job.ID,
		"video_id":  video.ID,
		"pubmed_id": pubmedID,
	})
	return job, nil
}

// UpdateJob applies a partial patch to the job and its video. Rejected
// patches leave both rows untouched.
func (s *JobService) UpdateJob(ctx context.Context, jobID string, upd model.JobUpdate) (*model.Job, error) {
	if upd.IsEmpty() {
		return nil, fmt.Errorf("%w: empty update for job %s", ErrValidation, jobID)
	}
	job, err := s.jobs.Update(ctx, jobID, func(j *model.Job) error {
		return applyUpdate(j, upd)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
		}
		return nil, err
	}
	return job, nil
}

// GetJob returns the job with its video loaded
func (s *JobService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
		}
		return nil, err
	}
	return job, nil
}

// ListVideos returns recent videos, newest first. A non-positive limit uses
// the default; larger limits are capped.
func (s *JobService) ListVideos(ctx context.Context, limit int) ([]model.Video, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.videos.List(ctx, limit)
}

// ListVideosByUser returns every video owned by the user, newest first
func (s *JobService) ListVideosByUser(ctx context.Context, userID uint) ([]model.Video, error) {
	return s.videos.ListByUser(ctx, userID)
}

// Stats returns the number of jobs per status
func (s *JobService) Stats(ctx context.Context) (map[model.JobStatus]int64, error) {
	return s.jobs.CountByStatus(ctx)
}

// FailStale marks every non-final job not written since cutoff as failed.
// Jobs that finish concurrently are skipped.
func (s *JobService) FailStale(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.jobs.ListStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, id := range ids {
		_, err := s.UpdateJob(ctx, id, model.JobUpdate{
			Status:       model.StatusPtr(model.JobStatusFailed),
			ErrorMessage: model.StringPtr(StaleJobMessage),
		})
		switch {
		case err == nil:
			failed++
		case errors.Is(err, ErrJobFinalized), errors.Is(err, ErrNotFound):
			continue
		default:
			return failed, fmt.Errorf("failed to reap job %s: %w", id, err)
		}
	}
	return failed, nil
}

// applyUpdate validates upd against the current state of j and applies it.
// j.Video must be loaded.
func applyUpdate(j *model.Job, upd model.JobUpdate) error {
	if j.Status.IsFinal() {
		return fmt.Errorf("%w: job %s is %s", ErrJobFinalized, j.ID, j.Status)
	}

	status := j.Status
	if upd.Status != nil {
		if !upd.Status.IsValid() {
			return fmt.Errorf("%w: unknown status %q", ErrValidation, *upd.Status)
		}
		if !j.Status.CanTransitionTo(*upd.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, *upd.Status)
		}
		status = *upd.Status
	}

	progress := j.Progress
	if upd.Progress != nil {
		if *upd.Progress < 0 || *upd.Progress > 100 {
			return fmt.Errorf("%w: progress %d out of range", ErrValidation, *upd.Progress)
		}
		progress = *upd.Progress
	} else if status == model.JobStatusCompleted {
		progress = 100
	}
	if progress == 100 && status != model.JobStatusCompleted {
		return fmt.Errorf("%w: progress 100 requires completed status", ErrValidation)
	}
	if status == model.JobStatusCompleted && progress != 100 {
		return fmt.Errorf("%w: completed job must report progress 100", ErrValidation)
	}

	taskID := j.TaskID
	if upd.TaskID != nil {
		if *upd.TaskID == "" {
			return fmt.Errorf("%w: task id must not be empty", ErrValidation)
		}
		if j.TaskID != nil && *j.TaskID != *upd.TaskID {
			return fmt.Errorf("%w: job %s has task %s", ErrTaskIDConflict, j.ID, *j.TaskID)
		}
		taskID = upd.TaskID
	}

	videoURL := j.Video.VideoURL
	if upd.VideoURL != nil {
		videoURL = upd.VideoURL
	}
	errorMessage := j.Video.ErrorMessage
	if upd.ErrorMessage != nil {
		errorMessage = upd.ErrorMessage
	}

	if status == model.JobStatusCompleted && (videoURL == nil || *videoURL == "") {
		return fmt.Errorf("%w: completed job requires a video url", ErrValidation)
	}
	if status == model.JobStatusFailed && (errorMessage == nil || *errorMessage == "") {
		return fmt.Errorf("%w: failed job requires an error message", ErrValidation)
	}

	j.Status = status
	j.Progress = progress
	j.TaskID = taskID
	j.Video.Status = status
	j.Video.VideoURL = videoURL
	j.Video.ErrorMessage = errorMessage
	return nil
}
