package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hiddenhill/api/internal/client"
	"github.com/hiddenhill/api/internal/db/repos"
	"github.com/hiddenhill/api/internal/logger"
	"github.com/hiddenhill/api/internal/model"
)

// DispatchFailedMessage is the only detail recorded and reported when the
// broker could not take a job.
const DispatchFailedMessage = "unable to enqueue job"

// VideoService runs the request-side flow: create, dispatch, read back.
type VideoService struct {
	jobs       *JobService
	users      *repos.UserRepository
	dispatcher Dispatcher
	signer     client.URLSigner
}

// NewVideoService creates the service. signer may be nil, in which case
// stored URLs are returned as they are.
func NewVideoService(jobs *JobService, users *repos.UserRepository, dispatcher Dispatcher, signer client.URLSigner) *VideoService {
	return &VideoService{
		jobs:       jobs,
		users:      users,
		dispatcher: dispatcher,
		signer:     signer,
	}
}

// Generate creates the video and job, dispatches it and records the outcome
func (s *VideoService) Generate(ctx context.Context, req *model.VideoGenerateRequest) (*model.JobCreateResponse, error) {
	pubmedID := strings.TrimSpace(req.PubmedID)
	if pubmedID == "" {
		return nil, fmt.Errorf("%w: pubmed_id must not be empty", ErrValidation)
	}

	var user *model.User
	if email := strings.TrimSpace(req.UserEmail); email != "" {
		var err error
		user, err = s.users.GetOrCreate(ctx, email)
		if err != nil {
			return nil, err
		}
	}

	job, err := s.jobs.CreateJob(ctx, pubmedID, user)
	if err != nil {
		return nil, err
	}

	taskID, err := s.dispatcher.Enqueue(ctx, job.ID, pubmedID)
	if err != nil {
		logger.ErrorWithFields("Failed to enqueue job", map[string]interface{}{
			"job_id": job.ID,
			"error":  err.Error(),
		})
		if _, uerr := s.jobs.UpdateJob(ctx, job.ID, model.JobUpdate{
			Status:       model.StatusPtr(model.JobStatusFailed),
			ErrorMessage: model.StringPtr(DispatchFailedMessage),
		}); uerr != nil {
			logger.Errorf("Failed to mark job %s as failed: %v", job.ID, uerr)
		}
		return nil, fmt.Errorf("%w: %s", ErrDispatchUnavailable, DispatchFailedMessage)
	}

	_, err = s.jobs.UpdateJob(ctx, job.ID, model.JobUpdate{
		Status: model.StatusPtr(model.JobStatusQueued),
		TaskID: &taskID,
	})
	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrJobFinalized) {
		// The worker picked the task up before we got here; keep its status
		// and only make sure the task id is on record.
		if _, terr := s.jobs.UpdateJob(ctx, job.ID, model.JobUpdate{TaskID: &taskID}); terr != nil &&
			!errors.Is(terr, ErrJobFinalized) {
			logger.Warnf("Failed to record task id for job %s: %v", job.ID, terr)
		}
		err = nil
	}
	if err != nil {
		return nil, err
	}

	return &model.JobCreateResponse{
		JobID:   job.ID,
		VideoID: job.VideoID,
		Status:  model.JobStatusQueued,
	}, nil
}

// GetStatus returns the job with its video
func (s *VideoService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	resp := model.NewJobStatusResponse(job)
	return &resp, nil
}

// GetDownloadURL returns where the finished video can be fetched
func (s *VideoService) GetDownloadURL(ctx context.Context, jobID string) (string, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Video == nil {
		return "", fmt.Errorf("%w: job %s has no video", ErrNotFound, jobID)
	}
	if job.Video.Status != model.JobStatusCompleted || job.Video.VideoURL == nil || *job.Video.VideoURL == "" {
		return "", fmt.Errorf("%w: video %s is %s", ErrNotReady, job.Video.ID, job.Video.Status)
	}

	location := *job.Video.VideoURL
	if s.signer == nil {
		return location, nil
	}
	signed, err := s.signer.SignURL(ctx, location)
	if err != nil {
		logger.Warnf("Failed to sign %s, using stored url: %v", location, err)
		return location, nil
	}
	return signed, nil
}

// ListVideos returns recent videos in their API shape
func (s *VideoService) ListVideos(ctx context.Context, limit int) (*model.VideoListResponse, error) {
	videos, err := s.jobs.ListVideos(ctx, limit)
	if err != nil {
		return nil, err
	}
	resp := &model.VideoListResponse{
		Videos: make([]model.VideoMetadata, 0, len(videos)),
		Count:  len(videos),
	}
	for i := range videos {
		resp.Videos = append(resp.Videos, *model.NewVideoMetadata(&videos[i]))
	}
	return resp, nil
}
