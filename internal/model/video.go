package model

import "time"

// VideoGenerateRequest represents the request to generate a video
type VideoGenerateRequest struct {
	PubmedID  string `json:"pubmed_id" validate:"required,min=3"`
	UserEmail string `json:"user_email,omitempty" validate:"omitempty,email"`
}

// JobCreateResponse represents the response after a job was accepted
type JobCreateResponse struct {
	JobID   string    `json:"job_id"`
	VideoID string    `json:"video_id"`
	Status  JobStatus `json:"status"`
}

// VideoMetadata represents the video part of a status response
type VideoMetadata struct {
	ID           string    `json:"id"`
	PubmedID     string    `json:"pubmed_id"`
	Status       JobStatus `json:"status"`
	VideoURL     *string   `json:"video_url"`
	ErrorMessage *string   `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// JobStatusResponse represents the response for job status
type JobStatusResponse struct {
	JobID    string         `json:"job_id"`
	Status   JobStatus      `json:"status"`
	Progress int            `json:"progress"`
	Video    *VideoMetadata `json:"video"`
}

// VideoListResponse represents the response for the recent videos listing
type VideoListResponse struct {
	Videos []VideoMetadata `json:"videos"`
	Count  int             `json:"count"`
}

// NewVideoMetadata converts a stored video into its API shape.
func NewVideoMetadata(v *Video) *VideoMetadata {
	if v == nil {
		return nil
	}
	return &VideoMetadata{
		ID:           v.ID,
		PubmedID:     v.PubmedID,
		Status:       v.Status,
		VideoURL:     v.VideoURL,
		ErrorMessage: v.ErrorMessage,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

// NewJobStatusResponse converts a stored job (with its video) into its API shape.
func NewJobStatusResponse(j *Job) JobStatusResponse {
	return JobStatusResponse{
		JobID:    j.ID,
		Status:   j.Status,
		Progress: j.Progress,
		Video:    NewVideoMetadata(j.Video),
	}
}

// HealthResponse represents the detailed health probe
type HealthResponse struct {
	API        string `json:"api"`
	Redis      bool   `json:"redis"`
	WorkerPing bool   `json:"worker_ping"`
}
