package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/hiddenhill/api/internal/config"
	"github.com/hiddenhill/api/internal/model"
)

const (
	TaskTypeGenerateVideo = "videos:generate"
	TaskTypeReapStale     = "jobs:reap"
)

// Dispatcher hands a job to the background executor and returns the
// broker's task handle.
type Dispatcher interface {
	Enqueue(ctx context.Context, jobID, pubmedID string) (string, error)
}

// AsynqDispatcher enqueues generate tasks on asynq
type AsynqDispatcher struct {
	client    *asynq.Client
	queue     string
	maxRetry  int
	retention time.Duration
	timeout   time.Duration
}

func NewAsynqDispatcher(client *asynq.Client, cfg config.QueueConfig) *AsynqDispatcher {
	timeout := cfg.EnqueueTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	return &AsynqDispatcher{
		client:    client,
		queue:     cfg.DefaultQueue,
		maxRetry:  cfg.MaxRetry,
		retention: cfg.Retention,
		timeout:   timeout,
	}
}

// Enqueue publishes the task. A broker that refuses or does not answer
// within the enqueue timeout yields ErrDispatchUnavailable.
func (d *AsynqDispatcher) Enqueue(ctx context.Context, jobID, pubmedID string) (string, error) {
	task, err := NewGenerateVideoTask(jobID, pubmedID)
	if err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}

	opts := []asynq.Option{
		asynq.Queue(d.queue),
		asynq.MaxRetry(d.maxRetry),
	}
	if d.retention > 0 {
		opts = append(opts, asynq.Retention(d.retention))
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	info, err := d.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDispatchUnavailable, err)
	}
	return info.ID, nil
}

// NewGenerateVideoTask builds the task consumed by the video worker
func NewGenerateVideoTask(jobID, pubmedID string) (*asynq.Task, error) {
	data, err := json.Marshal(model.GenerateVideoPayload{
		JobID:    jobID,
		PubmedID: pubmedID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGenerateVideo, data), nil
}

// ParseGenerateVideoTask decodes a generate task payload
func ParseGenerateVideoTask(t *asynq.Task) (model.GenerateVideoPayload, error) {
	var payload model.GenerateVideoPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	if payload.JobID == "" {
		return payload, fmt.Errorf("%w: task payload has no job_id", ErrValidation)
	}
	return payload, nil
}
