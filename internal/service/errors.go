package service

import "errors"

var (
	// ErrValidation marks input or patches that break a record invariant.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("not found")
	// ErrNotReady is returned when a download is requested before the
	// video is completed.
	ErrNotReady = errors.New("video not ready")
	// ErrDispatchUnavailable is returned when the broker could not accept
	// the task in time.
	ErrDispatchUnavailable = errors.New("dispatch unavailable")
	// ErrInvalidTransition is returned for status changes outside the
	// lifecycle graph.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrJobFinalized is returned for any update to a completed or failed job.
	ErrJobFinalized = errors.New("job already finalized")
	// ErrTaskIDConflict is returned when a job already carries a different
	// task id.
	ErrTaskIDConflict = errors.New("task id already recorded")
)
