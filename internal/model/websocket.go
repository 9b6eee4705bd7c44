package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// ProgressEvent is published after every committed progress report and
// relayed verbatim to websocket subscribers of the job.
type ProgressEvent struct {
	Type         string    `json:"type"`
	JobID        string    `json:"job_id"`
	Status       JobStatus `json:"status"`
	Progress     int       `json:"progress"`
	VideoURL     *string   `json:"video_url,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
}

// NewProgressEvent builds the event for the current state of j.
func NewProgressEvent(j *Job) ProgressEvent {
	ev := ProgressEvent{
		Type:     WSMessageTypeProgress,
		JobID:    j.ID,
		Status:   j.Status,
		Progress: j.Progress,
	}
	switch j.Status {
	case JobStatusCompleted:
		ev.Type = WSMessageTypeComplete
	case JobStatusFailed:
		ev.Type = WSMessageTypeError
	}
	if j.Video != nil {
		ev.VideoURL = j.Video.VideoURL
		ev.ErrorMessage = j.Video.ErrorMessage
	}
	return ev
}
