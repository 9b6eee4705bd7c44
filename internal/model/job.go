package model

import "time"

// User owns the videos it requested. Users are keyed by email.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`

	Videos []Video `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// Video is the artifact produced for one submitted PubMed identifier.
type Video struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID       *uint     `json:"user_id,omitempty" gorm:"index"`
	PubmedID     string    `json:"pubmed_id" gorm:"not null"`
	Status       JobStatus `json:"status" gorm:"type:varchar(20);not null;default:pending;index"`
	VideoURL     *string   `json:"video_url"`
	ErrorMessage *string   `json:"error_message" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time `json:"updated_at"`

	User *User `json:"-"`
	Job  *Job  `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// Job tracks the asynchronous work for exactly one Video.
type Job struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	VideoID   string    `json:"video_id" gorm:"type:varchar(36);not null;uniqueIndex"`
	Status    JobStatus `json:"status" gorm:"type:varchar(20);not null;default:pending;index"`
	Progress  int       `json:"progress" gorm:"not null;default:0"`
	TaskID    *string   `json:"task_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`

	Video *Video `json:"video,omitempty"`
}

func (User) TableName() string  { return "users" }
func (Video) TableName() string { return "videos" }
func (Job) TableName() string   { return "jobs" }

// JobUpdate is a partial patch applied by the lifecycle engine. Nil fields
// are left untouched.
type JobUpdate struct {
	Status       *JobStatus
	Progress     *int
	TaskID       *string
	VideoURL     *string
	ErrorMessage *string
}

// IsEmpty reports whether the patch carries no field at all.
func (u JobUpdate) IsEmpty() bool {
	return u.Status == nil && u.Progress == nil && u.TaskID == nil &&
		u.VideoURL == nil && u.ErrorMessage == nil
}

// Job task payload, shared by the dispatcher and the worker
type GenerateVideoPayload struct {
	JobID    string `json:"job_id"`
	PubmedID string `json:"pubmed_id"`
}

// GenerateVideoResult is written to the task result once the worker finishes
type GenerateVideoResult struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}

// StatusPtr and friends build JobUpdate fields inline.
func StatusPtr(s JobStatus) *JobStatus { return &s }

func IntPtr(i int) *int { return &i }

func StringPtr(s string) *string { return &s }
