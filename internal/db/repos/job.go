package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hiddenhill/api/internal/db"
	"github.com/hiddenhill/api/internal/model"
)

// JobRepository handles database operations for jobs and the videos they drive
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts the video and its job in a single transaction
func (r *JobRepository) Create(ctx context.Context, video *model.Video, job *model.Job) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(video).Error; err != nil {
			return fmt.Errorf("failed to create video: %w", err)
		}
		job.VideoID = video.ID
		if err := tx.Omit(clause.Associations).Create(job).Error; err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}
		job.Video = video
		return nil
	})
}

// GetByID retrieves a job with its video.
// Returns gorm.ErrRecordNotFound (wrapped) if the job doesn't exist.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	err := r.db.WithContext(ctx).Preload("Video").Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// Update loads the job and its video inside a transaction, lets mutate
// change them and writes both rows back. When mutate returns an error the
// transaction is rolled back and nothing is written.
func (r *JobRepository) Update(ctx context.Context, id string, mutate func(job *model.Job) error) (*model.Job, error) {
	var job model.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ?", id).First(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("job not found: %w", err)
			}
			return fmt.Errorf("failed to get job: %w", err)
		}

		var video model.Video
		if err := forUpdate(tx).Where("id = ?", job.VideoID).First(&video).Error; err != nil {
			return fmt.Errorf("failed to get video %s: %w", job.VideoID, err)
		}
		job.Video = &video

		if err := mutate(&job); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Save(&job).Error; err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		if err := tx.Omit(clause.Associations).Save(job.Video).Error; err != nil {
			return fmt.Errorf("failed to save video: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// forUpdate adds a row lock where the dialect supports one. SQLite already
// serialises writers.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if db.IsPostgres(tx) {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// ListStale returns the ids of non-final jobs not written since cutoff
func (r *JobRepository) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Job{}).
		Where("status NOT IN ?", []model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed}).
		Where("updated_at < ?", cutoff).
		Order("updated_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	return ids, nil
}

// CountByStatus returns the number of jobs per status
func (r *JobRepository) CountByStatus(ctx context.Context) (map[model.JobStatus]int64, error) {
	var rows []struct {
		Status model.JobStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&model.Job{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	counts := make(map[model.JobStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
