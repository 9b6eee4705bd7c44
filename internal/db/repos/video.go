package repos

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/hiddenhill/api/internal/model"
)

// VideoRepository handles read access to videos
type VideoRepository struct {
	db *gorm.DB
}

// NewVideoRepository creates a new video repository instance
func NewVideoRepository(db *gorm.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// List returns the most recently created videos first
func (r *VideoRepository) List(ctx context.Context, limit int) ([]model.Video, error) {
	var videos []model.Video
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	return videos, nil
}

// ListByUser returns the videos owned by a user, newest first
func (r *VideoRepository) ListByUser(ctx context.Context, userID uint) ([]model.Video, error) {
	var videos []model.Video
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list videos for user %d: %w", userID, err)
	}
	return videos, nil
}
