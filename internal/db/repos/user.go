package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/hiddenhill/api/internal/model"
)

// UserRepository handles database operations for user entities
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByEmail retrieves a user by email.
// Returns gorm.ErrRecordNotFound (wrapped) if the user doesn't exist.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetOrCreate returns the user with the given email, creating it when
// missing. Concurrent callers racing on the same email end up with the same
// row.
func (r *UserRepository) GetOrCreate(ctx context.Context, email string) (*model.User, error) {
	user, err := r.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = &model.User{Email: email}
	err = r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return r.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Delete removes a user together with its videos and their jobs
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		videoIDs := tx.Model(&model.Video{}).Select("id").Where("user_id = ?", id)
		if err := tx.Where("video_id IN (?)", videoIDs).Delete(&model.Job{}).Error; err != nil {
			return fmt.Errorf("failed to delete jobs: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.Video{}).Error; err != nil {
			return fmt.Errorf("failed to delete videos: %w", err)
		}
		res := tx.Delete(&model.User{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user not found: %w", gorm.ErrRecordNotFound)
		}
		return nil
	})
}
