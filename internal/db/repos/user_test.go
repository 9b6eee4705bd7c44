package repos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/hiddenhill/api/internal/model"
)

type UserRepositoryTestSuite struct {
	DBRepositoryTestSuite
}

func TestUserRepository(t *testing.T) {
	suite.Run(t, new(UserRepositoryTestSuite))
}

func (s *UserRepositoryTestSuite) TestGetOrCreateIsIdempotent() {
	first, err := s.userRepo.GetOrCreate(s.ctx, "reader@example.com")
	s.Require().NoError(err)
	s.NotZero(first.ID)

	second, err := s.userRepo.GetOrCreate(s.ctx, "reader@example.com")
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)

	var count int64
	s.Require().NoError(s.db.Model(&model.User{}).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *UserRepositoryTestSuite) TestDeleteCascades() {
	user, err := s.userRepo.GetOrCreate(s.ctx, "owner@example.com")
	s.Require().NoError(err)
	owned := s.createTestJob("PMC8", &user.ID)
	other := s.createTestJob("PMC9", nil)

	s.Require().NoError(s.userRepo.Delete(s.ctx, user.ID))

	_, err = s.jobRepo.GetByID(s.ctx, owned.ID)
	s.ErrorIs(err, gorm.ErrRecordNotFound)
	var videos int64
	s.Require().NoError(s.db.Model(&model.Video{}).Where("id = ?", owned.VideoID).Count(&videos).Error)
	s.Zero(videos)

	_, err = s.jobRepo.GetByID(s.ctx, other.ID)
	s.NoError(err)
}

func (s *UserRepositoryTestSuite) TestDeleteUnknown() {
	err := s.userRepo.Delete(s.ctx, 4242)
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (s *UserRepositoryTestSuite) TestVideosListNewestFirst() {
	user, err := s.userRepo.GetOrCreate(s.ctx, "lister@example.com")
	s.Require().NoError(err)
	older := s.createTestJob("PMC10", &user.ID)
	newer := s.createTestJob("PMC11", &user.ID)
	s.Require().NoError(s.db.Model(&model.Video{}).Where("id = ?", older.VideoID).
		UpdateColumn("created_at", time.Now().Add(-time.Minute)).Error)

	videos, err := s.videoRepo.List(s.ctx, 50)
	s.Require().NoError(err)
	s.Require().Len(videos, 2)
	s.Equal(newer.VideoID, videos[0].ID)

	limited, err := s.videoRepo.List(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(limited, 1)

	owned, err := s.videoRepo.ListByUser(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Len(owned, 2)
}
