package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/storage"
)

var avatarExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

type ProfileService struct {
	DB      *gorm.DB
	Storage *storage.Store
	Logger  logger.Interface
}

func NewProfileService(db *gorm.DB, st *storage.Store, log logger.Interface) *ProfileService {
	return &ProfileService{DB: db, Storage: st, Logger: log}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("profile not found")
		}
		return nil, err
	}
	return &user, nil
}

func (s *ProfileService) Update(ctx context.Context, userID string, req *dtos.UpdateProfileRequest) (*models.UserProfile, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			updates[col] = *v
		}
	}
	set("full_name", req.FullName)
	set("phone", req.Phone)
	set("location", req.Location)
	set("bio", req.Bio)
	set("job_title", req.JobTitle)
	set("linkedin_url", req.LinkedInURL)
	set("github_url", req.GitHubURL)
	set("website_url", req.WebsiteURL)
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.DB.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.Get(ctx, userID)
}

// UploadAvatar stores the image in the avatars bucket and points the profile at it.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID string, file *Upload) (*models.UserProfile, error) {
	if !avatarExtensions[fileExt(file.FileName)] {
		return nil, apperrors.NewValidationError("unsupported image type", file.FileName)
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	obj, err := s.Storage.Put(storage.BucketAvatars, userID, file.FileName, file.Reader)
	if err != nil {
		return nil, apperrors.NewBadRequestError("failed to store avatar", err.Error())
	}
	if err := s.DB.WithContext(ctx).Model(user).Update("avatar_url", obj.URL).Error; err != nil {
		_ = s.Storage.Delete(storage.BucketAvatars, obj.Key)
		return nil, fmt.Errorf("failed to save avatar url: %w", err)
	}
	user.AvatarURL = obj.URL
	return user, nil
}
