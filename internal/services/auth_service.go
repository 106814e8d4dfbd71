package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/auth"
	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/storage"
	"github.com/justsurfingit/jobtrackr/internal/store"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}

// Upload is a file handed to a service by the transport layer.
type Upload struct {
	FileName    string
	ContentType string
	Reader      io.Reader
}

type AuthService struct {
	DB      *gorm.DB
	Hasher  PasswordHasher
	JWT     *auth.JWTService
	Storage *storage.Store
	Logger  logger.Interface
	now     func() time.Time
}

func NewAuthService(db *gorm.DB, hasher PasswordHasher, jwt *auth.JWTService, st *storage.Store, log logger.Interface) *AuthService {
	return &AuthService{DB: db, Hasher: hasher, JWT: jwt, Storage: st, Logger: log, now: time.Now}
}

// Register creates the profile, a free subscription and the current usage row in one
// transaction. A failing avatar upload does not fail the registration.
func (s *AuthService) Register(ctx context.Context, req *dtos.RegisterRequest, avatar *Upload) (*dtos.AuthResponse, error) {
	if req.Password != req.ConfirmPassword {
		return nil, apperrors.NewValidationError("passwords do not match")
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, apperrors.NewValidationError("email is required")
	}

	hash, err := s.Hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.UserProfile{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         models.RoleUser,
		Status:       models.UserStatusActive,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.UserProfile{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperrors.NewConflictError("email already registered")
		}
		if err := tx.Create(user).Error; err != nil {
			if apperrors.IsDuplicateError(err) {
				return apperrors.NewConflictError("email already registered")
			}
			return fmt.Errorf("failed to create profile: %w", err)
		}
		return s.provisionAccount(tx, user.ID)
	})
	if err != nil {
		return nil, err
	}

	if avatar != nil && s.Storage != nil {
		s.attachAvatar(ctx, user, avatar)
	}

	s.Logger.Infow("user registered", "user_id", user.ID)
	return s.issue(user)
}

// provisionAccount gives a new user the free plan and an empty usage period.
func (s *AuthService) provisionAccount(tx *gorm.DB, userID string) error {
	var free models.SubscriptionPlan
	if err := tx.Where("name = ?", models.FreePlanName).First(&free).Error; err != nil {
		return fmt.Errorf("failed to load free plan: %w", err)
	}

	start, end := store.MonthPeriod(s.now())
	sub := models.UserSubscription{
		UserID:             userID,
		PlanID:             free.ID,
		Status:             models.SubscriptionActive,
		BillingCycle:       models.BillingMonthly,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
	}
	if err := tx.Create(&sub).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	usage := models.UserUsage{UserID: userID, PeriodStart: start, PeriodEnd: end}
	if err := tx.Create(&usage).Error; err != nil {
		return fmt.Errorf("failed to create usage: %w", err)
	}
	return nil
}

func (s *AuthService) attachAvatar(ctx context.Context, user *models.UserProfile, avatar *Upload) {
	obj, err := s.Storage.Put(storage.BucketUserAvatars, user.ID, avatar.FileName, avatar.Reader)
	if err != nil {
		s.Logger.Warnw("avatar upload failed during registration", "user_id", user.ID, "error", err)
		return
	}
	if err := s.DB.WithContext(ctx).Model(user).Update("avatar_url", obj.URL).Error; err != nil {
		s.Logger.Warnw("failed to save avatar url", "user_id", user.ID, "error", err)
		return
	}
	user.AvatarURL = obj.URL
}

func (s *AuthService) Login(ctx context.Context, req *dtos.LoginRequest) (*dtos.AuthResponse, error) {
	var user models.UserProfile
	err := s.DB.WithContext(ctx).Where("email = ?", normalizeEmail(req.Email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewUnauthorizedError("invalid email or password")
		}
		return nil, err
	}
	if err := s.Hasher.Verify(req.Password, user.PasswordHash); err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid email or password")
	}
	if user.Status != models.UserStatusActive {
		return nil, apperrors.NewForbiddenError("account is suspended")
	}

	now := s.now().UTC()
	if err := s.DB.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		s.Logger.Warnw("failed to record login time", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt = &now
	return s.issue(&user)
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*dtos.AuthResponse, error) {
	claims, err := s.JWT.Verify(refreshToken)
	if err != nil || claims.TokenType != auth.TokenTypeRefresh {
		return nil, apperrors.NewUnauthorizedError("invalid or expired refresh token")
	}
	user, err := s.Me(ctx, claims.UserID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.NewUnauthorizedError("invalid or expired refresh token")
		}
		return nil, err
	}
	if user.Status != models.UserStatusActive {
		return nil, apperrors.NewForbiddenError("account is suspended")
	}
	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// ActiveRole returns the role stored for userID. Deleted accounts are unauthorized and
// suspended ones forbidden.
func (s *AuthService) ActiveRole(ctx context.Context, userID string) (string, error) {
	var user models.UserProfile
	err := s.DB.WithContext(ctx).Select("id", "role", "status").First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.NewUnauthorizedError("account no longer exists")
		}
		return "", fmt.Errorf("failed to load account: %w", err)
	}
	if user.Status == models.UserStatusSuspended {
		return "", apperrors.NewForbiddenError("account is suspended")
	}
	return user.Role, nil
}

// EnsureAdmin creates an admin account, or promotes and re-passwords an existing one.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (*models.UserProfile, error) {
	email = normalizeEmail(email)
	if email == "" || len(password) < 8 {
		return nil, apperrors.NewValidationError("admin email and a password of at least 8 characters are required")
	}
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	var user models.UserProfile
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = models.UserProfile{Email: email, PasswordHash: hash, FullName: "Administrator", Role: models.RoleAdmin}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			return s.provisionAccount(tx, user.ID)
		}
		if err != nil {
			return err
		}
		user.Role = models.RoleAdmin
		user.PasswordHash = hash
		return tx.Model(&user).Updates(map[string]any{"role": models.RoleAdmin, "password_hash": hash}).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) issue(user *models.UserProfile) (*dtos.AuthResponse, error) {
	tokens, err := s.JWT.Generate(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &dtos.AuthResponse{User: user, Tokens: tokens}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
