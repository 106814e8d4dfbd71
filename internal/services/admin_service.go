package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/cache"
	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/storage"
)

const (
	statsCacheKey = "stats"
	statsCacheTTL = 60 * time.Second
)

// Actor is the admin performing a mutation.
type Actor struct {
	ID string
	IP string
}

type AdminService struct {
	DB            *gorm.DB
	Cache         *cache.JSONCache
	Jobs          *JobService
	Subscriptions *SubscriptionService
	Storage       *storage.Store
	Logger        logger.Interface
	now           func() time.Time
}

func NewAdminService(db *gorm.DB, c *cache.JSONCache, jobs *JobService, subs *SubscriptionService,
	st *storage.Store, log logger.Interface) *AdminService {
	return &AdminService{DB: db, Cache: c, Jobs: jobs, Subscriptions: subs, Storage: st, Logger: log, now: time.Now}
}

// Stats returns dashboard totals, served from cache for up to a minute.
func (s *AdminService) Stats(ctx context.Context) (*dtos.AdminStats, error) {
	var stats dtos.AdminStats
	if err := s.Cache.Get(ctx, statsCacheKey, &stats); err == nil {
		return &stats, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.Logger.Warnw("stats cache read failed", "error", err)
	}

	db := s.DB.WithContext(ctx)
	activeSince := s.now().Add(-30 * 24 * time.Hour).UTC()
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&stats.TotalUsers, db.Model(&models.UserProfile{})},
		{&stats.ActiveUsers, db.Model(&models.UserProfile{}).Where("last_login_at >= ?", activeSince)},
		{&stats.TotalJobs, db.Model(&models.Job{})},
		{&stats.TotalResumes, db.Model(&models.Resume{})},
		{&stats.ActiveSubscriptions, db.Model(&models.UserSubscription{}).Where("status IN ?", []string{models.SubscriptionActive, models.SubscriptionTrialing})},
		{&stats.ScrapingRuns, db.Model(&models.ScrapingLog{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("failed to compute stats: %w", err)
		}
	}
	if err := db.Model(&models.PaymentHistory{}).Where("status = ?", models.PaymentSucceeded).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.Revenue).Error; err != nil {
		return nil, fmt.Errorf("failed to compute revenue: %w", err)
	}

	if err := s.Cache.Set(ctx, statsCacheKey, &stats, statsCacheTTL); err != nil {
		s.Logger.Warnw("stats cache write failed", "error", err)
	}
	return &stats, nil
}

func (s *AdminService) invalidateStats(ctx context.Context) {
	if err := s.Cache.Delete(ctx, statsCacheKey); err != nil {
		s.Logger.Warnw("stats cache invalidation failed", "error", err)
	}
}

// LogAction appends an admin_logs row. Failures are logged, not returned.
func (s *AdminService) LogAction(ctx context.Context, actor Actor, action, targetType, targetID, details string) {
	entry := models.AdminLog{
		AdminID:    actor.ID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		IPAddress:  actor.IP,
	}
	if err := s.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		s.Logger.Warnw("failed to write admin log", "action", action, "error", err)
	}
}

func (s *AdminService) Logs(ctx context.Context, p dtos.Pagination) ([]models.AdminLog, int64, error) {
	p.Normalize()
	var total int64
	var out []models.AdminLog
	q := s.DB.WithContext(ctx).Model(&models.AdminLog{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC, id DESC").Offset(p.Offset()).Limit(p.PageSize).Find(&out).Error
	return out, total, err
}

func (s *AdminService) ListUsers(ctx context.Context, f dtos.UserFilter) ([]dtos.AdminUser, int64, error) {
	p := dtos.Pagination{Page: f.Page, PageSize: f.PageSize}
	p.Normalize()

	q := s.DB.WithContext(ctx).Model(&models.UserProfile{})
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", like, like)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	var users []models.UserProfile
	if err := q.Order("created_at DESC").Offset(p.Offset()).Limit(p.PageSize).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	out, err := s.enrichUsers(ctx, users)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

type userCount struct {
	UserID string
	Count  int64
}

func (s *AdminService) countByUser(ctx context.Context, model any, ids []string) (map[string]int64, error) {
	var rows []userCount
	err := s.DB.WithContext(ctx).Model(model).
		Select("user_id, COUNT(*) AS count").
		Where("user_id IN ?", ids).
		Group("user_id").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	m := make(map[string]int64, len(rows))
	for _, r := range rows {
		m[r.UserID] = r.Count
	}
	return m, nil
}

func (s *AdminService) enrichUsers(ctx context.Context, users []models.UserProfile) ([]dtos.AdminUser, error) {
	out := make([]dtos.AdminUser, 0, len(users))
	if len(users) == 0 {
		return out, nil
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	tracked, err := s.countByUser(ctx, &models.UserJobStatus{}, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count tracked jobs: %w", err)
	}
	resumes, err := s.countByUser(ctx, &models.Resume{}, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count resumes: %w", err)
	}
	var subs []models.UserSubscription
	if err := s.DB.WithContext(ctx).Preload("Plan").Where("user_id IN ?", ids).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	subByUser := make(map[string]*models.UserSubscription, len(subs))
	for i := range subs {
		subByUser[subs[i].UserID] = &subs[i]
	}

	for _, u := range users {
		au := dtos.AdminUser{UserProfile: u, JobsTracked: tracked[u.ID], ResumeCount: resumes[u.ID], PlanName: models.FreePlanName}
		if sub, ok := subByUser[u.ID]; ok {
			au.SubscriptionStatus = sub.Status
			if sub.Plan != nil {
				au.PlanName = sub.Plan.Name
			}
		}
		out = append(out, au)
	}
	return out, nil
}

func (s *AdminService) GetUser(ctx context.Context, id string) (*dtos.AdminUser, error) {
	var user models.UserProfile
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("user not found")
		}
		return nil, err
	}
	out, err := s.enrichUsers(ctx, []models.UserProfile{user})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *AdminService) UpdateUser(ctx context.Context, actor Actor, id string, req *dtos.AdminUpdateUserRequest) (*dtos.AdminUser, error) {
	if id == actor.ID && req.Role != nil && *req.Role != models.RoleAdmin {
		return nil, apperrors.NewBadRequestError("admins cannot remove their own admin role")
	}
	if id == actor.ID && req.Status != nil && *req.Status != models.UserStatusActive {
		return nil, apperrors.NewBadRequestError("admins cannot suspend themselves")
	}
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(&models.UserProfile{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		s.LogAction(ctx, actor, "update_user", "user", id, fmt.Sprintf("%v", updates))
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes the profile and every row that belongs to it in one transaction, then
// deletes the user's resume files.
func (s *AdminService) DeleteUser(ctx context.Context, actor Actor, id string) error {
	if id == actor.ID {
		return apperrors.NewBadRequestError("admins cannot delete themselves")
	}

	var resumes []models.Resume
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.UserProfile
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFoundError("user not found")
			}
			return err
		}
		if err := tx.Where("user_id = ?", id).Find(&resumes).Error; err != nil {
			return err
		}

		dependents := []any{
			&models.UserJobStatus{}, &models.JobEvent{}, &models.ResumeComparison{}, &models.Resume{},
			&models.CalendarEvent{}, &models.Notification{}, &models.UserUsage{},
			&models.PaymentHistory{}, &models.UserSubscription{}, &models.ProcessedEmail{}, &models.InboxState{},
		}
		for _, m := range dependents {
			if err := tx.Where("user_id = ?", id).Delete(m).Error; err != nil {
				return fmt.Errorf("failed to delete %T: %w", m, err)
			}
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return err
	}

	for _, r := range resumes {
		if err := s.Storage.Delete(storage.BucketResumes, r.StoragePath); err != nil {
			s.Logger.Warnw("failed to delete resume file", "user_id", id, "path", r.StoragePath, "error", err)
		}
	}
	s.LogAction(ctx, actor, "delete_user", "user", id, fmt.Sprintf("removed %d resumes", len(resumes)))
	s.invalidateStats(ctx)
	return nil
}

func (s *AdminService) ListJobs(ctx context.Context, f dtos.JobFilter) ([]dtos.AdminJob, int64, error) {
	f.Normalize()
	q := s.DB.WithContext(ctx).Model(&models.Job{})
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(company) LIKE ?", like, like)
	}
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var jobs []models.Job
	if err := q.Order("created_at DESC, id DESC").Offset((f.Page - 1) * f.PageSize).Limit(f.PageSize).Find(&jobs).Error; err != nil {
		return nil, 0, err
	}

	ids := make([]uint, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	var rows []struct {
		JobID   uint
		Tracked int64
		Applied int64
	}
	if len(ids) > 0 {
		if err := s.DB.WithContext(ctx).Model(&models.UserJobStatus{}).
			Select("job_id, COUNT(*) AS tracked, SUM(CASE WHEN applied THEN 1 ELSE 0 END) AS applied").
			Where("job_id IN ?", ids).Group("job_id").Scan(&rows).Error; err != nil {
			return nil, 0, err
		}
	}
	byJob := make(map[uint]int, len(rows))
	for i, r := range rows {
		byJob[r.JobID] = i
	}

	out := make([]dtos.AdminJob, 0, len(jobs))
	for _, j := range jobs {
		aj := dtos.AdminJob{Job: j}
		if i, ok := byJob[j.ID]; ok {
			aj.TrackedBy = rows[i].Tracked
			aj.AppliedBy = rows[i].Applied
		}
		out = append(out, aj)
	}
	return out, total, nil
}

func (s *AdminService) CreateJob(ctx context.Context, actor Actor, req *dtos.JobCreationRequest) (*models.Job, error) {
	job, err := s.Jobs.CreateJob(ctx, req)
	if err != nil {
		return nil, err
	}
	s.LogAction(ctx, actor, "create_job", "job", fmt.Sprint(job.ID), job.Title)
	s.invalidateStats(ctx)
	return job, nil
}

func (s *AdminService) UpdateJob(ctx context.Context, actor Actor, id uint, req *dtos.JobUpdateRequest) (*models.Job, error) {
	job, err := s.Jobs.UpdateJob(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.LogAction(ctx, actor, "update_job", "job", fmt.Sprint(id), job.Title)
	return job, nil
}

func (s *AdminService) DeleteJob(ctx context.Context, actor Actor, id uint) error {
	if err := s.Jobs.DeleteJob(ctx, id); err != nil {
		return err
	}
	s.LogAction(ctx, actor, "delete_job", "job", fmt.Sprint(id), "")
	s.invalidateStats(ctx)
	return nil
}

func (s *AdminService) ListResumes(ctx context.Context, p dtos.Pagination) ([]dtos.AdminResume, int64, error) {
	p.Normalize()
	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Resume{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []dtos.AdminResume
	err := s.DB.WithContext(ctx).Model(&models.Resume{}).
		Select("resumes.*, user_profiles.email AS user_email").
		Joins("LEFT JOIN user_profiles ON user_profiles.id = resumes.user_id").
		Order("resumes.created_at DESC, resumes.id DESC").
		Offset(p.Offset()).Limit(p.PageSize).
		Scan(&out).Error
	return out, total, err
}

func (s *AdminService) DeleteResume(ctx context.Context, actor Actor, id uint) error {
	var r models.Resume
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&r, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFoundError("resume not found")
			}
			return err
		}
		if err := tx.Where("resume_id = ?", id).Delete(&models.ResumeComparison{}).Error; err != nil {
			return err
		}
		return tx.Delete(&r).Error
	})
	if err != nil {
		return err
	}
	if err := s.Storage.Delete(storage.BucketResumes, r.StoragePath); err != nil {
		s.Logger.Warnw("failed to delete resume file", "resume_id", id, "error", err)
	}
	s.LogAction(ctx, actor, "delete_resume", "resume", fmt.Sprint(id), r.FileName)
	s.invalidateStats(ctx)
	return nil
}

func (s *AdminService) ListSubscriptions(ctx context.Context, status string, p dtos.Pagination) ([]models.UserSubscription, int64, error) {
	p.Normalize()
	q := s.DB.WithContext(ctx).Model(&models.UserSubscription{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.UserSubscription
	err := q.Preload("Plan").Order("updated_at DESC, id DESC").Offset(p.Offset()).Limit(p.PageSize).Find(&out).Error
	return out, total, err
}

// UpdateSubscription moves a user to another plan and/or sets the status directly.
func (s *AdminService) UpdateSubscription(ctx context.Context, actor Actor, userID string, req *dtos.AdminUpdateSubscriptionRequest) (*models.UserSubscription, error) {
	if req.PlanID != nil {
		if _, err := s.Subscriptions.CreateSubscription(ctx, userID, *req.PlanID, req.BillingCycle); err != nil {
			return nil, err
		}
	}
	if req.Status != nil {
		res := s.DB.WithContext(ctx).Model(&models.UserSubscription{}).Where("user_id = ?", userID).Update("status", *req.Status)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to update subscription: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, apperrors.NewNotFoundError("subscription not found")
		}
	}

	var sub models.UserSubscription
	if err := s.DB.WithContext(ctx).Preload("Plan").Where("user_id = ?", userID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("subscription not found")
		}
		return nil, err
	}
	s.LogAction(ctx, actor, "update_subscription", "subscription", userID, fmt.Sprintf("plan=%d status=%s", sub.PlanID, sub.Status))
	s.invalidateStats(ctx)
	return &sub, nil
}

func (s *AdminService) CancelSubscription(ctx context.Context, actor Actor, userID string) (*models.UserSubscription, error) {
	sub, err := s.Subscriptions.CancelSubscription(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	s.LogAction(ctx, actor, "cancel_subscription", "subscription", userID, "")
	s.invalidateStats(ctx)
	return sub, nil
}
