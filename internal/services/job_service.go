package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/database"
	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/store"
)

type JobService struct {
	DB       *gorm.DB
	Analyzer Analyzer
	Usage    *UsageService
	Logger   logger.Interface

	descriptionPolicy *bluemonday.Policy
	textPolicy        *bluemonday.Policy
	now               func() time.Time
}

func NewJobService(db *gorm.DB, analyzer Analyzer, usage *UsageService, log logger.Interface) *JobService {
	return &JobService{
		DB:                db,
		Analyzer:          analyzer,
		Usage:             usage,
		Logger:            log,
		descriptionPolicy: bluemonday.UGCPolicy(),
		textPolicy:        bluemonday.StrictPolicy(),
		now:               time.Now,
	}
}

// GetAllJobs lists jobs merged with the user's tracking rows. Jobs the user never touched come
// back with applied and saved false and no status.
func (s *JobService) GetAllJobs(ctx context.Context, userID string, f dtos.JobFilter) ([]dtos.JobWithStatus, int64, error) {
	f.Normalize()
	db := s.DB.WithContext(ctx)

	q := db.Model(&models.Job{})
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(company) LIKE ? OR LOWER(location) LIKE ?", like, like, like)
	}
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.Remote != nil {
		q = q.Where("remote = ?", *f.Remote)
	}
	if f.OnlySaved {
		q = q.Where("id IN (?)", db.Model(&models.UserJobStatus{}).Select("job_id").Where("user_id = ? AND saved = ?", userID, true))
	}
	if f.OnlyApplied {
		q = q.Where("id IN (?)", db.Model(&models.UserJobStatus{}).Select("job_id").Where("user_id = ? AND applied = ?", userID, true))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	var jobs []models.Job
	if err := q.Order("created_at DESC, id DESC").
		Offset((f.Page - 1) * f.PageSize).Limit(f.PageSize).
		Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}

	var statuses []models.UserJobStatus
	if err := db.Where("user_id = ?", userID).Find(&statuses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list job statuses: %w", err)
	}

	return mergeStatuses(jobs, statuses), total, nil
}

func mergeStatuses(jobs []models.Job, statuses []models.UserJobStatus) []dtos.JobWithStatus {
	byJob := make(map[uint]*models.UserJobStatus, len(statuses))
	for i := range statuses {
		byJob[statuses[i].JobID] = &statuses[i]
	}

	out := make([]dtos.JobWithStatus, 0, len(jobs))
	for _, j := range jobs {
		merged := dtos.JobWithStatus{Job: j}
		if st, ok := byJob[j.ID]; ok {
			merged.Applied = st.Applied
			merged.Saved = st.Saved
			merged.Status = st.Status
			merged.Notes = st.Notes
			merged.AppliedAt = st.AppliedAt
		}
		out = append(out, merged)
	}
	return out
}

func (s *JobService) GetJob(ctx context.Context, userID string, jobID uint) (*dtos.JobWithStatus, error) {
	job, err := s.findJob(s.DB.WithContext(ctx), jobID)
	if err != nil {
		return nil, err
	}

	var statuses []models.UserJobStatus
	if err := s.DB.WithContext(ctx).Where("user_id = ? AND job_id = ?", userID, jobID).Find(&statuses).Error; err != nil {
		return nil, err
	}
	merged := mergeStatuses([]models.Job{*job}, statuses)
	return &merged[0], nil
}

func (s *JobService) findJob(db *gorm.DB, jobID uint) (*models.Job, error) {
	var job models.Job
	if err := db.First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("job not found")
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobService) CreateJob(ctx context.Context, req *dtos.JobCreationRequest) (*models.Job, error) {
	db := s.DB.WithContext(ctx)

	if req.JobLink != "" {
		var count int64
		if err := db.Model(&models.Job{}).Where("job_url = ?", req.JobLink).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, apperrors.NewConflictError("job with this link already exists", req.JobLink)
		}
	}

	source := req.Source
	if source == "" {
		source = "manual"
	}
	job := &models.Job{
		Title:       strings.TrimSpace(req.Title),
		Company:     strings.TrimSpace(req.CompanyName),
		Location:    req.Location,
		Description: s.descriptionPolicy.Sanitize(req.Description),
		JobURL:      req.JobLink,
		SalaryRange: req.SalaryRange,
		JobType:     req.JobType,
		Remote:      req.Remote,
		Source:      source,
		Skills:      models.StringList(req.TechStack),
		PostedAt:    req.PostedAt,
	}
	if err := db.Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

func (s *JobService) UpdateJob(ctx context.Context, jobID uint, req *dtos.JobUpdateRequest) (*models.Job, error) {
	db := s.DB.WithContext(ctx)
	job, err := s.findJob(db, jobID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.CompanyName != nil {
		updates["company"] = strings.TrimSpace(*req.CompanyName)
	}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.JobLink != nil {
		updates["job_url"] = *req.JobLink
	}
	if req.Description != nil {
		updates["description"] = s.descriptionPolicy.Sanitize(*req.Description)
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.SalaryRange != nil {
		updates["salary_range"] = *req.SalaryRange
	}
	if req.JobType != nil {
		updates["job_type"] = *req.JobType
	}
	if req.Remote != nil {
		updates["remote"] = *req.Remote
	}
	if req.TechStack != nil {
		updates["skills"] = models.StringList(*req.TechStack)
	}
	if len(updates) == 0 {
		return job, nil
	}

	if err := db.Model(job).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	return s.findJob(db, jobID)
}

// DeleteJob soft deletes the job and removes every user's tracking row for it.
func (s *JobService) DeleteJob(ctx context.Context, jobID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.findJob(tx, jobID); err != nil {
			return err
		}
		if err := tx.Where("job_id = ?", jobID).Delete(&models.UserJobStatus{}).Error; err != nil {
			return fmt.Errorf("failed to delete job statuses: %w", err)
		}
		if err := tx.Delete(&models.Job{}, jobID).Error; err != nil {
			return fmt.Errorf("failed to delete job: %w", err)
		}
		return nil
	})
}

// UpsertStatus applies patch to the (user, job) tracking row, creating it if needed. A status
// change is recorded as a job event. Switching a row to applied stamps applied_at and counts one
// application against the user's plan, failing once the limit is reached.
func (s *JobService) UpsertStatus(ctx context.Context, userID string, jobID uint, patch dtos.StatusPatch) (*models.UserJobStatus, error) {
	if patch.Status != nil && !models.IsValidJobStatus(*patch.Status) {
		return nil, apperrors.NewValidationError("invalid status", *patch.Status)
	}

	var row models.UserJobStatus
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.findJob(tx, jobID); err != nil {
			return err
		}

		var prev models.UserJobStatus
		exists := true
		if err := tx.Where("user_id = ? AND job_id = ?", userID, jobID).First(&prev).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			exists = false
		}

		row = prev
		row.ID = 0
		row.CreatedAt = time.Time{}
		row.UpdatedAt = s.now()
		row.UserID = userID
		row.JobID = jobID
		if patch.Saved != nil {
			row.Saved = *patch.Saved
		}
		if patch.Applied != nil {
			row.Applied = *patch.Applied
		}
		if patch.Notes != nil {
			row.Notes = *patch.Notes
		}
		if patch.Status != nil {
			st := *patch.Status
			row.Status = &st
			if st == models.StatusApplied {
				row.Applied = true
			}
		}
		if row.Applied && !prev.Applied {
			if err := s.consume(database.WithTx(ctx, tx), userID, store.MetricApplicationsSent); err != nil {
				return err
			}
			now := s.now().UTC()
			row.AppliedAt = &now
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"applied", "saved", "status", "notes", "applied_at", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to upsert job status: %w", err)
		}

		if err := recordStatusEvents(tx, &prev, &row, exists); err != nil {
			return err
		}
		return tx.Where("user_id = ? AND job_id = ?", userID, jobID).First(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func recordStatusEvents(tx *gorm.DB, prev, next *models.UserJobStatus, existed bool) error {
	var events []models.JobEvent
	if next.Status != nil && (!existed || prev.Status == nil || *prev.Status != *next.Status) {
		from := "none"
		if prev.Status != nil {
			from = *prev.Status
		}
		events = append(events, models.JobEvent{
			JobID: next.JobID, UserID: next.UserID, EventType: models.EventStatusChange,
			Details: fmt.Sprintf("Status changed from %s to %s", from, *next.Status),
		})
	}
	if next.Applied && !prev.Applied {
		events = append(events, models.JobEvent{
			JobID: next.JobID, UserID: next.UserID, EventType: models.EventApplied, Details: "Marked as applied",
		})
	}
	if len(events) == 0 {
		return nil
	}
	if err := tx.Create(&events).Error; err != nil {
		return fmt.Errorf("failed to record job events: %w", err)
	}
	return nil
}

// ToggleSaved stores saved = !current.
func (s *JobService) ToggleSaved(ctx context.Context, userID string, jobID uint, current bool) (*models.UserJobStatus, error) {
	saved := !current
	return s.UpsertStatus(ctx, userID, jobID, dtos.StatusPatch{Saved: &saved})
}

// ToggleApplied stores applied = !current.
func (s *JobService) ToggleApplied(ctx context.Context, userID string, jobID uint, current bool) (*models.UserJobStatus, error) {
	applied := !current
	return s.UpsertStatus(ctx, userID, jobID, dtos.StatusPatch{Applied: &applied})
}

func (s *JobService) UpdateStatus(ctx context.Context, userID string, jobID uint, status, notes string) (*models.UserJobStatus, error) {
	if !models.IsValidJobStatus(status) {
		return nil, apperrors.NewValidationError("invalid status", status)
	}
	patch := dtos.StatusPatch{Status: &status}
	if notes != "" {
		patch.Notes = &notes
	}
	return s.UpsertStatus(ctx, userID, jobID, patch)
}

// consume enforces a usage limit. Accounting outages are logged and do not block the user.
func (s *JobService) consume(ctx context.Context, userID string, metric store.Metric) error {
	if s.Usage == nil {
		return nil
	}
	err := s.Usage.Consume(ctx, userID, metric)
	if err == nil || apperrors.IsForbiddenError(err) {
		return err
	}
	s.Logger.Warnw("failed to record usage", "user_id", userID, "metric", metric, "error", err)
	return nil
}

func (s *JobService) UserJobStats(ctx context.Context, userID string) (*dtos.JobStats, error) {
	db := s.DB.WithContext(ctx)
	stats := &dtos.JobStats{ByStatus: make(map[string]int64)}

	base := func() *gorm.DB {
		return db.Model(&models.UserJobStatus{}).
			Joins("JOIN jobs ON jobs.id = user_job_status.job_id AND jobs.deleted_at IS NULL").
			Where("user_job_status.user_id = ?", userID)
	}
	if err := base().Count(&stats.Tracked).Error; err != nil {
		return nil, fmt.Errorf("failed to count tracked jobs: %w", err)
	}
	if err := base().Where("user_job_status.saved = ?", true).Count(&stats.Saved).Error; err != nil {
		return nil, err
	}
	if err := base().Where("user_job_status.applied = ?", true).Count(&stats.Applied).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := base().Select("user_job_status.status AS status, COUNT(*) AS count").
		Where("user_job_status.status IS NOT NULL").
		Group("user_job_status.status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to group job statuses: %w", err)
	}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
	}
	return stats, nil
}

// ExtractJob turns a pasted posting into structured fields. Each extraction counts against the
// user's jobs_scraped allowance.
func (s *JobService) ExtractJob(ctx context.Context, userID, rawHTML string) (*dtos.ExtractedJob, error) {
	if s.Analyzer == nil {
		return nil, apperrors.NewUnavailableError("job extraction is not configured")
	}
	text := strings.Join(strings.Fields(s.textPolicy.Sanitize(rawHTML)), " ")
	if text == "" {
		return nil, apperrors.NewValidationError("posting has no text content")
	}
	if err := s.consume(ctx, userID, store.MetricJobsScraped); err != nil {
		return nil, err
	}

	raw, err := s.Analyzer.ExtractJobDetails(ctx, text)
	if err != nil {
		s.Logger.Errorw("job extraction failed", "user_id", userID, "error", err)
		return nil, apperrors.NewUnavailableError("job extraction failed")
	}

	var out dtos.ExtractedJob
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.Logger.Warnw("job extraction returned invalid json", "error", err, "raw", truncate(raw, 500))
		return nil, apperrors.NewUnavailableError("job extraction returned an invalid answer")
	}
	return &out, nil
}
