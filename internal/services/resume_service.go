package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/storage"
	"github.com/justsurfingit/jobtrackr/internal/store"
)

var resumeExtensions = map[string]bool{".pdf": true, ".doc": true, ".docx": true, ".txt": true, ".md": true}

// Text of plain resumes is kept for matching, up to this many bytes.
const maxResumeText = 200 << 10

const (
	analyzerLLM     = "llm"
	analyzerKeyword = "keyword"
)

type ResumeService struct {
	DB       *gorm.DB
	Storage  *storage.Store
	Usage    *UsageService
	Analyzer Analyzer
	Logger   logger.Interface
}

func NewResumeService(db *gorm.DB, st *storage.Store, usage *UsageService, analyzer Analyzer, log logger.Interface) *ResumeService {
	return &ResumeService{DB: db, Storage: st, Usage: usage, Analyzer: analyzer, Logger: log}
}

func fileExt(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// Upload stores a resume while the user is below the plan's resume limit. The first resume
// becomes the default.
func (s *ResumeService) Upload(ctx context.Context, userID string, file *Upload) (*models.Resume, error) {
	ext := fileExt(file.FileName)
	if !resumeExtensions[ext] {
		return nil, apperrors.NewValidationError("unsupported resume type", file.FileName)
	}

	plan, err := s.Usage.Plans.EffectivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Resume{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, err
	}
	if plan.MaxResumes != models.Unlimited && count >= int64(plan.MaxResumes) {
		return nil, apperrors.NewForbiddenError("resume limit reached", fmt.Sprintf("plan %s allows %d", plan.Name, plan.MaxResumes))
	}

	reader := file.Reader
	var text bytes.Buffer
	if ext == ".txt" || ext == ".md" {
		reader = io.TeeReader(reader, &limitedWriter{w: &text, n: maxResumeText})
	}

	obj, err := s.Storage.Put(storage.BucketResumes, userID, file.FileName, reader)
	if err != nil {
		return nil, apperrors.NewBadRequestError("failed to store resume", err.Error())
	}

	resume := &models.Resume{
		UserID:      userID,
		FileName:    filepath.Base(file.FileName),
		StoragePath: obj.Key,
		FileURL:     obj.URL,
		FileSize:    obj.Size,
		ContentType: file.ContentType,
		ContentText: strings.ToValidUTF8(text.String(), ""),
		IsDefault:   count == 0,
	}
	if err := s.DB.WithContext(ctx).Create(resume).Error; err != nil {
		_ = s.Storage.Delete(storage.BucketResumes, obj.Key)
		return nil, fmt.Errorf("failed to save resume: %w", err)
	}

	if err := s.Usage.Record(ctx, userID, store.MetricResumesUploaded); err != nil {
		s.Logger.Warnw("failed to record resume upload", "user_id", userID, "error", err)
	}
	return resume, nil
}

// limitedWriter keeps the first n bytes and silently drops the rest.
type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.n > 0 {
		keep := min(len(p), l.n)
		if _, err := l.w.Write(p[:keep]); err != nil {
			return 0, err
		}
		l.n -= keep
	}
	return len(p), nil
}

func (s *ResumeService) List(ctx context.Context, userID string) ([]models.Resume, error) {
	var out []models.Resume
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).
		Order("is_default DESC, created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (s *ResumeService) Get(ctx context.Context, userID string, id uint) (*models.Resume, error) {
	return s.find(s.DB.WithContext(ctx), userID, id)
}

func (s *ResumeService) find(db *gorm.DB, userID string, id uint) (*models.Resume, error) {
	var r models.Resume
	if err := db.Where("user_id = ?", userID).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("resume not found")
		}
		return nil, err
	}
	return &r, nil
}

// SetDefault makes id the user's only default resume.
func (s *ResumeService) SetDefault(ctx context.Context, userID string, id uint) (*models.Resume, error) {
	var r *models.Resume
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if r, err = s.find(tx, userID, id); err != nil {
			return err
		}
		if err := tx.Model(&models.Resume{}).Where("user_id = ? AND id <> ?", userID, id).Update("is_default", false).Error; err != nil {
			return err
		}
		if err := tx.Model(r).Update("is_default", true).Error; err != nil {
			return err
		}
		r.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes the resume, its comparisons and its file. When the default goes, the newest
// remaining resume takes over.
func (s *ResumeService) Delete(ctx context.Context, userID string, id uint) error {
	var r *models.Resume
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if r, err = s.find(tx, userID, id); err != nil {
			return err
		}
		if err := tx.Where("resume_id = ?", id).Delete(&models.ResumeComparison{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(r).Error; err != nil {
			return err
		}
		if !r.IsDefault {
			return nil
		}
		var next models.Resume
		err = tx.Where("user_id = ?", userID).Order("created_at DESC, id DESC").First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Model(&next).Update("is_default", true).Error
	})
	if err != nil {
		return err
	}

	if err := s.Storage.Delete(storage.BucketResumes, r.StoragePath); err != nil {
		s.Logger.Warnw("failed to delete resume file", "resume_id", id, "path", r.StoragePath, "error", err)
	}
	return nil
}

// Compare scores a resume against a job. The language model is used when configured; otherwise,
// or when it fails, the job's skills are looked up in the resume text.
func (s *ResumeService) Compare(ctx context.Context, userID string, resumeID, jobID uint) (*models.ResumeComparison, error) {
	resume, err := s.Get(ctx, userID, resumeID)
	if err != nil {
		return nil, err
	}
	var job models.Job
	if err := s.DB.WithContext(ctx).First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("job not found")
		}
		return nil, err
	}

	if err := s.Usage.Consume(ctx, userID, store.MetricComparisonsRun); err != nil {
		return nil, err
	}

	result, analyzer := s.analyze(ctx, resume, &job)
	cmp := &models.ResumeComparison{
		UserID:          userID,
		ResumeID:        resume.ID,
		JobID:           job.ID,
		MatchScore:      result.MatchScore,
		MatchedSkills:   models.StringList(result.MatchedSkills),
		MissingSkills:   models.StringList(result.MissingSkills),
		Summary:         result.Summary,
		Recommendations: models.StringList(result.Recommendations),
		Analyzer:        analyzer,
	}
	if err := s.DB.WithContext(ctx).Create(cmp).Error; err != nil {
		return nil, fmt.Errorf("failed to save comparison: %w", err)
	}
	return cmp, nil
}

func (s *ResumeService) analyze(ctx context.Context, resume *models.Resume, job *models.Job) (dtos.ComparisonResult, string) {
	if s.Analyzer != nil && resume.ContentText != "" {
		raw, err := s.Analyzer.CompareResume(ctx, resume.ContentText, jobText(job))
		if err == nil {
			var res dtos.ComparisonResult
			if err = json.Unmarshal([]byte(raw), &res); err == nil {
				res.MatchScore = min(max(res.MatchScore, 0), 100)
				return res, analyzerLLM
			}
		}
		s.Logger.Warnw("llm resume comparison failed, using keyword match", "resume_id", resume.ID, "job_id", job.ID, "error", err)
	}
	return KeywordCompare(resume.ContentText, job), analyzerKeyword
}

func jobText(job *models.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %s (%s)\n", job.Title, job.Company, job.Location)
	if skills := models.Strings(job.Skills); len(skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(skills, ", "))
	}
	b.WriteString(job.Description)
	return b.String()
}

// KeywordCompare scores a resume by the share of the job's listed skills it mentions.
func KeywordCompare(resumeText string, job *models.Job) dtos.ComparisonResult {
	text := strings.ToLower(resumeText)
	res := dtos.ComparisonResult{MatchedSkills: []string{}, MissingSkills: []string{}, Recommendations: []string{}}

	skills := models.Strings(job.Skills)
	for _, skill := range skills {
		if strings.Contains(text, strings.ToLower(strings.TrimSpace(skill))) {
			res.MatchedSkills = append(res.MatchedSkills, skill)
		} else {
			res.MissingSkills = append(res.MissingSkills, skill)
		}
	}

	if len(skills) > 0 {
		res.MatchScore = len(res.MatchedSkills) * 100 / len(skills)
	}
	res.Summary = fmt.Sprintf("Resume mentions %d of %d skills listed for %s.", len(res.MatchedSkills), len(skills), job.Title)
	for i, skill := range res.MissingSkills {
		if i == 3 {
			break
		}
		res.Recommendations = append(res.Recommendations, fmt.Sprintf("Describe your experience with %s.", skill))
	}
	return res
}

func (s *ResumeService) Comparisons(ctx context.Context, userID string, resumeID uint) ([]models.ResumeComparison, error) {
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if resumeID != 0 {
		q = q.Where("resume_id = ?", resumeID)
	}
	var out []models.ResumeComparison
	err := q.Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}
