package dtos

import (
	"time"

	"github.com/justsurfingit/jobtrackr/internal/models"
)

type CreateSubscriptionRequest struct {
	PlanID       uint   `json:"plan_id" binding:"required"`
	BillingCycle string `json:"billing_cycle" binding:"omitempty,oneof=monthly yearly"`
}

type CancelSubscriptionRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

// UsageLimits is what a user may still do this period. Remaining values of -1 are unlimited.
type UsageLimits struct {
	CanScrapeJobs         bool `json:"can_scrape_jobs"`
	CanApply              bool `json:"can_apply"`
	CanUploadResume       bool `json:"can_upload_resume"`
	CanCompareResume      bool `json:"can_compare_resume"`
	JobsRemaining         int  `json:"jobs_remaining"`
	ApplicationsRemaining int  `json:"applications_remaining"`
	ResumesRemaining      int  `json:"resumes_remaining"`
	ComparisonsRemaining  int  `json:"comparisons_remaining"`
}

type UsageSummary struct {
	Usage  *models.UserUsage        `json:"usage"`
	Plan   *models.SubscriptionPlan `json:"plan"`
	Limits UsageLimits              `json:"limits"`
}

type CalendarEventRequest struct {
	JobID           *uint      `json:"job_id"`
	Title           string     `json:"title" binding:"required,max=200"`
	Description     string     `json:"description"`
	EventType       string     `json:"event_type" binding:"omitempty,oneof=interview follow_up deadline other"`
	StartTime       time.Time  `json:"start_time" binding:"required"`
	EndTime         *time.Time `json:"end_time"`
	Location        string     `json:"location"`
	AllDay          bool       `json:"all_day"`
	ReminderMinutes int        `json:"reminder_minutes" binding:"min=0"`
}

type CalendarRange struct {
	From time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To   time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

type CompareResumeRequest struct {
	JobID uint `json:"job_id" binding:"required"`
}

// ComparisonResult is the structured analysis of a resume against a job.
type ComparisonResult struct {
	MatchScore      int      `json:"match_score"`
	MatchedSkills   []string `json:"matched_skills"`
	MissingSkills   []string `json:"missing_skills"`
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}
