package dtos

import "github.com/justsurfingit/jobtrackr/internal/models"

type AdminStats struct {
	TotalUsers          int64   `json:"total_users"`
	ActiveUsers         int64   `json:"active_users"`
	TotalJobs           int64   `json:"total_jobs"`
	TotalResumes        int64   `json:"total_resumes"`
	ActiveSubscriptions int64   `json:"active_subscriptions"`
	Revenue             float64 `json:"revenue"`
	ScrapingRuns        int64   `json:"scraping_runs"`
}

// AdminUser is a profile with the counts shown in the admin user table.
type AdminUser struct {
	models.UserProfile
	JobsTracked        int64  `json:"jobs_tracked"`
	ResumeCount        int64  `json:"resume_count"`
	PlanName           string `json:"plan_name"`
	SubscriptionStatus string `json:"subscription_status"`
}

type AdminJob struct {
	models.Job
	TrackedBy int64 `json:"tracked_by"`
	AppliedBy int64 `json:"applied_by"`
}

type AdminResume struct {
	models.Resume
	UserEmail string `json:"user_email"`
}

type UserFilter struct {
	Search   string `form:"search"`
	Role     string `form:"role"`
	Status   string `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// Pagination is the paging part of admin list queries.
type Pagination struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.PageSize }

type AdminUpdateUserRequest struct {
	Role   *string `json:"role" binding:"omitempty,oneof=user admin"`
	Status *string `json:"status" binding:"omitempty,oneof=active suspended"`
}

type AdminUpdateSubscriptionRequest struct {
	PlanID       *uint   `json:"plan_id"`
	Status       *string `json:"status" binding:"omitempty,oneof=active trialing past_due canceled expired"`
	BillingCycle string  `json:"billing_cycle" binding:"omitempty,oneof=monthly yearly"`
}

type UpdateScraperConfigRequest struct {
	Name     *string   `json:"name"`
	Enabled  *bool     `json:"enabled"`
	Location *string   `json:"location"`
	Keywords *[]string `json:"keywords"`
	Headless *bool     `json:"headless"`
	MaxPages *int      `json:"max_pages" binding:"omitempty,min=1,max=50"`
	DaysOld  *int      `json:"days_old" binding:"omitempty,min=1,max=90"`
}

// RunOverrides replace stored scraper settings for one run.
type RunOverrides struct {
	Location *string   `json:"location"`
	Keywords *[]string `json:"keywords"`
	Headless *bool     `json:"headless"`
	MaxPages *int      `json:"max_pages" binding:"omitempty,min=1,max=50"`
	DaysOld  *int      `json:"days_old" binding:"omitempty,min=1,max=90"`
}

type ScraperStats struct {
	TotalRuns          int64                   `json:"total_runs"`
	SuccessfulRuns     int64                   `json:"successful_runs"`
	FailedRuns         int64                   `json:"failed_runs"`
	TotalJobsFound     int64                   `json:"total_jobs_found"`
	AverageDurationSec float64                 `json:"average_duration_seconds"`
	PerScraper         map[string]ScraperTally `json:"per_scraper"`
}

type ScraperTally struct {
	Runs      int64 `json:"runs"`
	JobsFound int64 `json:"jobs_found"`
	JobsSaved int64 `json:"jobs_saved"`
}
