package dtos

import (
	"time"

	"github.com/justsurfingit/jobtrackr/internal/models"
)

type JobExtractionRequest struct {
	RawHTML string `json:"raw_html" binding:"required"`
	URL     string `json:"url"`
}

// ExtractedJob is the structured result of analysing a posting.
type ExtractedJob struct {
	CompanyName string   `json:"company_name"`
	RoleTitle   string   `json:"role_title"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	TechStack   []string `json:"tech_stack"`
	SalaryRange *string  `json:"salary_range"`
}

type JobCreationRequest struct {
	CompanyName string `json:"company_name" binding:"required"`
	Title       string `json:"role_title" binding:"required"`
	JobLink     string `json:"job_link" binding:"omitempty,url"`
	Description string `json:"description"`

	// Optional Fields
	Location    string     `json:"location"`
	SalaryRange string     `json:"salary_range"`
	JobType     string     `json:"job_type"`
	Remote      bool       `json:"remote"`
	Source      string     `json:"source"`
	TechStack   []string   `json:"tech_stack"`
	PostedAt    *time.Time `json:"posted_at"`
}

type JobUpdateRequest struct {
	CompanyName *string   `json:"company_name"`
	Title       *string   `json:"role_title"`
	JobLink     *string   `json:"job_link"`
	Description *string   `json:"description"`
	Location    *string   `json:"location"`
	SalaryRange *string   `json:"salary_range"`
	JobType     *string   `json:"job_type"`
	Remote      *bool     `json:"remote"`
	TechStack   *[]string `json:"tech_stack"`
}

// JobFilter narrows job listings. Zero values do not filter.
type JobFilter struct {
	Search      string `form:"search"`
	Source      string `form:"source"`
	Remote      *bool  `form:"remote"`
	OnlySaved   bool   `form:"only_saved"`
	OnlyApplied bool   `form:"only_applied"`
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
}

// Normalize clamps paging to sane values.
func (f *JobFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
}

// JobWithStatus is a job merged with the caller's tracking row. Status is nil when the
// user never set one.
type JobWithStatus struct {
	models.Job
	Applied   bool       `json:"applied"`
	Saved     bool       `json:"saved"`
	Status    *string    `json:"status"`
	Notes     string     `json:"notes"`
	AppliedAt *time.Time `json:"applied_at"`
}

// StatusPatch updates a tracking row. Nil fields are left alone.
type StatusPatch struct {
	Applied *bool   `json:"applied"`
	Saved   *bool   `json:"saved"`
	Status  *string `json:"status"`
	Notes   *string `json:"notes"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// ToggleRequest carries the value the client currently shows.
type ToggleRequest struct {
	Current bool `json:"current"`
}

type JobStats struct {
	Tracked  int64            `json:"tracked"`
	Saved    int64            `json:"saved"`
	Applied  int64            `json:"applied"`
	ByStatus map[string]int64 `json:"by_status"`
}
