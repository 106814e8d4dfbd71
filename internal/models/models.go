package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tracking statuses a user can put a job in.
const (
	StatusInterested   = "interested"
	StatusApplied      = "applied"
	StatusInterviewing = "interviewing"
	StatusOffer        = "offer"
	StatusRejected     = "rejected"
	StatusWithdrawn    = "withdrawn"
)

var JobStatuses = []string{StatusInterested, StatusApplied, StatusInterviewing, StatusOffer, StatusRejected, StatusWithdrawn}

func IsValidJobStatus(s string) bool {
	for _, st := range JobStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// IsTerminalJobStatus reports statuses no recruiter email should move a job out of.
func IsTerminalJobStatus(s string) bool {
	return s == StatusOffer || s == StatusRejected || s == StatusWithdrawn
}

type Job struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Title       string         `gorm:"not null" json:"title"`
	Company     string         `gorm:"index;not null" json:"company"`
	Location    string         `json:"location"`
	Description string         `gorm:"type:text" json:"description"`
	JobURL      string         `gorm:"index" json:"job_url"`
	SalaryRange string         `json:"salary_range"`
	JobType     string         `json:"job_type"`
	Remote      bool           `json:"remote"`
	Source      string         `gorm:"index;default:'manual'" json:"source"`
	Skills      datatypes.JSON `json:"skills"`
	PostedAt    *time.Time     `json:"posted_at"`
	ScrapedAt   *time.Time     `json:"scraped_at"`
}

func (Job) TableName() string { return "jobs" }

// UserJobStatus is one user's view of one job. (user_id, job_id) is unique.
type UserJobStatus struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID    string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_user_job" json:"user_id"`
	JobID     uint       `gorm:"not null;uniqueIndex:idx_user_job" json:"job_id"`
	Applied   bool       `gorm:"default:false" json:"applied"`
	Saved     bool       `gorm:"default:false" json:"saved"`
	Status    *string    `json:"status"`
	Notes     string     `gorm:"type:text" json:"notes"`
	AppliedAt *time.Time `json:"applied_at"`
}

func (UserJobStatus) TableName() string { return "user_job_status" }

type JobEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	JobID     uint      `gorm:"index" json:"job_id"`
	UserID    string    `gorm:"type:varchar(36);index" json:"user_id"`
	EventType string    `json:"event_type"`
	Details   string    `gorm:"type:text" json:"details"`
}

func (JobEvent) TableName() string { return "job_events" }

const (
	EventStatusChange = "STATUS_CHANGE"
	EventEmailUpdate  = "EMAIL_UPDATE"
	EventApplied      = "APPLIED"
)

type ProcessedEmail struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"type:varchar(36);index"`
	CreatedAt time.Time
}

func (ProcessedEmail) TableName() string { return "processed_emails" }

// InboxState is the Gmail history bookmark for a user's inbox sync.
type InboxState struct {
	UserID        string `gorm:"type:varchar(36);primaryKey"`
	LastHistoryID uint64
	UpdatedAt     time.Time
}

func (InboxState) TableName() string { return "inbox_states" }
