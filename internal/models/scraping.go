package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCanceled  = "canceled"
)

// ScraperConfig is the admin-editable payload sent to one scraper of the external service.
type ScraperConfig struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Key        string         `gorm:"column:scraper_key;uniqueIndex;not null" json:"key"`
	Name       string         `json:"name"`
	Enabled    bool           `json:"enabled"`
	Location   string         `json:"location"`
	Keywords   datatypes.JSON `json:"keywords"`
	Headless   bool           `json:"headless"`
	MaxPages   int            `gorm:"default:5" json:"max_pages"`
	DaysOld    int            `gorm:"default:7" json:"days_old"`
	LastRunAt  *time.Time     `json:"last_run_at"`
	LastStatus string         `json:"last_status"`
}

func (ScraperConfig) TableName() string { return "scraper_configs" }

type ScrapingLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ScraperKey      string     `gorm:"index;not null" json:"scraper_key"`
	Status          string     `gorm:"index" json:"status"`
	JobsFound       int        `json:"jobs_found"`
	JobsSaved       int        `json:"jobs_saved"`
	DurationSeconds float64    `json:"duration_seconds"`
	ErrorMessage    string     `gorm:"type:text" json:"error_message,omitempty"`
	TriggeredBy     string     `gorm:"type:varchar(36)" json:"triggered_by"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at"`
}

func (ScrapingLog) TableName() string { return "scraping_logs" }
