package models

import "time"

const (
	EventInterview = "interview"
	EventFollowUp  = "follow_up"
	EventDeadline  = "deadline"
	EventOther     = "other"
)

type CalendarEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID          string     `gorm:"type:varchar(36);index;not null" json:"user_id"`
	JobID           *uint      `gorm:"index" json:"job_id"`
	Title           string     `gorm:"not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	EventType       string     `gorm:"default:'other'" json:"event_type"`
	StartTime       time.Time  `gorm:"index" json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	Location        string     `json:"location"`
	AllDay          bool       `json:"all_day"`
	ReminderMinutes int        `json:"reminder_minutes"`
}

func (CalendarEvent) TableName() string { return "calendar_events" }

const (
	NotificationInfo         = "info"
	NotificationSuccess      = "success"
	NotificationWarning      = "warning"
	NotificationError        = "error"
	NotificationStatusChange = "status_change"
	NotificationScraper      = "scraper"
)

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID  string     `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Type    string     `gorm:"default:'info'" json:"type"`
	Title   string     `json:"title"`
	Message string     `gorm:"type:text" json:"message"`
	Link    string     `json:"link"`
	Read    bool       `gorm:"default:false;index" json:"read"`
	ReadAt  *time.Time `json:"read_at"`
}

func (Notification) TableName() string { return "notifications" }
