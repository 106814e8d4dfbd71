package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

type UserProfile struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	FullName     string     `json:"full_name"`
	Role         string     `gorm:"default:'user';index" json:"role"`
	Status       string     `gorm:"default:'active'" json:"status"`
	AvatarURL    string     `json:"avatar_url"`
	Phone        string     `json:"phone"`
	Location     string     `json:"location"`
	Bio          string     `gorm:"type:text" json:"bio"`
	JobTitle     string     `json:"job_title"`
	LinkedInURL  string     `gorm:"column:linkedin_url" json:"linkedin_url"`
	GitHubURL    string     `gorm:"column:github_url" json:"github_url"`
	WebsiteURL   string     `json:"website_url"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

func (UserProfile) TableName() string { return "user_profiles" }

func (u *UserProfile) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}

func (u *UserProfile) IsAdmin() bool { return u.Role == RoleAdmin }

type AdminLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	AdminID    string    `gorm:"type:varchar(36);index" json:"admin_id"`
	Action     string    `gorm:"index" json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Details    string    `gorm:"type:text" json:"details"`
	IPAddress  string    `json:"ip_address"`
}

func (AdminLog) TableName() string { return "admin_logs" }
