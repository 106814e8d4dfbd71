package models

import (
	"time"

	"gorm.io/datatypes"
)

type Resume struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID      string `gorm:"type:varchar(36);index;not null" json:"user_id"`
	FileName    string `json:"file_name"`
	StoragePath string `json:"-"`
	FileURL     string `json:"file_url"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
	ContentText string `gorm:"type:text" json:"content_text,omitempty"`
	IsDefault   bool   `gorm:"default:false" json:"is_default"`
}

func (Resume) TableName() string { return "resumes" }

type ResumeComparison struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID          string         `gorm:"type:varchar(36);index;not null" json:"user_id"`
	ResumeID        uint           `gorm:"index" json:"resume_id"`
	JobID           uint           `gorm:"index" json:"job_id"`
	MatchScore      int            `json:"match_score"`
	MatchedSkills   datatypes.JSON `json:"matched_skills"`
	MissingSkills   datatypes.JSON `json:"missing_skills"`
	Summary         string         `gorm:"type:text" json:"summary"`
	Recommendations datatypes.JSON `json:"recommendations"`
	Analyzer        string         `json:"analyzer"`
}

func (ResumeComparison) TableName() string { return "resume_comparisons" }
