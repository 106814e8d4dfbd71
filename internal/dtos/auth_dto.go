package dtos

import (
	"github.com/justsurfingit/jobtrackr/internal/auth"
	"github.com/justsurfingit/jobtrackr/internal/models"
)

type RegisterRequest struct {
	Email           string `json:"email" form:"email" binding:"required,email"`
	Password        string `json:"password" form:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" binding:"required"`
	FullName        string `json:"full_name" form:"full_name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type AuthResponse struct {
	User   *models.UserProfile `json:"user"`
	Tokens *auth.TokenPair     `json:"tokens"`
}

type UpdateProfileRequest struct {
	FullName    *string `json:"full_name" binding:"omitempty,max=200"`
	Phone       *string `json:"phone" binding:"omitempty,max=50"`
	Location    *string `json:"location"`
	Bio         *string `json:"bio" binding:"omitempty,max=2000"`
	JobTitle    *string `json:"job_title"`
	LinkedInURL *string `json:"linkedin_url" binding:"omitempty,url"`
	GitHubURL   *string `json:"github_url" binding:"omitempty,url"`
	WebsiteURL  *string `json:"website_url" binding:"omitempty,url"`
}
