package models

import (
	"time"

	"gorm.io/datatypes"
)

// Unlimited marks a plan limit without a ceiling.
const Unlimited = -1

const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
	SubscriptionExpired  = "expired"

	BillingMonthly = "monthly"
	BillingYearly  = "yearly"

	PaymentSucceeded = "succeeded"
	PaymentPending   = "pending"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"

	FreePlanName = "Free"
)

type SubscriptionPlan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name                    string         `gorm:"uniqueIndex;not null" json:"name"`
	Description             string         `json:"description"`
	PriceMonthly            float64        `json:"price_monthly"`
	PriceYearly             float64        `json:"price_yearly"`
	Currency                string         `gorm:"default:'usd'" json:"currency"`
	Features                datatypes.JSON `json:"features"`
	MaxJobsPerMonth         int            `json:"max_jobs_per_month"`
	MaxApplicationsPerMonth int            `json:"max_applications_per_month"`
	MaxResumes              int            `json:"max_resumes"`
	MaxComparisonsPerMonth  int            `json:"max_comparisons_per_month"`
	IsActive                bool           `json:"is_active"`
	SortOrder               int            `gorm:"default:0" json:"sort_order"`
}

func (SubscriptionPlan) TableName() string { return "subscription_plans" }

// Price returns the charge for one period of the given billing cycle.
func (p *SubscriptionPlan) Price(cycle string) float64 {
	if cycle == BillingYearly {
		return p.PriceYearly
	}
	return p.PriceMonthly
}

type UserSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID             string            `gorm:"type:varchar(36);uniqueIndex;not null" json:"user_id"`
	PlanID             uint              `gorm:"index;not null" json:"plan_id"`
	Plan               *SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Status             string            `gorm:"index;default:'active'" json:"status"`
	BillingCycle       string            `gorm:"default:'monthly'" json:"billing_cycle"`
	CurrentPeriodStart time.Time         `json:"current_period_start"`
	CurrentPeriodEnd   time.Time         `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CanceledAt         *time.Time        `json:"canceled_at"`
}

func (UserSubscription) TableName() string { return "user_subscriptions" }

func (s *UserSubscription) IsActive() bool {
	return s.Status == SubscriptionActive || s.Status == SubscriptionTrialing
}

// UserUsage counts metered actions in one monthly period.
type UserUsage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID           string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_usage_period" json:"user_id"`
	PeriodStart      time.Time `gorm:"not null;uniqueIndex:idx_usage_period" json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	JobsScraped      int       `gorm:"default:0" json:"jobs_scraped"`
	ApplicationsSent int       `gorm:"default:0" json:"applications_sent"`
	ResumesUploaded  int       `gorm:"default:0" json:"resumes_uploaded"`
	ComparisonsRun   int       `gorm:"default:0" json:"comparisons_run"`
}

func (UserUsage) TableName() string { return "user_usage" }

type PaymentHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID         string     `gorm:"type:varchar(36);index;not null" json:"user_id"`
	SubscriptionID uint       `gorm:"index" json:"subscription_id"`
	PlanID         uint       `json:"plan_id"`
	Amount         float64    `json:"amount"`
	Currency       string     `gorm:"default:'usd'" json:"currency"`
	Status         string     `gorm:"index" json:"status"`
	PaymentMethod  string     `json:"payment_method"`
	Description    string     `json:"description"`
	ExternalID     string     `json:"external_id"`
	PaidAt         *time.Time `json:"paid_at"`
}

func (PaymentHistory) TableName() string { return "payment_history" }
