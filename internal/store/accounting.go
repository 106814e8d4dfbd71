// Package store holds data access that can be served by more than one transport.
package store

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/config"
	"github.com/justsurfingit/jobtrackr/internal/models"
)

// Metric names a metered counter of UserUsage. The value is its column.
type Metric string

const (
	MetricJobsScraped      Metric = "jobs_scraped"
	MetricApplicationsSent Metric = "applications_sent"
	MetricResumesUploaded  Metric = "resumes_uploaded"
	MetricComparisonsRun   Metric = "comparisons_run"
)

func (m Metric) Valid() bool {
	switch m {
	case MetricJobsScraped, MetricApplicationsSent, MetricResumesUploaded, MetricComparisonsRun:
		return true
	}
	return false
}

// Limit returns the plan ceiling for the metric.
func (m Metric) Limit(plan *models.SubscriptionPlan) int {
	switch m {
	case MetricJobsScraped:
		return plan.MaxJobsPerMonth
	case MetricApplicationsSent:
		return plan.MaxApplicationsPerMonth
	case MetricResumesUploaded:
		return plan.MaxResumes
	case MetricComparisonsRun:
		return plan.MaxComparisonsPerMonth
	}
	return 0
}

// MonthPeriod returns the UTC calendar month containing t as [start, end).
func MonthPeriod(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// AccountingStore reads plans, subscriptions and usage counters, and performs the usage writes
// that must be atomic.
type AccountingStore interface {
	ActivePlans(ctx context.Context) ([]models.SubscriptionPlan, error)
	PlanByID(ctx context.Context, id uint) (*models.SubscriptionPlan, error)
	// SubscriptionForUser returns the subscription with its plan loaded, or a not_found error.
	SubscriptionForUser(ctx context.Context, userID string) (*models.UserSubscription, error)
	// UsageForPeriod returns the counters of the period starting at periodStart, creating the row
	// on first access.
	UsageForPeriod(ctx context.Context, userID string, periodStart time.Time) (*models.UserUsage, error)
	IncrementUsage(ctx context.Context, userID string, metric Metric, periodStart time.Time) error
	// TryConsume increments the counter only while it is below limit. A limit of models.Unlimited
	// always succeeds. It reports whether the increment happened.
	TryConsume(ctx context.Context, userID string, metric Metric, periodStart time.Time, limit int) (bool, error)
}

// NewAccountingStore picks the transport named by cfg.Source.
func NewAccountingStore(cfg *config.AccountingConfig, db *gorm.DB) (AccountingStore, error) {
	switch cfg.Source {
	case "", "database":
		return NewGormAccounting(db), nil
	case "api":
		return NewAPIAccounting(cfg.APIBaseURL, cfg.APIToken, &http.Client{Timeout: cfg.Timeout}), nil
	default:
		return nil, fmt.Errorf("unknown accounting source %q", cfg.Source)
	}
}
