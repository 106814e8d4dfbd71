package services

import (
	"context"
	"time"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/store"
)

// PlanResolver returns the plan whose limits apply to a user right now.
type PlanResolver interface {
	EffectivePlan(ctx context.Context, userID string) (*models.SubscriptionPlan, error)
}

type UsageService struct {
	Store  store.AccountingStore
	Plans  PlanResolver
	Logger logger.Interface
	now    func() time.Time
}

func NewUsageService(s store.AccountingStore, plans PlanResolver, log logger.Interface) *UsageService {
	return &UsageService{Store: s, Plans: plans, Logger: log, now: time.Now}
}

// CheckUsageLimits compares the period's counters with the plan. A capability is lost once
// the counter reaches a finite limit.
func CheckUsageLimits(usage *models.UserUsage, plan *models.SubscriptionPlan) dtos.UsageLimits {
	return dtos.UsageLimits{
		CanScrapeJobs:         withinLimit(usage.JobsScraped, plan.MaxJobsPerMonth),
		CanApply:              withinLimit(usage.ApplicationsSent, plan.MaxApplicationsPerMonth),
		CanUploadResume:       withinLimit(usage.ResumesUploaded, plan.MaxResumes),
		CanCompareResume:      withinLimit(usage.ComparisonsRun, plan.MaxComparisonsPerMonth),
		JobsRemaining:         remaining(usage.JobsScraped, plan.MaxJobsPerMonth),
		ApplicationsRemaining: remaining(usage.ApplicationsSent, plan.MaxApplicationsPerMonth),
		ResumesRemaining:      remaining(usage.ResumesUploaded, plan.MaxResumes),
		ComparisonsRemaining:  remaining(usage.ComparisonsRun, plan.MaxComparisonsPerMonth),
	}
}

func withinLimit(used, limit int) bool {
	return limit == models.Unlimited || used < limit
}

func remaining(used, limit int) int {
	if limit == models.Unlimited {
		return models.Unlimited
	}
	return max(limit-used, 0)
}

// GetUsage returns the current period's counters with the plan and derived limits.
func (s *UsageService) GetUsage(ctx context.Context, userID string) (*dtos.UsageSummary, error) {
	plan, err := s.Plans.EffectivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	usage, err := s.Store.UsageForPeriod(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	return &dtos.UsageSummary{Usage: usage, Plan: plan, Limits: CheckUsageLimits(usage, plan)}, nil
}

// Consume counts one use of metric against the user's plan. It fails with a forbidden error,
// and counts nothing, when the limit is already reached.
func (s *UsageService) Consume(ctx context.Context, userID string, metric store.Metric) error {
	plan, err := s.Plans.EffectivePlan(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.Store.TryConsume(ctx, userID, metric, s.now(), metric.Limit(plan))
	if err != nil {
		return err
	}
	if !ok {
		s.Logger.Infow("usage limit reached", "user_id", userID, "metric", metric, "plan", plan.Name)
		return apperrors.NewForbiddenError("usage limit reached", string(metric))
	}
	return nil
}

// Record counts one use of metric without checking the plan.
func (s *UsageService) Record(ctx context.Context, userID string, metric store.Metric) error {
	return s.Store.IncrementUsage(ctx, userID, metric, s.now())
}
