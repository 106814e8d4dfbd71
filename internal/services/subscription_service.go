package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/store"
)

// SubscriptionService reads through the accounting store and writes to the local database.
type SubscriptionService struct {
	DB     *gorm.DB
	Store  store.AccountingStore
	Logger logger.Interface
	now    func() time.Time
}

func NewSubscriptionService(db *gorm.DB, s store.AccountingStore, log logger.Interface) *SubscriptionService {
	return &SubscriptionService{DB: db, Store: s, Logger: log, now: time.Now}
}

func (s *SubscriptionService) Plans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	return s.Store.ActivePlans(ctx)
}

func (s *SubscriptionService) freePlan(ctx context.Context) (*models.SubscriptionPlan, error) {
	plans, err := s.Store.ActivePlans(ctx)
	if err != nil {
		return nil, err
	}
	for i := range plans {
		if plans[i].Name == models.FreePlanName {
			return &plans[i], nil
		}
	}
	return nil, apperrors.NewInternalError("free plan is not configured")
}

// GetUserSubscription returns the user's subscription. Users without one get an unsaved
// subscription to the free plan for the current month.
func (s *SubscriptionService) GetUserSubscription(ctx context.Context, userID string) (*models.UserSubscription, error) {
	sub, err := s.Store.SubscriptionForUser(ctx, userID)
	if err == nil {
		return sub, nil
	}
	if !apperrors.IsNotFoundError(err) {
		return nil, err
	}

	free, err := s.freePlan(ctx)
	if err != nil {
		return nil, err
	}
	start, end := store.MonthPeriod(s.now())
	return &models.UserSubscription{
		UserID:             userID,
		PlanID:             free.ID,
		Plan:               free,
		Status:             models.SubscriptionActive,
		BillingCycle:       models.BillingMonthly,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
	}, nil
}

// EffectivePlan is the subscribed plan while the subscription is usable, the free plan otherwise.
// A canceled subscription stays usable until its period ends.
func (s *SubscriptionService) EffectivePlan(ctx context.Context, userID string) (*models.SubscriptionPlan, error) {
	sub, err := s.GetUserSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	usable := sub.IsActive() ||
		(sub.Status == models.SubscriptionCanceled && s.now().Before(sub.CurrentPeriodEnd))
	if usable && sub.Plan != nil {
		return sub.Plan, nil
	}
	return s.freePlan(ctx)
}

// CreateSubscription puts the user on planID, replacing any previous subscription, and records
// a payment for paid plans.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, userID string, planID uint, cycle string) (*models.UserSubscription, error) {
	if cycle == "" {
		cycle = models.BillingMonthly
	}
	if cycle != models.BillingMonthly && cycle != models.BillingYearly {
		return nil, apperrors.NewValidationError("invalid billing cycle", cycle)
	}

	var sub models.UserSubscription
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan models.SubscriptionPlan
		if err := tx.First(&plan, planID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFoundError("plan not found")
			}
			return err
		}
		if !plan.IsActive {
			return apperrors.NewValidationError("plan is not available")
		}

		now := s.now().UTC()
		end := now.AddDate(0, 1, 0)
		if cycle == models.BillingYearly {
			end = now.AddDate(1, 0, 0)
		}

		row := models.UserSubscription{
			UserID:             userID,
			PlanID:             plan.ID,
			Status:             models.SubscriptionActive,
			BillingCycle:       cycle,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   end,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"plan_id":              row.PlanID,
				"status":               row.Status,
				"billing_cycle":        row.BillingCycle,
				"current_period_start": row.CurrentPeriodStart,
				"current_period_end":   row.CurrentPeriodEnd,
				"cancel_at_period_end": false,
				"canceled_at":          nil,
				"updated_at":           now,
			}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to save subscription: %w", err)
		}

		if err := tx.Preload("Plan").Where("user_id = ?", userID).First(&sub).Error; err != nil {
			return err
		}

		if amount := plan.Price(cycle); amount > 0 {
			payment := models.PaymentHistory{
				UserID:         userID,
				SubscriptionID: sub.ID,
				PlanID:         plan.ID,
				Amount:         amount,
				Currency:       plan.Currency,
				Status:         models.PaymentSucceeded,
				PaymentMethod:  "manual",
				Description:    fmt.Sprintf("%s (%s)", plan.Name, cycle),
				PaidAt:         &now,
			}
			if err := tx.Create(&payment).Error; err != nil {
				return fmt.Errorf("failed to record payment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("subscription created", "user_id", userID, "plan_id", planID, "billing_cycle", cycle)
	return &sub, nil
}

// ChangePlan moves an existing subscriber to another plan.
func (s *SubscriptionService) ChangePlan(ctx context.Context, userID string, planID uint, cycle string) (*models.UserSubscription, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.UserSubscription{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperrors.NewNotFoundError("subscription not found")
	}
	return s.CreateSubscription(ctx, userID, planID, cycle)
}

// CancelSubscription marks the subscription canceled now. With atPeriodEnd the plan stays
// usable until the current period ends.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, userID string, atPeriodEnd bool) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).First(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFoundError("subscription not found")
			}
			return err
		}
		if sub.Status == models.SubscriptionCanceled || sub.Status == models.SubscriptionExpired {
			return apperrors.NewConflictError("subscription is already " + sub.Status)
		}

		now := s.now().UTC()
		updates := map[string]any{
			"status":               models.SubscriptionCanceled,
			"canceled_at":          now,
			"cancel_at_period_end": atPeriodEnd,
		}
		if !atPeriodEnd {
			updates["current_period_end"] = now
		}
		if err := tx.Model(&sub).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to cancel subscription: %w", err)
		}
		return tx.Preload("Plan").First(&sub, sub.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("subscription canceled", "user_id", userID, "at_period_end", atPeriodEnd)
	return &sub, nil
}

func (s *SubscriptionService) PaymentHistory(ctx context.Context, userID string) ([]models.PaymentHistory, error) {
	var payments []models.PaymentHistory
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// ExpireOverdue marks subscriptions whose period ended before now as expired. Free plan
// subscriptions do not expire.
func (s *SubscriptionService) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	freePlans := s.DB.Model(&models.SubscriptionPlan{}).Select("id").Where("price_monthly = 0 AND price_yearly = 0")
	res := s.DB.WithContext(ctx).Model(&models.UserSubscription{}).
		Where("status IN ?", []string{models.SubscriptionActive, models.SubscriptionTrialing, models.SubscriptionPastDue, models.SubscriptionCanceled}).
		Where("current_period_end < ?", now.UTC()).
		Where("plan_id NOT IN (?)", freePlans).
		Update("status", models.SubscriptionExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire subscriptions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RunExpiryLoop calls ExpireOverdue every interval until ctx is done.
func (s *SubscriptionService) RunExpiryLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ExpireOverdue(ctx, s.now())
			if err != nil {
				s.Logger.Errorw("subscription expiry failed", "error", err)
				continue
			}
			if n > 0 {
				s.Logger.Infow("subscriptions expired", "count", n)
			}
		}
	}
}
