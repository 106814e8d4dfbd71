package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/database"
	"github.com/justsurfingit/jobtrackr/internal/models"
)

type gormAccounting struct {
	db *gorm.DB
}

func NewGormAccounting(db *gorm.DB) AccountingStore {
	return &gormAccounting{db: db}
}

func (s *gormAccounting) ActivePlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	if err := database.TxFromContext(ctx, s.db).Where("is_active = ?", true).Order("sort_order ASC, id ASC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (s *gormAccounting) PlanByID(ctx context.Context, id uint) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := database.TxFromContext(ctx, s.db).First(&plan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("plan not found")
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

func (s *gormAccounting) SubscriptionForUser(ctx context.Context, userID string) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := database.TxFromContext(ctx, s.db).Preload("Plan").Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("subscription not found")
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

func (s *gormAccounting) UsageForPeriod(ctx context.Context, userID string, periodStart time.Time) (*models.UserUsage, error) {
	db := database.TxFromContext(ctx, s.db)
	if err := ensureUsageRow(db, userID, periodStart); err != nil {
		return nil, err
	}
	start, _ := MonthPeriod(periodStart)
	var usage models.UserUsage
	if err := db.Where("user_id = ? AND period_start = ?", userID, start).First(&usage).Error; err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	return &usage, nil
}

func (s *gormAccounting) IncrementUsage(ctx context.Context, userID string, metric Metric, periodStart time.Time) error {
	_, err := s.TryConsume(ctx, userID, metric, periodStart, models.Unlimited)
	return err
}

func (s *gormAccounting) TryConsume(ctx context.Context, userID string, metric Metric, periodStart time.Time, limit int) (bool, error) {
	if !metric.Valid() {
		return false, apperrors.NewValidationError("unknown usage metric", string(metric))
	}
	db := database.TxFromContext(ctx, s.db)
	if err := ensureUsageRow(db, userID, periodStart); err != nil {
		return false, err
	}

	col := string(metric)
	start, _ := MonthPeriod(periodStart)
	q := db.Model(&models.UserUsage{}).Where("user_id = ? AND period_start = ?", userID, start)
	if limit != models.Unlimited {
		q = q.Where(col+" < ?", limit)
	}
	res := q.Update(col, gorm.Expr(col+" + ?", 1))
	if res.Error != nil {
		return false, fmt.Errorf("failed to increment %s: %w", col, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func ensureUsageRow(db *gorm.DB, userID string, periodStart time.Time) error {
	start, end := MonthPeriod(periodStart)
	row := models.UserUsage{UserID: userID, PeriodStart: start, PeriodEnd: end}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create usage row: %w", err)
	}
	return nil
}
