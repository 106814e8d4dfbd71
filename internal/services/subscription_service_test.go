package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/store"
	"github.com/justsurfingit/jobtrackr/internal/testutil"
)

func TestCheckUsageLimits(t *testing.T) {
	plan := &models.SubscriptionPlan{
		MaxJobsPerMonth:         10,
		MaxApplicationsPerMonth: models.Unlimited,
		MaxResumes:              2,
		MaxComparisonsPerMonth:  0,
	}

	tests := []struct {
		name  string
		usage models.UserUsage
		check func(t *testing.T, got bool, remaining int)
	}{
		{"below limit", models.UserUsage{JobsScraped: 9}, func(t *testing.T, got bool, rem int) {
			assert.True(t, got)
			assert.Equal(t, 1, rem)
		}},
		{"at limit", models.UserUsage{JobsScraped: 10}, func(t *testing.T, got bool, rem int) {
			assert.False(t, got)
			assert.Equal(t, 0, rem)
		}},
		{"over limit", models.UserUsage{JobsScraped: 12}, func(t *testing.T, got bool, rem int) {
			assert.False(t, got)
			assert.Equal(t, 0, rem)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := CheckUsageLimits(&tt.usage, plan)
			tt.check(t, limits.CanScrapeJobs, limits.JobsRemaining)
		})
	}

	limits := CheckUsageLimits(&models.UserUsage{ApplicationsSent: 1_000_000, ResumesUploaded: 1}, plan)
	assert.True(t, limits.CanApply)
	assert.Equal(t, models.Unlimited, limits.ApplicationsRemaining)
	assert.True(t, limits.CanUploadResume)
	assert.False(t, limits.CanCompareResume, "a zero limit allows nothing")
}

func TestGetUserSubscriptionFallsBackToFree(t *testing.T) {
	db := testutil.NewTestDB(t)
	subs, usage := newAccounting(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "u@example.com", models.RoleUser)

	sub, err := subs.GetUserSubscription(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, sub.ID)
	require.NotNil(t, sub.Plan)
	assert.Equal(t, models.FreePlanName, sub.Plan.Name)

	summary, err := usage.GetUsage(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FreePlanName, summary.Plan.Name)
	assert.True(t, summary.Limits.CanScrapeJobs)
	assert.Equal(t, summary.Plan.MaxJobsPerMonth, summary.Limits.JobsRemaining)
}

func TestCreateSubscriptionRecordsPayment(t *testing.T) {
	db := testutil.NewTestDB(t)
	subs, _ := newAccounting(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "u@example.com", models.RoleUser)
	pro := testutil.Plan(t, db, "Pro")

	sub, err := subs.CreateSubscription(ctx, user.ID, pro.ID, models.BillingYearly)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, pro.ID, sub.PlanID)
	assert.WithinDuration(t, sub.CurrentPeriodStart.AddDate(1, 0, 0), sub.CurrentPeriodEnd, time.Second)

	payments, err := subs.PaymentHistory(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, pro.PriceYearly, payments[0].Amount)
	assert.Equal(t, models.PaymentSucceeded, payments[0].Status)

	plan, err := subs.EffectivePlan(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pro", plan.Name)

	// Switching to the free plan replaces the row and charges nothing.
	free := testutil.Plan(t, db, models.FreePlanName)
	sub, err = subs.ChangePlan(ctx, user.ID, free.ID, "")
	require.NoError(t, err)
	assert.Equal(t, free.ID, sub.PlanID)

	var count int64
	require.NoError(t, db.Model(&models.UserSubscription{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	payments, err = subs.PaymentHistory(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	_, err = subs.CreateSubscription(ctx, user.ID, pro.ID, "weekly")
	assert.True(t, apperrors.IsValidationError(err))
	_, err = subs.CreateSubscription(ctx, user.ID, 9999, "")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestCancelSubscriptionSetsCanceledAt(t *testing.T) {
	db := testutil.NewTestDB(t)
	subs, _ := newAccounting(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "u@example.com", models.RoleUser)
	pro := testutil.Plan(t, db, "Pro")

	_, err := subs.CreateSubscription(ctx, user.ID, pro.ID, "")
	require.NoError(t, err)

	sub, err := subs.CancelSubscription(ctx, user.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCanceled, sub.Status)
	require.NotNil(t, sub.CanceledAt)
	assert.True(t, sub.CancelAtPeriodEnd)

	var stored models.UserSubscription
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&stored).Error)
	assert.Equal(t, models.SubscriptionCanceled, stored.Status)
	assert.NotNil(t, stored.CanceledAt)

	// Still Pro until the period ends.
	plan, err := subs.EffectivePlan(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pro", plan.Name)

	_, err = subs.CancelSubscription(ctx, user.ID, false)
	assert.True(t, apperrors.IsConflictError(err))

	other := testutil.CreateUser(t, db, "o@example.com", models.RoleUser)
	_, err = subs.CancelSubscription(ctx, other.ID, false)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestCancelImmediatelyFallsBackToFree(t *testing.T) {
	db := testutil.NewTestDB(t)
	subs, _ := newAccounting(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "u@example.com", models.RoleUser)
	pro := testutil.Plan(t, db, "Pro")
	_, err := subs.CreateSubscription(ctx, user.ID, pro.ID, "")
	require.NoError(t, err)

	_, err = subs.CancelSubscription(ctx, user.ID, false)
	require.NoError(t, err)

	subs.now = func() time.Time { return time.Now().Add(time.Minute) }
	plan, err := subs.EffectivePlan(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FreePlanName, plan.Name)
}

func TestExpireOverdue(t *testing.T) {
	db := testutil.NewTestDB(t)
	subs, _ := newAccounting(db)
	ctx := context.Background()
	pro := testutil.Plan(t, db, "Pro")
	free := testutil.Plan(t, db, models.FreePlanName)
	now := time.Now().UTC()
	past := now.Add(-48 * time.Hour)

	paid := testutil.CreateUser(t, db, "paid@example.com", models.RoleUser)
	gratis := testutil.CreateUser(t, db, "free@example.com", models.RoleUser)
	current := testutil.CreateUser(t, db, "current@example.com", models.RoleUser)
	rows := []models.UserSubscription{
		{UserID: paid.ID, PlanID: pro.ID, Status: models.SubscriptionActive, CurrentPeriodStart: past.AddDate(0, -1, 0), CurrentPeriodEnd: past},
		{UserID: gratis.ID, PlanID: free.ID, Status: models.SubscriptionActive, CurrentPeriodStart: past.AddDate(0, -1, 0), CurrentPeriodEnd: past},
		{UserID: current.ID, PlanID: pro.ID, Status: models.SubscriptionActive, CurrentPeriodStart: now, CurrentPeriodEnd: now.AddDate(0, 1, 0)},
	}
	require.NoError(t, db.Create(&rows).Error)

	n, err := subs.ExpireOverdue(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	statusOf := func(userID string) string {
		t.Helper()
		var sub models.UserSubscription
		require.NoError(t, db.Where("user_id = ?", userID).First(&sub).Error)
		return sub.Status
	}
	assert.Equal(t, models.SubscriptionExpired, statusOf(paid.ID))
	assert.Equal(t, models.SubscriptionActive, statusOf(gratis.ID), "free subscriptions never expire")
	assert.Equal(t, models.SubscriptionActive, statusOf(current.ID))
}

func TestConsumeStopsAtLimit(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, usage := newAccounting(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "u@example.com", models.RoleUser)
	free := testutil.Plan(t, db, models.FreePlanName)

	ok, denied := 0, 0
	for i := 0; i < free.MaxComparisonsPerMonth+4; i++ {
		err := usage.Consume(ctx, user.ID, store.MetricComparisonsRun)
		if err == nil {
			ok++
		} else if apperrors.IsForbiddenError(err) {
			denied++
		}
	}

	assert.Equal(t, free.MaxComparisonsPerMonth, ok)
	assert.Equal(t, 4, denied)
	assert.Equal(t, free.MaxComparisonsPerMonth, currentUsage(t, db, user.ID).ComparisonsRun)

	require.NoError(t, usage.Record(ctx, user.ID, store.MetricComparisonsRun))
	assert.Equal(t, free.MaxComparisonsPerMonth+1, currentUsage(t, db, user.ID).ComparisonsRun)
}
