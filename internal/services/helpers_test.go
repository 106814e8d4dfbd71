package services

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/store"
)

// fakeAnalyzer answers with canned responses and records what it was asked.
type fakeAnalyzer struct {
	extract     string
	compare     string
	status      string
	role        string
	err         error
	lastExtract string
	statusCalls int
}

func (f *fakeAnalyzer) ExtractJobDetails(ctx context.Context, text string) (string, error) {
	f.lastExtract = text
	return f.extract, f.err
}

func (f *fakeAnalyzer) CompareResume(ctx context.Context, resumeText, jobText string) (string, error) {
	return f.compare, f.err
}

func (f *fakeAnalyzer) AnalyzeEmailStatus(ctx context.Context, company, subject, body string) (string, error) {
	f.statusCalls++
	return f.status, f.err
}

// IdentifyJobRole picks the title equal to f.role, or -1 when none matches.
func (f *fakeAnalyzer) IdentifyJobRole(ctx context.Context, titles []string, subject, body string) int {
	return slices.Index(titles, f.role)
}

var errAnalyzer = errors.New("model unavailable")

func newAccounting(db *gorm.DB) (*SubscriptionService, *UsageService) {
	acc := store.NewGormAccounting(db)
	subs := NewSubscriptionService(db, acc, logger.NewNop())
	return subs, NewUsageService(acc, subs, logger.NewNop())
}

// setUsage overwrites the user's counters for the current month.
func setUsage(t *testing.T, db *gorm.DB, userID string, u models.UserUsage) {
	t.Helper()
	start, end := store.MonthPeriod(time.Now())
	u.UserID = userID
	u.PeriodStart = start
	u.PeriodEnd = end
	require.NoError(t, db.Where("user_id = ?", userID).Delete(&models.UserUsage{}).Error)
	require.NoError(t, db.Create(&u).Error)
}

func currentUsage(t *testing.T, db *gorm.DB, userID string) models.UserUsage {
	t.Helper()
	start, _ := store.MonthPeriod(time.Now())
	var u models.UserUsage
	require.NoError(t, db.Where("user_id = ? AND period_start = ?", userID, start).First(&u).Error)
	return u
}
