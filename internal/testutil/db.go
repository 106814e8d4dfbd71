// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/database"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
)

// NewTestDB returns a migrated and seeded in-memory SQLite database. The pool is pinned to one
// connection so every query sees the same memory database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: database.NewGormLogger(logger.NewNop(), 0),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.Seed(db))
	return db
}

// CreateUser inserts a profile with the given email and role.
func CreateUser(t *testing.T, db *gorm.DB, email, role string) *models.UserProfile {
	t.Helper()
	u := &models.UserProfile{Email: email, PasswordHash: "x", FullName: email, Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateJob inserts a job with the given title and company.
func CreateJob(t *testing.T, db *gorm.DB, title, company string) *models.Job {
	t.Helper()
	j := &models.Job{Title: title, Company: company, JobURL: "https://jobs.example.com/" + title}
	require.NoError(t, db.Create(j).Error)
	return j
}

// Plan loads a seeded plan by name.
func Plan(t *testing.T, db *gorm.DB, name string) *models.SubscriptionPlan {
	t.Helper()
	var p models.SubscriptionPlan
	require.NoError(t, db.Where("name = ?", name).First(&p).Error)
	return &p
}
