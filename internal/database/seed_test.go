package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: NewGormLogger(logger.NewNop(), 0),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	return db
}

func TestSeedIsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, Seed(db))
	require.NoError(t, Seed(db))

	var plans int64
	db.Model(&models.SubscriptionPlan{}).Count(&plans)
	assert.Equal(t, int64(len(DefaultPlans())), plans)

	var scrapers []models.ScraperConfig
	require.NoError(t, db.Order("id").Find(&scrapers).Error)
	require.Len(t, scrapers, len(DefaultScrapers()))
	assert.Equal(t, "indeed", scrapers[0].Key)
	assert.False(t, scrapers[2].Enabled)
}

func TestFreePlanHasFiniteLimits(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, Seed(db))

	var free models.SubscriptionPlan
	require.NoError(t, db.Where("name = ?", models.FreePlanName).First(&free).Error)
	assert.Equal(t, 50, free.MaxJobsPerMonth)
	assert.Equal(t, []string{"Job tracking", "1 resume", "Calendar"}, models.Strings(free.Features))
}
