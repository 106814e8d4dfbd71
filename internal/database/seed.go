package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/models"
)

// DefaultPlans are created by Seed when missing. Limits of -1 are unlimited.
func DefaultPlans() []models.SubscriptionPlan {
	return []models.SubscriptionPlan{
		{
			Name: models.FreePlanName, Description: "Track a handful of applications",
			Features:        models.StringList([]string{"Job tracking", "1 resume", "Calendar"}),
			MaxJobsPerMonth: 50, MaxApplicationsPerMonth: 20, MaxResumes: 1, MaxComparisonsPerMonth: 3,
			IsActive: true, SortOrder: 0,
		},
		{
			Name: "Pro", Description: "For an active job search",
			PriceMonthly: 9.99, PriceYearly: 99,
			Features:        models.StringList([]string{"Unlimited tracking", "5 resumes", "Resume matching"}),
			MaxJobsPerMonth: 500, MaxApplicationsPerMonth: 200, MaxResumes: 5, MaxComparisonsPerMonth: 50,
			IsActive: true, SortOrder: 1,
		},
		{
			Name: "Premium", Description: "Everything, without limits",
			PriceMonthly: 19.99, PriceYearly: 199,
			Features:        models.StringList([]string{"Everything in Pro", "Unlimited resumes", "Unlimited matching"}),
			MaxJobsPerMonth: models.Unlimited, MaxApplicationsPerMonth: models.Unlimited,
			MaxResumes: models.Unlimited, MaxComparisonsPerMonth: models.Unlimited,
			IsActive: true, SortOrder: 2,
		},
	}
}

// DefaultScrapers mirror the scrapers exposed by the external scraping service.
func DefaultScrapers() []models.ScraperConfig {
	kw := models.StringList([]string{"software engineer"})
	return []models.ScraperConfig{
		{Key: "indeed", Name: "Indeed", Enabled: true, Location: "Remote", Keywords: kw, Headless: true, MaxPages: 5, DaysOld: 7},
		{Key: "linkedin", Name: "LinkedIn", Enabled: true, Location: "Remote", Keywords: kw, Headless: true, MaxPages: 3, DaysOld: 7},
		{Key: "careerbuilder", Name: "CareerBuilder", Enabled: false, Location: "Remote", Keywords: kw, Headless: true, MaxPages: 3, DaysOld: 14},
		{Key: "ziprecruiter", Name: "ZipRecruiter", Enabled: false, Location: "Remote", Keywords: kw, Headless: true, MaxPages: 3, DaysOld: 14},
	}
}

// Seed inserts default plans and scraper configs that do not exist yet.
func Seed(db *gorm.DB) error {
	for _, plan := range DefaultPlans() {
		var existing models.SubscriptionPlan
		err := db.Where("name = ?", plan.Name).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&plan).Error; err != nil {
				return fmt.Errorf("failed to seed plan %s: %w", plan.Name, err)
			}
			continue
		}
		if err != nil {
			return err
		}
	}

	for _, sc := range DefaultScrapers() {
		var existing models.ScraperConfig
		err := db.Where("scraper_key = ?", sc.Key).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&sc).Error; err != nil {
				return fmt.Errorf("failed to seed scraper %s: %w", sc.Key, err)
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
