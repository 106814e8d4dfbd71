package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/config"
	"github.com/justsurfingit/jobtrackr/internal/database"
	"github.com/justsurfingit/jobtrackr/internal/logger"
)

var env string

func main() {
	rootCmd := &cobra.Command{
		Use:          "jobtrackr",
		Short:        "Job-search tracking backend",
		Long:         `jobtrackr serves the job tracker API, the admin dashboard endpoints and the scraper control panel.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Server mode override (debug, release, test)")

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSeedCommand(),
		newInboxAuthCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads config, initializes the logger and, when withDB is set, opens the database.
func bootstrap(withDB bool) (*config.Config, logger.Interface, *gorm.DB, error) {
	if envVar := os.Getenv("ENV"); env == "" && envVar != "" {
		env = envVar
	}
	cfg, err := config.Load(env)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	if !withDB {
		return cfg, log, nil, nil
	}
	db, err := database.Connect(&cfg.Database, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, db, nil
}
