package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/justsurfingit/jobtrackr/internal/auth"
	"github.com/justsurfingit/jobtrackr/internal/database"
	"github.com/justsurfingit/jobtrackr/internal/services"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, err := bootstrap(true)
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Infow("migrations completed")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	var adminEmail, adminPassword string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert default plans and scraper configs, and optionally an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := bootstrap(true)
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.Seed(db); err != nil {
				return err
			}
			log.Infow("default plans and scrapers seeded")

			if adminEmail == "" {
				adminEmail = os.Getenv("JOBTRACKR_ADMIN_EMAIL")
			}
			if adminPassword == "" {
				adminPassword = os.Getenv("JOBTRACKR_ADMIN_PASSWORD")
			}
			if adminEmail == "" {
				return nil
			}

			jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessExpMinutes, cfg.Auth.RefreshExpDays)
			authService := services.NewAuthService(db, auth.NewBcryptPasswordHasher(cfg.Auth.BcryptCost), jwtService, nil, log)
			admin, err := authService.EnsureAdmin(cmd.Context(), adminEmail, adminPassword)
			if err != nil {
				return err
			}
			log.Infow("admin account ready", "user_id", admin.ID, "email", admin.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "Email of the admin account to create or promote")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "Password of the admin account")
	return cmd
}

func newInboxAuthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inbox-auth",
		Short: "Authorize Gmail access for the inbox watcher and store the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, _, err := bootstrap(false)
			if err != nil {
				return err
			}
			if err := auth.AuthorizeGmail(cmd.Context(), cfg.Inbox.CredentialsFile, cfg.Inbox.TokenFile, os.Stdin, os.Stdout); err != nil {
				return err
			}
			log.Infow("gmail token stored", "path", cfg.Inbox.TokenFile)
			return nil
		},
	}
}
