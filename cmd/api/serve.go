package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/auth"
	"github.com/justsurfingit/jobtrackr/internal/cache"
	"github.com/justsurfingit/jobtrackr/internal/config"
	"github.com/justsurfingit/jobtrackr/internal/database"
	"github.com/justsurfingit/jobtrackr/internal/goroutine"
	"github.com/justsurfingit/jobtrackr/internal/handlers"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/middleware"
	"github.com/justsurfingit/jobtrackr/internal/realtime"
	"github.com/justsurfingit/jobtrackr/internal/router"
	"github.com/justsurfingit/jobtrackr/internal/scraper"
	"github.com/justsurfingit/jobtrackr/internal/services"
	"github.com/justsurfingit/jobtrackr/internal/storage"
	"github.com/justsurfingit/jobtrackr/internal/store"
)

const expiryInterval = time.Hour

func newServeCommand() *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Run database migrations and seed defaults on startup")
	return cmd
}

func serve(autoMigrate bool) error {
	cfg, log, db, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer database.Close(db)

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard

	if autoMigrate {
		log.Infow("running auto-migration")
		if err := database.Migrate(db); err != nil {
			return err
		}
		if err := database.Seed(db); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		log.Infow("redis connection established", "address", cfg.Redis.GetAddr())
	}

	app, err := buildApp(ctx, cfg, db, rdb, log)
	if err != nil {
		return err
	}
	defer app.scrapers.Shutdown()

	app.startWorkers(ctx, cfg)

	srv := &http.Server{
		Addr:        cfg.Server.GetAddr(),
		Handler:     app.router.GetEngine(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: notification streams stay open.
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("server starting", "address", cfg.Server.GetAddr(), "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Infow("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}
	log.Infow("server exited gracefully")
	return nil
}

type app struct {
	router        *router.Router
	subscriptions *services.SubscriptionService
	scrapers      *services.ScraperService
	inbox         *services.InboxService
	broker        *realtime.RedisBroker
	log           logger.Interface
}

func buildApp(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, log logger.Interface) (*app, error) {
	st, err := storage.New(cfg.Storage.Root, cfg.Storage.PublicBaseURL, cfg.Storage.MaxUploadMB)
	if err != nil {
		return nil, err
	}

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessExpMinutes, cfg.Auth.RefreshExpDays)
	enforcer, err := auth.NewEnforcer()
	if err != nil {
		return nil, err
	}

	accounting, err := store.NewAccountingStore(&cfg.Accounting, db)
	if err != nil {
		return nil, err
	}

	var analyzer services.Analyzer
	llmService, err := services.NewLLMService(ctx, &cfg.LLM, log.Named("llm"))
	switch {
	case errors.Is(err, services.ErrLLMDisabled):
		log.Warnw("gemini api key not set, AI features use fallbacks")
	case err != nil:
		return nil, err
	default:
		analyzer = llmService
	}

	var broker realtime.Broker = realtime.NewMemoryBroker()
	var redisBroker *realtime.RedisBroker
	if rdb != nil {
		redisBroker = realtime.NewRedisBroker(rdb, log.Named("realtime"))
		broker = redisBroker
	}

	subscriptions := services.NewSubscriptionService(db, accounting, log.Named("subscription"))
	usage := services.NewUsageService(accounting, subscriptions, log.Named("usage"))
	jobs := services.NewJobService(db, analyzer, usage, log.Named("job"))
	notifications := services.NewNotificationService(db, broker, log.Named("notification"))
	authService := services.NewAuthService(db, auth.NewBcryptPasswordHasher(cfg.Auth.BcryptCost), jwtService, st, log.Named("auth"))
	profiles := services.NewProfileService(db, st, log.Named("profile"))
	resumes := services.NewResumeService(db, st, usage, analyzer, log.Named("resume"))
	calendar := services.NewCalendarService(db)
	admin := services.NewAdminService(db, cache.NewJSONCache(rdb, "jobtrackr:admin:"), jobs, subscriptions, st, log.Named("admin"))

	scraperClient := scraper.NewClient(cfg.Scraper.BaseURL, cfg.Scraper.APIKey, cfg.Scraper.Timeout)
	scrapers := services.NewScraperService(db, scraperClient, notifications, &cfg.Scraper, log)

	inbox, err := buildInbox(ctx, cfg, db, analyzer, jobs, notifications, log)
	if err != nil {
		log.Warnw("inbox watcher disabled", "error", err)
	}

	h := router.Handlers{
		Health:        handlers.NewHealthHandler(db, rdb),
		Files:         handlers.NewFileHandler(st),
		Auth:          handlers.NewAuthHandler(authService),
		Profile:       handlers.NewProfileHandler(profiles),
		Jobs:          handlers.NewJobHandler(jobs),
		Resumes:       handlers.NewResumeHandler(resumes),
		Calendar:      handlers.NewCalendarHandler(calendar),
		Notifications: handlers.NewNotificationHandler(notifications),
		Subscriptions: handlers.NewSubscriptionHandler(subscriptions, usage),
		Admin:         handlers.NewAdminHandler(admin, accounting),
		Scrapers:      handlers.NewScraperHandler(scrapers),
	}
	mw := router.Middleware{
		Auth:       middleware.NewAuthMiddleware(jwtService, authService, log.Named("auth")),
		Permission: middleware.NewPermissionMiddleware(enforcer, log.Named("permission")),
	}
	if rdb != nil && cfg.RateLimit.Enabled {
		mw.RateLimiter = middleware.NewRateLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window, log.Named("ratelimit"))
	}

	r := router.New(h, mw, log.Named("http"))
	r.SetupRoutes(cfg)

	return &app{
		router:        r,
		subscriptions: subscriptions,
		scrapers:      scrapers,
		inbox:         inbox,
		broker:        redisBroker,
		log:           log,
	}, nil
}

// buildInbox returns nil without error when the watcher is turned off.
func buildInbox(ctx context.Context, cfg *config.Config, db *gorm.DB, analyzer services.Analyzer,
	jobs *services.JobService, notifications *services.NotificationService, log logger.Interface) (*services.InboxService, error) {
	if !cfg.Inbox.Enabled {
		return nil, nil
	}
	if analyzer == nil {
		return nil, fmt.Errorf("inbox sync needs the LLM to classify emails")
	}
	userID, err := services.ResolveInboxUser(ctx, db, cfg.Inbox.UserEmail)
	if err != nil {
		return nil, err
	}
	httpClient, err := auth.GmailClient(ctx, cfg.Inbox.CredentialsFile, cfg.Inbox.TokenFile)
	if err != nil {
		return nil, err
	}
	gmailService, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	log.Infow("gmail service connected", "user_id", userID)

	return services.NewInboxService(db, services.NewGmailSource(gmailService), analyzer,
		services.NewMatcherService(db), jobs, notifications, userID, log.Named("inbox")), nil
}

func (a *app) startWorkers(ctx context.Context, cfg *config.Config) {
	goroutine.SafeGo(a.log, "subscription-expiry", func() {
		a.subscriptions.RunExpiryLoop(ctx, expiryInterval)
	})
	if a.inbox != nil {
		goroutine.SafeGo(a.log, "inbox-watcher", func() {
			a.inbox.StartWatcher(ctx, cfg.Inbox.Interval)
		})
	}
	if a.broker != nil {
		goroutine.SafeGo(a.log, "realtime-relay", func() {
			if err := a.broker.Run(ctx, nil); err != nil && ctx.Err() == nil {
				a.log.Errorw("realtime relay stopped", "error", err)
			}
		})
	}
}
