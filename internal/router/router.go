package router

import (
	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/config"
	"github.com/justsurfingit/jobtrackr/internal/handlers"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/middleware"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Health        *handlers.HealthHandler
	Files         *handlers.FileHandler
	Auth          *handlers.AuthHandler
	Profile       *handlers.ProfileHandler
	Jobs          *handlers.JobHandler
	Resumes       *handlers.ResumeHandler
	Calendar      *handlers.CalendarHandler
	Notifications *handlers.NotificationHandler
	Subscriptions *handlers.SubscriptionHandler
	Admin         *handlers.AdminHandler
	Scrapers      *handlers.ScraperHandler
}

// Middleware holds the stateful middlewares. RateLimiter may be nil.
type Middleware struct {
	Auth        *middleware.AuthMiddleware
	Permission  *middleware.PermissionMiddleware
	RateLimiter *middleware.RateLimiter
}

type Router struct {
	engine *gin.Engine
	h      Handlers
	mw     Middleware
	log    logger.Interface
}

func New(h Handlers, mw Middleware, log logger.Interface) *Router {
	return &Router{engine: gin.New(), h: h, mw: mw, log: log}
}

// SetupRoutes configures all HTTP routes
func (r *Router) SetupRoutes(cfg *config.Config) {
	r.engine.Use(middleware.Recovery(r.log))
	r.engine.Use(middleware.CustomLogger(r.log))
	r.engine.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.engine.Use(middleware.SecurityHeaders())
	if r.mw.RateLimiter != nil {
		r.engine.Use(r.mw.RateLimiter.Limit())
	}
	r.engine.Use(middleware.ErrorHandler(r.log))

	r.engine.GET("/health", r.h.Health.Health)
	r.engine.GET("/files/:bucket/*key", r.h.Files.Serve)

	v1 := r.engine.Group("/api/v1")
	v1.GET("/health", r.h.Health.Health)
	r.setupAuthRoutes(v1)

	protected := v1.Group("", r.mw.Auth.RequireAuth(), r.mw.Permission.Authorize())
	r.setupProfileRoutes(protected)
	r.setupJobRoutes(protected)
	r.setupResumeRoutes(protected)
	r.setupCalendarRoutes(protected)
	r.setupNotificationRoutes(protected)
	r.setupSubscriptionRoutes(protected)
	r.setupAdminRoutes(protected.Group("/admin"))
}

func (r *Router) setupAuthRoutes(v1 *gin.RouterGroup) {
	auth := v1.Group("/auth")
	{
		auth.POST("/register", r.h.Auth.Register)
		auth.POST("/login", r.h.Auth.Login)
		auth.POST("/refresh", r.h.Auth.Refresh)
		auth.GET("/me", r.mw.Auth.RequireAuth(), r.h.Auth.Me)
	}
}

func (r *Router) setupProfileRoutes(g *gin.RouterGroup) {
	g.GET("/profile", r.h.Profile.Get)
	g.PUT("/profile", r.h.Profile.Update)
	g.POST("/profile/avatar", r.h.Profile.UploadAvatar)
}

func (r *Router) setupJobRoutes(g *gin.RouterGroup) {
	jobs := g.Group("/jobs")
	{
		jobs.GET("", r.h.Jobs.ListJobs)
		jobs.POST("", r.h.Jobs.CreateJob)
		jobs.POST("/extract", r.h.Jobs.ParseJob)
		jobs.GET("/stats", r.h.Jobs.Stats)
		jobs.GET("/:id", r.h.Jobs.GetJob)
		jobs.PUT("/:id/status", r.h.Jobs.UpdateStatus)
		jobs.PATCH("/:id/status", r.h.Jobs.PatchStatus)
		jobs.POST("/:id/save", r.h.Jobs.ToggleSaved)
		jobs.POST("/:id/apply", r.h.Jobs.ToggleApplied)
	}
}

func (r *Router) setupResumeRoutes(g *gin.RouterGroup) {
	resumes := g.Group("/resumes")
	{
		resumes.GET("", r.h.Resumes.List)
		resumes.POST("", r.h.Resumes.Upload)
		resumes.GET("/:id", r.h.Resumes.Get)
		resumes.DELETE("/:id", r.h.Resumes.Delete)
		resumes.PUT("/:id/default", r.h.Resumes.SetDefault)
		resumes.POST("/:id/compare", r.h.Resumes.Compare)
	}
	g.GET("/comparisons", r.h.Resumes.Comparisons)
}

func (r *Router) setupCalendarRoutes(g *gin.RouterGroup) {
	cal := g.Group("/calendar")
	{
		cal.GET("", r.h.Calendar.List)
		cal.POST("", r.h.Calendar.Create)
		cal.GET("/:id", r.h.Calendar.Get)
		cal.PUT("/:id", r.h.Calendar.Update)
		cal.DELETE("/:id", r.h.Calendar.Delete)
	}
}

func (r *Router) setupNotificationRoutes(g *gin.RouterGroup) {
	n := g.Group("/notifications")
	{
		n.GET("", r.h.Notifications.List)
		n.GET("/unread-count", r.h.Notifications.UnreadCount)
		n.GET("/stream", r.h.Notifications.Stream)
		n.POST("/read-all", r.h.Notifications.MarkAllRead)
		n.POST("/:id/read", r.h.Notifications.MarkRead)
		n.DELETE("/:id", r.h.Notifications.Delete)
	}
}

func (r *Router) setupSubscriptionRoutes(g *gin.RouterGroup) {
	sub := g.Group("/subscription")
	{
		sub.GET("", r.h.Subscriptions.Get)
		sub.POST("", r.h.Subscriptions.Create)
		sub.PUT("", r.h.Subscriptions.ChangePlan)
		sub.GET("/plans", r.h.Subscriptions.Plans)
		sub.POST("/cancel", r.h.Subscriptions.Cancel)
		sub.GET("/payments", r.h.Subscriptions.Payments)
	}
	g.GET("/usage", r.h.Subscriptions.Usage)
	g.GET("/usage/limits", r.h.Subscriptions.Limits)
}

func (r *Router) setupAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/stats", r.h.Admin.Stats)
	admin.GET("/logs", r.h.Admin.Logs)
	admin.GET("/plans/:id", r.h.Admin.GetPlan)

	users := admin.Group("/users")
	{
		users.GET("", r.h.Admin.ListUsers)
		users.GET("/:id", r.h.Admin.GetUser)
		users.PUT("/:id", r.h.Admin.UpdateUser)
		users.DELETE("/:id", r.h.Admin.DeleteUser)
		users.GET("/:id/subscription", r.h.Admin.UserSubscription)
		users.PUT("/:id/subscription", r.h.Admin.UpdateSubscription)
		users.POST("/:id/subscription/cancel", r.h.Admin.CancelSubscription)
		users.GET("/:id/usage", r.h.Admin.UserUsage)
		users.POST("/:id/usage/increment", r.h.Admin.IncrementUsage)
		users.POST("/:id/usage/consume", r.h.Admin.ConsumeUsage)
	}

	jobs := admin.Group("/jobs")
	{
		jobs.GET("", r.h.Admin.ListJobs)
		jobs.POST("", r.h.Admin.CreateJob)
		jobs.PUT("/:id", r.h.Admin.UpdateJob)
		jobs.DELETE("/:id", r.h.Admin.DeleteJob)
	}

	admin.GET("/resumes", r.h.Admin.ListResumes)
	admin.DELETE("/resumes/:id", r.h.Admin.DeleteResume)
	admin.GET("/subscriptions", r.h.Admin.ListSubscriptions)

	scrapers := admin.Group("/scrapers")
	{
		scrapers.GET("", r.h.Scrapers.ListConfigs)
		scrapers.GET("/health", r.h.Scrapers.Health)
		scrapers.GET("/stats", r.h.Scrapers.Stats)
		scrapers.GET("/logs", r.h.Scrapers.Logs)
		scrapers.GET("/remote-logs", r.h.Scrapers.RemoteLogs)
		scrapers.GET("/runs", r.h.Scrapers.ActiveRuns)
		scrapers.GET("/runs/:id", r.h.Scrapers.RunStatus)
		scrapers.POST("/runs/:id/cancel", r.h.Scrapers.CancelRun)
		scrapers.GET("/:key", r.h.Scrapers.GetConfig)
		scrapers.PUT("/:key", r.h.Scrapers.UpdateConfig)
		scrapers.POST("/:key/run", r.h.Scrapers.Run)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
