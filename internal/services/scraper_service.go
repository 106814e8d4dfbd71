package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/config"
	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/goroutine"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/scraper"
)

// RunProgress is the live view of one scraper run.
type RunProgress struct {
	LogID      uint                `json:"log_id"`
	ScraperKey string              `json:"scraper_key"`
	Status     string              `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	Remote     *scraper.Stats      `json:"remote,omitempty"`
	PolledAt   *time.Time          `json:"polled_at,omitempty"`
	Log        *models.ScrapingLog `json:"log,omitempty"`
}

type activeRun struct {
	cancel   context.CancelFunc
	progress RunProgress
}

// ScraperService drives runs of the external scraping service and keeps their history.
type ScraperService struct {
	DB            *gorm.DB
	Client        *scraper.Client
	Notifications *NotificationService
	Logger        logger.Interface

	runTimeout   time.Duration
	pollInterval time.Duration
	policy       *bluemonday.Policy
	now          func() time.Time

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu    sync.Mutex
	runs  map[uint]*activeRun
	byKey map[string]uint
}

func NewScraperService(db *gorm.DB, client *scraper.Client, notifications *NotificationService,
	cfg *config.ScraperConfig, log logger.Interface) *ScraperService {
	base, stop := context.WithCancel(context.Background())
	s := &ScraperService{
		DB:            db,
		Client:        client,
		Notifications: notifications,
		Logger:        log.Named("scraper"),
		runTimeout:    cfg.RunTimeout,
		pollInterval:  cfg.PollInterval,
		policy:        bluemonday.UGCPolicy(),
		now:           time.Now,
		base:          base,
		stop:          stop,
		runs:          make(map[uint]*activeRun),
		byKey:         make(map[string]uint),
	}
	if s.runTimeout <= 0 {
		s.runTimeout = 15 * time.Minute
	}
	if s.pollInterval <= 0 {
		s.pollInterval = 3 * time.Second
	}
	return s
}

func (s *ScraperService) ListConfigs(ctx context.Context) ([]models.ScraperConfig, error) {
	var out []models.ScraperConfig
	err := s.DB.WithContext(ctx).Order("scraper_key ASC").Find(&out).Error
	return out, err
}

func (s *ScraperService) GetConfig(ctx context.Context, key string) (*models.ScraperConfig, error) {
	var cfg models.ScraperConfig
	if err := s.DB.WithContext(ctx).Where("scraper_key = ?", key).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("scraper not found", key)
		}
		return nil, err
	}
	return &cfg, nil
}

func (s *ScraperService) UpdateConfig(ctx context.Context, key string, req *dtos.UpdateScraperConfigRequest) (*models.ScraperConfig, error) {
	cfg, err := s.GetConfig(ctx, key)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Keywords != nil {
		updates["keywords"] = models.StringList(*req.Keywords)
	}
	if req.Headless != nil {
		updates["headless"] = *req.Headless
	}
	if req.MaxPages != nil {
		updates["max_pages"] = *req.MaxPages
	}
	if req.DaysOld != nil {
		updates["days_old"] = *req.DaysOld
	}
	if len(updates) == 0 {
		return cfg, nil
	}
	if err := s.DB.WithContext(ctx).Model(cfg).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update scraper config: %w", err)
	}
	return s.GetConfig(ctx, key)
}

func buildRunRequest(cfg *models.ScraperConfig, o *dtos.RunOverrides) scraper.RunRequest {
	req := scraper.RunRequest{
		Location: cfg.Location,
		Keywords: models.Strings(cfg.Keywords),
		Headless: cfg.Headless,
		MaxPages: cfg.MaxPages,
		DaysOld:  cfg.DaysOld,
	}
	if req.Keywords == nil {
		req.Keywords = []string{}
	}
	if o == nil {
		return req
	}
	if o.Location != nil {
		req.Location = *o.Location
	}
	if o.Keywords != nil {
		req.Keywords = *o.Keywords
	}
	if o.Headless != nil {
		req.Headless = *o.Headless
	}
	if o.MaxPages != nil {
		req.MaxPages = *o.MaxPages
	}
	if o.DaysOld != nil {
		req.DaysOld = *o.DaysOld
	}
	return req
}

// StartRun launches a run of the scraper in the background and returns its log row. A scraper
// runs at most once at a time.
func (s *ScraperService) StartRun(ctx context.Context, key, adminID string, overrides *dtos.RunOverrides) (*models.ScrapingLog, error) {
	cfg, err := s.GetConfig(ctx, key)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, apperrors.NewBadRequestError("scraper is disabled", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base.Err() != nil {
		return nil, apperrors.NewUnavailableError("scraper service is shutting down")
	}
	if id, running := s.byKey[key]; running {
		return nil, apperrors.NewConflictError("scraper is already running", fmt.Sprintf("run %d", id))
	}

	started := s.now().UTC()
	entry := &models.ScrapingLog{ScraperKey: key, Status: models.RunRunning, TriggeredBy: adminID, StartedAt: started}
	if err := s.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create scraping log: %w", err)
	}

	runCtx, cancel := context.WithTimeout(s.base, s.runTimeout)
	s.runs[entry.ID] = &activeRun{
		cancel:   cancel,
		progress: RunProgress{LogID: entry.ID, ScraperKey: key, Status: models.RunRunning, StartedAt: started},
	}
	s.byKey[key] = entry.ID

	req := buildRunRequest(cfg, overrides)
	s.wg.Add(1)
	goroutine.SafeGo(s.Logger, "scraper-run-"+key, func() {
		defer s.wg.Done()
		defer cancel()
		defer s.release(entry.ID, key)
		s.execute(runCtx, *entry, req)
	})

	s.Logger.Infow("scraper run started", "scraper", key, "log_id", entry.ID, "admin_id", adminID)
	return entry, nil
}

func (s *ScraperService) release(logID uint, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, logID)
	if s.byKey[key] == logID {
		delete(s.byKey, key)
	}
}

func (s *ScraperService) execute(ctx context.Context, entry models.ScrapingLog, req scraper.RunRequest) {
	pollCtx, stopPoll := context.WithCancel(ctx)
	var pollWG sync.WaitGroup
	pollWG.Add(1)
	goroutine.SafeGo(s.Logger, "scraper-poll-"+entry.ScraperKey, func() {
		defer pollWG.Done()
		s.poll(pollCtx, entry.ID)
	})

	result, runErr := s.Client.Run(ctx, entry.ScraperKey, req)
	stopPoll()
	pollWG.Wait()

	// Bookkeeping must finish even when the run was canceled.
	s.finalize(context.WithoutCancel(ctx), entry, result, runErr, ctx.Err())
}

func (s *ScraperService) poll(ctx context.Context, logID uint) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := s.Client.Stats(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.Logger.Debugw("scraper stats poll failed", "log_id", logID, "error", err)
				}
				continue
			}
			polled := s.now().UTC()
			s.mu.Lock()
			if run, ok := s.runs[logID]; ok {
				run.progress.Remote = stats
				run.progress.PolledAt = &polled
			}
			s.mu.Unlock()
		}
	}
}

func (s *ScraperService) finalize(ctx context.Context, entry models.ScrapingLog, result *scraper.RunResult, runErr, ctxErr error) {
	finished := s.now().UTC()
	status := models.RunCompleted
	var errMsg string
	switch {
	case errors.Is(ctxErr, context.Canceled):
		status, errMsg = models.RunCanceled, "run canceled"
	case errors.Is(ctxErr, context.DeadlineExceeded):
		status, errMsg = models.RunFailed, fmt.Sprintf("run timed out after %s", s.runTimeout)
	case runErr != nil:
		status, errMsg = models.RunFailed, runErr.Error()
	case !result.Success:
		status, errMsg = models.RunFailed, result.Error
		if errMsg == "" {
			errMsg = "scraper reported failure"
		}
	}

	var found, saved int
	if status == models.RunCompleted {
		found = jobsFound(result)
		n, err := s.importJobs(ctx, entry.ScraperKey, result.Jobs)
		if err != nil {
			s.Logger.Errorw("failed to import scraped jobs", "log_id", entry.ID, "error", err)
			status, errMsg = models.RunFailed, "import failed: "+err.Error()
		}
		saved = n
	}

	duration := finished.Sub(entry.StartedAt).Seconds()
	if result != nil && result.Duration > 0 {
		duration = result.Duration
	}

	err := s.DB.WithContext(ctx).Model(&models.ScrapingLog{}).Where("id = ?", entry.ID).Updates(map[string]any{
		"status":           status,
		"jobs_found":       found,
		"jobs_saved":       saved,
		"duration_seconds": duration,
		"error_message":    errMsg,
		"finished_at":      finished,
	}).Error
	if err != nil {
		s.Logger.Errorw("failed to finalize scraping log", "log_id", entry.ID, "error", err)
	}
	err = s.DB.WithContext(ctx).Model(&models.ScraperConfig{}).Where("scraper_key = ?", entry.ScraperKey).
		Updates(map[string]any{"last_run_at": finished, "last_status": status}).Error
	if err != nil {
		s.Logger.Errorw("failed to update scraper config", "scraper", entry.ScraperKey, "error", err)
	}

	s.Logger.Infow("scraper run finished", "scraper", entry.ScraperKey, "log_id", entry.ID,
		"status", status, "jobs_found", found, "jobs_saved", saved)
	s.notify(ctx, entry, status, found, saved, errMsg)
}

func (s *ScraperService) notify(ctx context.Context, entry models.ScrapingLog, status string, found, saved int, errMsg string) {
	if s.Notifications == nil || entry.TriggeredBy == "" {
		return
	}
	title := fmt.Sprintf("Scraper %s %s", entry.ScraperKey, status)
	msg := fmt.Sprintf("Found %d jobs, saved %d new.", found, saved)
	if errMsg != "" {
		msg = errMsg
	}
	link := fmt.Sprintf("/admin/scrapers/runs/%d", entry.ID)
	if _, err := s.Notifications.Create(ctx, entry.TriggeredBy, models.NotificationScraper, title, msg, link); err != nil {
		s.Logger.Warnw("failed to notify admin of scraper run", "log_id", entry.ID, "error", err)
	}
}

// importJobs upserts scraped postings by job_url and returns how many were new.
func (s *ScraperService) importJobs(ctx context.Context, source string, jobs []scraper.ScrapedJob) (int, error) {
	created := 0
	scrapedAt := s.now().UTC()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, sj := range jobs {
			url := strings.TrimSpace(sj.URL)
			if url == "" || strings.TrimSpace(sj.Title) == "" {
				continue
			}
			fields := models.Job{
				Title:       strings.TrimSpace(sj.Title),
				Company:     strings.TrimSpace(sj.Company),
				Location:    sj.Location,
				Description: s.policy.Sanitize(sj.Description),
				JobURL:      url,
				SalaryRange: sj.SalaryRange,
				JobType:     sj.JobType,
				Remote:      sj.Remote,
				Source:      source,
				Skills:      models.StringList(sj.Skills),
				PostedAt:    sj.PostedAt,
				ScrapedAt:   &scrapedAt,
			}

			var existing models.Job
			err := tx.Where("job_url = ?", url).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&fields).Error; err != nil {
					return err
				}
				created++
			case err != nil:
				return err
			default:
				if err := tx.Model(&existing).Select("title", "company", "location", "description", "salary_range",
					"job_type", "remote", "skills", "posted_at", "scraped_at").Updates(&fields).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// CancelRun stops an active run. The run goroutine records it as canceled.
func (s *ScraperService) CancelRun(logID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[logID]
	if !ok {
		return apperrors.NewNotFoundError("no active run", fmt.Sprint(logID))
	}
	run.cancel()
	return nil
}

// RunStatus returns live progress for an active run, or the stored log for a finished one.
func (s *ScraperService) RunStatus(ctx context.Context, logID uint) (*RunProgress, error) {
	s.mu.Lock()
	if run, ok := s.runs[logID]; ok {
		p := run.progress
		s.mu.Unlock()
		return &p, nil
	}
	s.mu.Unlock()

	var entry models.ScrapingLog
	if err := s.DB.WithContext(ctx).First(&entry, logID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("scraping run not found")
		}
		return nil, err
	}
	return &RunProgress{LogID: entry.ID, ScraperKey: entry.ScraperKey, Status: entry.Status, StartedAt: entry.StartedAt, Log: &entry}, nil
}

// ActiveRuns lists the progress of every running scraper.
func (s *ScraperService) ActiveRuns() []RunProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunProgress, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.progress)
	}
	return out
}

// Shutdown cancels every run and waits for their bookkeeping to finish.
func (s *ScraperService) Shutdown() {
	s.mu.Lock()
	s.stop()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *ScraperService) Logs(ctx context.Context, limit int) ([]models.ScrapingLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []models.ScrapingLog
	err := s.DB.WithContext(ctx).Order("started_at DESC, id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// RemoteLogs proxies the external service's own log.
func (s *ScraperService) RemoteLogs(ctx context.Context) ([]scraper.LogEntry, error) {
	logs, err := s.Client.Logs(ctx)
	if err != nil {
		return nil, apperrors.NewUnavailableError("scraper service unreachable", err.Error())
	}
	return logs, nil
}

func (s *ScraperService) Stats(ctx context.Context) (*dtos.ScraperStats, error) {
	var rows []struct {
		ScraperKey  string
		Status      string
		Runs        int64
		JobsFound   int64
		JobsSaved   int64
		DurationSum float64
	}
	err := s.DB.WithContext(ctx).Model(&models.ScrapingLog{}).
		Select("scraper_key, status, COUNT(*) AS runs, COALESCE(SUM(jobs_found), 0) AS jobs_found, " +
			"COALESCE(SUM(jobs_saved), 0) AS jobs_saved, COALESCE(SUM(duration_seconds), 0) AS duration_sum").
		Group("scraper_key, status").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate scraping logs: %w", err)
	}

	stats := &dtos.ScraperStats{PerScraper: make(map[string]dtos.ScraperTally)}
	var finished int64
	var durations float64
	for _, r := range rows {
		stats.TotalRuns += r.Runs
		stats.TotalJobsFound += r.JobsFound
		switch r.Status {
		case models.RunCompleted:
			stats.SuccessfulRuns += r.Runs
		case models.RunFailed:
			stats.FailedRuns += r.Runs
		}
		if r.Status != models.RunRunning {
			finished += r.Runs
			durations += r.DurationSum
		}
		t := stats.PerScraper[r.ScraperKey]
		t.Runs += r.Runs
		t.JobsFound += r.JobsFound
		t.JobsSaved += r.JobsSaved
		stats.PerScraper[r.ScraperKey] = t
	}
	if finished > 0 {
		stats.AverageDurationSec = durations / float64(finished)
	}
	return stats, nil
}

// Health reports the external service's health. An unreachable service is "down", not an error.
func (s *ScraperService) Health(ctx context.Context) *scraper.Health {
	h, err := s.Client.Health(ctx)
	if err != nil {
		s.Logger.Warnw("scraper service health check failed", "error", err)
		return &scraper.Health{Status: "down"}
	}
	return h
}

// jobsFound trusts the scraper's own count and falls back to the returned jobs when it reports none.
func jobsFound(result *scraper.RunResult) int {
	if result.JobsFound > 0 {
		return result.JobsFound
	}
	return len(result.Jobs)
}
