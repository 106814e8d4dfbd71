package scraper

import "time"

// RunRequest is the configuration payload for one scraper run.
type RunRequest struct {
	Location string   `json:"location"`
	Keywords []string `json:"keywords"`
	Headless bool     `json:"headless"`
	MaxPages int      `json:"max_pages"`
	DaysOld  int      `json:"days_old"`
}

// ScrapedJob is one posting returned by a run.
type ScrapedJob struct {
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	SalaryRange string     `json:"salary_range"`
	JobType     string     `json:"job_type"`
	Remote      bool       `json:"remote"`
	Skills      []string   `json:"skills"`
	PostedAt    *time.Time `json:"posted_at"`
}

type RunResult struct {
	Success   bool         `json:"success"`
	Scraper   string       `json:"scraper"`
	JobsFound int          `json:"jobs_found"`
	Duration  float64      `json:"duration"`
	Jobs      []ScrapedJob `json:"jobs"`
	Error     string       `json:"error,omitempty"`
}

type Health struct {
	Status   string   `json:"status"`
	Version  string   `json:"version,omitempty"`
	Scrapers []string `json:"scrapers,omitempty"`
}

// LogEntry is one line of the remote service's run log.
type LogEntry struct {
	Scraper   string    `json:"scraper"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats is the remote service's live progress snapshot.
type Stats struct {
	Running        bool    `json:"running"`
	CurrentScraper string  `json:"current_scraper"`
	PagesScraped   int     `json:"pages_scraped"`
	JobsFound      int     `json:"jobs_found"`
	TotalRuns      int     `json:"total_runs"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}
