package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/retry"
)

// fullSyncQuery selects recruiter mail of the last week when there is no usable history bookmark.
const fullSyncQuery = "subject:(application OR interview OR update OR offer OR rejected OR status) newer_than:7d"

// InboxService watches one Gmail account and moves the owner's tracked jobs along when
// recruiters write.
type InboxService struct {
	DB            *gorm.DB
	Source        MailSource
	Analyzer      Analyzer
	Matcher       *MatcherService
	Jobs          *JobService
	Notifications *NotificationService
	Logger        logger.Interface
	UserID        string

	retry      retry.Policy
	textPolicy *bluemonday.Policy
}

func NewInboxService(db *gorm.DB, source MailSource, analyzer Analyzer, matcher *MatcherService,
	jobs *JobService, notifications *NotificationService, userID string, log logger.Interface) *InboxService {
	p := retry.Policy{Attempts: 3, InitialInterval: time.Second, MaxInterval: 8 * time.Second, Permanent: isHistoryExpiredError}
	return &InboxService{
		DB:            db,
		Source:        source,
		Analyzer:      analyzer,
		Matcher:       matcher,
		Jobs:          jobs,
		Notifications: notifications,
		Logger:        log,
		UserID:        userID,
		retry:         p,
		textPolicy:    bluemonday.StrictPolicy(),
	}
}

// StartWatcher syncs immediately and then every interval until ctx is done.
func (s *InboxService) StartWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.syncCycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *InboxService) syncCycle(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := s.SyncEmails(ctx); err != nil && ctx.Err() == nil {
		s.Logger.Errorw("inbox sync failed", "error", err)
	}
}

// SyncEmails processes mail that arrived since the last bookmark. Without a bookmark, or when
// Gmail has dropped the bookmarked history, the last week is scanned instead.
func (s *InboxService) SyncEmails(ctx context.Context) error {
	state := models.InboxState{UserID: s.UserID}
	if err := s.DB.WithContext(ctx).Where(models.InboxState{UserID: s.UserID}).FirstOrCreate(&state).Error; err != nil {
		return fmt.Errorf("failed to load inbox state: %w", err)
	}

	var (
		ids       []string
		historyID uint64
		err       error
	)
	if state.LastHistoryID == 0 {
		s.Logger.Infow("no inbox bookmark, running full sync", "user_id", s.UserID)
		ids, historyID, err = s.performFullSync(ctx)
	} else {
		ids, historyID, err = s.performIncrementalSync(ctx, state.LastHistoryID)
		if err != nil && isHistoryExpiredError(err) {
			s.Logger.Warnw("inbox history expired, falling back to full sync", "history_id", state.LastHistoryID)
			ids, historyID, err = s.performFullSync(ctx)
		}
	}
	if err != nil {
		return err
	}

	processed := 0
	for _, id := range ids {
		var count int64
		s.DB.WithContext(ctx).Model(&models.ProcessedEmail{}).Where("id = ?", id).Count(&count)
		if count > 0 {
			continue
		}

		var msg *gmail.Message
		err := retry.Do(ctx, s.retry, func() error {
			var e error
			msg, e = s.Source.GetMessage(ctx, id)
			return e
		})
		if err != nil {
			s.Logger.Warnw("failed to fetch message", "message_id", id, "error", err)
			continue
		}

		s.processSingleEmail(ctx, msg)
		s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.ProcessedEmail{ID: id, UserID: s.UserID})
		processed++
	}

	if historyID > state.LastHistoryID {
		if err := s.DB.WithContext(ctx).Model(&models.InboxState{}).Where("user_id = ?", s.UserID).
			Update("last_history_id", historyID).Error; err != nil {
			return fmt.Errorf("failed to save inbox bookmark: %w", err)
		}
	}
	s.Logger.Infow("inbox sync finished", "candidates", len(ids), "processed", processed, "history_id", historyID)
	return nil
}

func (s *InboxService) performFullSync(ctx context.Context) ([]string, uint64, error) {
	var ids []string
	err := retry.Do(ctx, s.retry, func() error {
		var e error
		ids, e = s.Source.ListRecent(ctx, fullSyncQuery, 50)
		return e
	})
	if err != nil {
		return nil, 0, err
	}

	// The bookmark is taken from the profile so the next cycle can go incremental.
	var historyID uint64
	err = retry.Do(ctx, s.retry, func() error {
		var e error
		historyID, e = s.Source.CurrentHistoryID(ctx)
		return e
	})
	if err != nil {
		return nil, 0, err
	}
	return ids, historyID, nil
}

func (s *InboxService) performIncrementalSync(ctx context.Context, startID uint64) ([]string, uint64, error) {
	var (
		ids       []string
		historyID uint64
	)
	err := retry.Do(ctx, s.retry, func() error {
		var e error
		ids, historyID, e = s.Source.ListHistory(ctx, startID)
		return e
	})
	return ids, historyID, err
}

type emailAnalysis struct {
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

// processSingleEmail matches the email to a tracked job, asks the model for the new status and
// applies it. Every skip is logged and leaves the database untouched.
func (s *InboxService) processSingleEmail(ctx context.Context, msg *gmail.Message) {
	headers := parseHeaders(msg)
	subject := headers["Subject"]
	sender := headers["From"]
	log := s.Logger.With("message_id", msg.Id, "subject", truncate(subject, 40))

	body := strings.Join(strings.Fields(s.textPolicy.Sanitize(getEmailBody(msg))), " ")

	match, err := s.Matcher.FindCompanyFromEmail(ctx, s.UserID, subject, sender)
	if err != nil {
		log.Errorw("company matching failed", "error", err)
		return
	}
	if match == nil {
		log.Debugw("skipped: sender and subject match no tracked company", "from", sender)
		return
	}

	target := &match.Jobs[0]
	if len(match.Jobs) > 1 {
		titles := make([]string, len(match.Jobs))
		for i, j := range match.Jobs {
			titles[i] = j.Title
		}
		idx := s.Analyzer.IdentifyJobRole(ctx, titles, subject, body)
		if idx < 0 || idx >= len(match.Jobs) {
			log.Infow("skipped: could not tell which job the email is about", "company", match.Company, "jobs", titles)
			return
		}
		target = &match.Jobs[idx]
	}

	raw, err := s.Analyzer.AnalyzeEmailStatus(ctx, match.Company, subject, body)
	if err != nil {
		log.Warnw("skipped: email analysis failed", "error", err)
		return
	}
	var result emailAnalysis
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		log.Warnw("skipped: email analysis returned invalid json", "error", err, "raw", truncate(raw, 200))
		return
	}

	status := strings.ToLower(strings.TrimSpace(result.Status))
	if !models.IsValidJobStatus(status) {
		log.Debugw("no status change", "decision", result.Status)
		return
	}

	var current models.UserJobStatus
	if err := s.DB.WithContext(ctx).Where("user_id = ? AND job_id = ?", s.UserID, target.ID).First(&current).Error; err != nil &&
		!errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorw("failed to load job status", "error", err)
		return
	}
	if current.Status != nil && *current.Status == status {
		log.Debugw("status unchanged", "status", status)
		return
	}

	if _, err := s.Jobs.UpsertStatus(ctx, s.UserID, target.ID, dtos.StatusPatch{Status: &status}); err != nil {
		log.Errorw("failed to update job status", "job_id", target.ID, "error", err)
		return
	}

	event := models.JobEvent{
		JobID:     target.ID,
		UserID:    s.UserID,
		EventType: models.EventEmailUpdate,
		Details:   fmt.Sprintf("Status changed to %s. Summary: %s", status, result.Summary),
	}
	if err := s.DB.WithContext(ctx).Create(&event).Error; err != nil {
		log.Warnw("failed to record email event", "error", err)
	}

	if s.Notifications != nil {
		title := fmt.Sprintf("%s at %s is now %s", target.Title, target.Company, status)
		if _, err := s.Notifications.Create(ctx, s.UserID, models.NotificationStatusChange, title, result.Summary,
			fmt.Sprintf("/jobs/%d", target.ID)); err != nil {
			log.Warnw("failed to notify status change", "error", err)
		}
	}
	log.Infow("job status updated from email", "job_id", target.ID, "status", status)
}

// ResolveInboxUser returns the id of the profile owning the watched mailbox.
func ResolveInboxUser(ctx context.Context, db *gorm.DB, email string) (string, error) {
	var user models.UserProfile
	if err := db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.NewNotFoundError("inbox owner not found", email)
		}
		return "", err
	}
	return user.ID, nil
}

func isHistoryExpiredError(err error) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && gErr.Code == http.StatusNotFound
}

func parseHeaders(msg *gmail.Message) map[string]string {
	res := make(map[string]string)
	if msg.Payload == nil {
		return res
	}
	for _, h := range msg.Payload.Headers {
		res[h.Name] = h.Value
	}
	return res
}

// getEmailBody prefers the plain text part over HTML.
func getEmailBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}
	if msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
		return decodeBody(msg.Payload.Body.Data)
	}
	for _, mime := range []string{"text/plain", "text/html"} {
		for _, part := range msg.Payload.Parts {
			if part.MimeType == mime && part.Body != nil && part.Body.Data != "" {
				return decodeBody(part.Body.Data)
			}
		}
	}
	return ""
}

func decodeBody(data string) string {
	d, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		d, _ = base64.RawURLEncoding.DecodeString(data)
	}
	return string(d)
}
