package services

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/realtime"
	"github.com/justsurfingit/jobtrackr/internal/testutil"
)

type fakeMailSource struct {
	recent      []string
	historyIDs  []string
	historyID   uint64
	historyErr  error
	current     uint64
	messages    map[string]*gmail.Message
	recentCalls int
}

func (f *fakeMailSource) ListRecent(ctx context.Context, query string, max int64) ([]string, error) {
	f.recentCalls++
	return f.recent, nil
}

func (f *fakeMailSource) ListHistory(ctx context.Context, startID uint64) ([]string, uint64, error) {
	if f.historyErr != nil {
		return nil, 0, f.historyErr
	}
	return f.historyIDs, f.historyID, nil
}

func (f *fakeMailSource) CurrentHistoryID(ctx context.Context) (uint64, error) {
	return f.current, nil
}

func (f *fakeMailSource) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	return f.messages[id], nil
}

func message(id, from, subject, body string) *gmail.Message {
	return &gmail.Message{
		Id: id,
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{{Name: "From", Value: from}, {Name: "Subject", Value: subject}},
			Parts: []*gmail.MessagePart{
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("<p>html</p>"))}},
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(body))}},
			},
		},
	}
}

type inboxFixture struct {
	db       *gorm.DB
	svc      *InboxService
	source   *fakeMailSource
	analyzer *fakeAnalyzer
	user     *models.UserProfile
	jobs     *JobService
}

func newInboxFixture(t *testing.T) *inboxFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "me@example.com", models.RoleUser)
	jobs := NewJobService(db, nil, nil, logger.NewNop())
	notifications := NewNotificationService(db, realtime.NewMemoryBroker(), logger.NewNop())
	source := &fakeMailSource{messages: map[string]*gmail.Message{}}
	analyzer := &fakeAnalyzer{}
	svc := NewInboxService(db, source, analyzer, NewMatcherService(db), jobs, notifications, user.ID, logger.NewNop())
	return &inboxFixture{db: db, svc: svc, source: source, analyzer: analyzer, user: user, jobs: jobs}
}

func (f *inboxFixture) track(t *testing.T, title, company, status string) *models.Job {
	t.Helper()
	job := testutil.CreateJob(t, f.db, title, company)
	_, err := f.jobs.UpsertStatus(context.Background(), f.user.ID, job.ID, dtos.StatusPatch{Status: &status})
	require.NoError(t, err)
	return job
}

func (f *inboxFixture) status(t *testing.T, jobID uint) string {
	t.Helper()
	got, err := f.jobs.GetJob(context.Background(), f.user.ID, jobID)
	require.NoError(t, err)
	require.NotNil(t, got.Status)
	return *got.Status
}

func TestSyncEmailsUpdatesMatchedJob(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()
	acme := f.track(t, "backend", "Acme Corp", models.StatusApplied)
	globex := f.track(t, "frontend", "Globex", models.StatusOffer)

	f.source.recent = []string{"m1", "m2", "m3"}
	f.source.current = 100
	f.source.messages["m1"] = message("m1", "Acme Recruiting <jobs@acmecorp.com>", "Your interview", "We would like to schedule an onsite.")
	f.source.messages["m2"] = message("m2", "Newsletter <news@example.org>", "Weekly digest", "nothing")
	f.source.messages["m3"] = message("m3", "Globex <hr@globex.com>", "Globex update", "Sorry")
	f.analyzer.status = `{"status":"Interviewing","summary":"Onsite scheduled"}`

	require.NoError(t, f.svc.SyncEmails(ctx))

	assert.Equal(t, models.StatusInterviewing, f.status(t, acme.ID))
	assert.Equal(t, models.StatusOffer, f.status(t, globex.ID), "jobs with a final status are not matched")
	assert.Equal(t, 1, f.analyzer.statusCalls)

	var events []models.JobEvent
	require.NoError(t, f.db.Where("job_id = ? AND event_type = ?", acme.ID, models.EventEmailUpdate).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "Status changed to interviewing. Summary: Onsite scheduled", events[0].Details)

	var notes []models.Notification
	require.NoError(t, f.db.Where("user_id = ?", f.user.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationStatusChange, notes[0].Type)
	assert.Equal(t, "backend at Acme Corp is now interviewing", notes[0].Title)

	var processed int64
	require.NoError(t, f.db.Model(&models.ProcessedEmail{}).Count(&processed).Error)
	assert.EqualValues(t, 3, processed)

	var state models.InboxState
	require.NoError(t, f.db.First(&state, "user_id = ?", f.user.ID).Error)
	assert.EqualValues(t, 100, state.LastHistoryID)

	// The next cycle is incremental and skips processed mail.
	f.source.historyIDs = []string{"m1", "m4"}
	f.source.historyID = 120
	f.source.messages["m4"] = message("m4", "Acme Corp <talent@acme.io>", "Following up", "See you Tuesday")
	require.NoError(t, f.svc.SyncEmails(ctx))

	assert.Equal(t, 1, f.source.recentCalls)
	assert.Equal(t, 2, f.analyzer.statusCalls)
	require.NoError(t, f.db.Where("job_id = ? AND event_type = ?", acme.ID, models.EventEmailUpdate).Find(&events).Error)
	assert.Len(t, events, 1, "an unchanged status records nothing")
	require.NoError(t, f.db.First(&state, "user_id = ?", f.user.ID).Error)
	assert.EqualValues(t, 120, state.LastHistoryID)
}

func TestSyncEmailsFallsBackWhenHistoryExpires(t *testing.T) {
	f := newInboxFixture(t)
	require.NoError(t, f.db.Create(&models.InboxState{UserID: f.user.ID, LastHistoryID: 5}).Error)

	f.source.historyErr = &googleapi.Error{Code: http.StatusNotFound, Message: "history expired"}
	f.source.current = 90
	require.NoError(t, f.svc.SyncEmails(context.Background()))

	assert.Equal(t, 1, f.source.recentCalls)
	var state models.InboxState
	require.NoError(t, f.db.First(&state, "user_id = ?", f.user.ID).Error)
	assert.EqualValues(t, 90, state.LastHistoryID)
}

func TestSyncEmailsPicksRoleAmongCompanyJobs(t *testing.T) {
	f := newInboxFixture(t)
	backend := f.track(t, "Backend Engineer", "Initech", models.StatusApplied)
	data := f.track(t, "Data Engineer", "Initech", models.StatusApplied)
	platform := f.track(t, "Platform Engineer", "Initech", models.StatusInterviewing)

	f.source.recent = []string{"m1"}
	f.source.messages["m1"] = message("m1", "Initech <jobs@initech.com>", "Initech: Data Engineer", "Unfortunately...")
	f.analyzer.role = "Data Engineer"
	f.analyzer.status = `{"status":"rejected","summary":"Not moving forward"}`
	require.NoError(t, f.svc.SyncEmails(context.Background()))

	assert.Equal(t, models.StatusApplied, f.status(t, backend.ID))
	assert.Equal(t, models.StatusRejected, f.status(t, data.ID))

	// An unknown role leaves every job alone.
	f.source.recent = []string{"m2"}
	f.source.messages["m2"] = message("m2", "Initech <jobs@initech.com>", "Initech news", "Hello")
	f.analyzer.role = ""
	require.NoError(t, f.svc.SyncEmails(context.Background()))
	assert.Equal(t, models.StatusApplied, f.status(t, backend.ID))
	assert.Equal(t, models.StatusInterviewing, f.status(t, platform.ID))
	assert.Equal(t, 1, f.analyzer.statusCalls)
}

func TestSyncEmailsIgnoresNoChangeDecision(t *testing.T) {
	f := newInboxFixture(t)
	job := f.track(t, "backend", "Acme", models.StatusApplied)

	f.source.recent = []string{"m1"}
	f.source.messages["m1"] = message("m1", "jobs@acme.com", "Thanks for applying to Acme", "We got it")
	f.analyzer.status = `{"status":"NO_CHANGE","summary":"confirmation"}`
	require.NoError(t, f.svc.SyncEmails(context.Background()))
	assert.Equal(t, models.StatusApplied, f.status(t, job.ID))

	f.source.recent = []string{"m2"}
	f.source.messages["m2"] = message("m2", "jobs@acme.com", "Acme", "x")
	f.analyzer.status = "not json"
	require.NoError(t, f.svc.SyncEmails(context.Background()))
	assert.Equal(t, models.StatusApplied, f.status(t, job.ID))
}

func TestGetEmailBodyPrefersPlainText(t *testing.T) {
	msg := message("m1", "a@b.c", "s", "plain body")
	assert.Equal(t, "plain body", getEmailBody(msg))

	msg.Payload.Body = &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("top level"))}
	assert.Equal(t, "top level", getEmailBody(msg))

	assert.Empty(t, getEmailBody(&gmail.Message{}))
}

func TestFindCompanyFromEmail(t *testing.T) {
	db := testutil.NewTestDB(t)
	jobs := NewJobService(db, nil, nil, logger.NewNop())
	matcher := NewMatcherService(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "me@example.com", models.RoleUser)
	other := testutil.CreateUser(t, db, "o@example.com", models.RoleUser)

	track := func(userID, title, company string, status *string) {
		job := testutil.CreateJob(t, db, title, company)
		saved := true
		_, err := jobs.UpsertStatus(ctx, userID, job.ID, dtos.StatusPatch{Status: status, Saved: &saved})
		require.NoError(t, err)
	}
	applied := models.StatusApplied
	withdrawn := models.StatusWithdrawn
	track(user.ID, "sre", "Blue Origin", &applied)
	track(user.ID, "qa", "Go", &applied)
	track(user.ID, "pm", "Hooli", &withdrawn)
	track(user.ID, "ml", "Pied Piper", nil)
	track(other.ID, "eng", "Umbrella", &applied)

	tests := []struct {
		name    string
		subject string
		sender  string
		want    string
	}{
		{"subject names company", "Your Blue Origin application", "noreply@greenhouse.io", "Blue Origin"},
		{"display name", "Update", "Pied Piper Talent <talent@mail.example>", "Pied Piper"},
		{"domain without spaces", "Hello", "recruiting@blueorigin.com", "Blue Origin"},
		{"terminal status ignored", "Hooli offer", "hr@hooli.com", ""},
		{"short names ignored", "Go team says hi", "x@example.com", ""},
		{"other user's job", "Umbrella interview", "hr@umbrella.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := matcher.FindCompanyFromEmail(ctx, user.ID, tt.subject, tt.sender)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, match)
				return
			}
			require.NotNil(t, match)
			assert.Equal(t, tt.want, match.Company)
		})
	}
}
