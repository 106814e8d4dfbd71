package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/justsurfingit/jobtrackr/internal/auth"
	"github.com/justsurfingit/jobtrackr/internal/cache"
	"github.com/justsurfingit/jobtrackr/internal/config"
	"github.com/justsurfingit/jobtrackr/internal/handlers"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/middleware"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/realtime"
	"github.com/justsurfingit/jobtrackr/internal/scraper"
	"github.com/justsurfingit/jobtrackr/internal/services"
	"github.com/justsurfingit/jobtrackr/internal/storage"
	"github.com/justsurfingit/jobtrackr/internal/store"
	"github.com/justsurfingit/jobtrackr/internal/testutil"
)

type testServer struct {
	engine *gin.Engine
	auth   *services.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	log := logger.NewNop()
	st, err := storage.New(t.TempDir(), "/files", 1)
	require.NoError(t, err)
	jwtService := auth.NewJWTService("test-secret", 15, 7)
	enforcer, err := auth.NewEnforcer()
	require.NoError(t, err)

	accounting := store.NewGormAccounting(db)
	subscriptions := services.NewSubscriptionService(db, accounting, log)
	usage := services.NewUsageService(accounting, subscriptions, log)
	jobs := services.NewJobService(db, nil, usage, log)
	notifications := services.NewNotificationService(db, realtime.NewMemoryBroker(), log)
	authService := services.NewAuthService(db, auth.NewBcryptPasswordHasher(bcrypt.MinCost), jwtService, st, log)
	admin := services.NewAdminService(db, cache.NewJSONCache(nil, ""), jobs, subscriptions, st, log)
	scrapers := services.NewScraperService(db, scraper.NewClient("http://127.0.0.1:1", "", time.Second), notifications, &config.ScraperConfig{}, log)
	t.Cleanup(scrapers.Shutdown)

	r := New(Handlers{
		Health:        handlers.NewHealthHandler(db, nil),
		Files:         handlers.NewFileHandler(st),
		Auth:          handlers.NewAuthHandler(authService),
		Profile:       handlers.NewProfileHandler(services.NewProfileService(db, st, log)),
		Jobs:          handlers.NewJobHandler(jobs),
		Resumes:       handlers.NewResumeHandler(services.NewResumeService(db, st, usage, nil, log)),
		Calendar:      handlers.NewCalendarHandler(services.NewCalendarService(db)),
		Notifications: handlers.NewNotificationHandler(notifications),
		Subscriptions: handlers.NewSubscriptionHandler(subscriptions, usage),
		Admin:         handlers.NewAdminHandler(admin, accounting),
		Scrapers:      handlers.NewScraperHandler(scrapers),
	}, Middleware{
		Auth:       middleware.NewAuthMiddleware(jwtService, authService, log),
		Permission: middleware.NewPermissionMiddleware(enforcer, log),
	}, log)
	r.SetupRoutes(&config.Config{})

	return &testServer{engine: r.GetEngine(), auth: authService}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Type string `json:"type"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "password-1", "confirm_password": "password-1",
	})
	require.Equal(t, http.StatusCreated, code)
	var resp struct {
		Tokens auth.TokenPair `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	return resp.Tokens.AccessToken
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		code, env := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, env.Success)
	}
}

func TestJobTrackingFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "u@example.com")

	code, env := s.do(t, http.MethodGet, "/api/v1/jobs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, env = s.do(t, http.MethodPost, "/api/v1/jobs", token, map[string]any{
		"company_name": "Acme", "role_title": "SRE", "job_link": "https://acme.example/1",
	})
	require.Equal(t, http.StatusCreated, code)
	var job models.Job
	require.NoError(t, json.Unmarshal(env.Data, &job))

	code, _ = s.do(t, http.MethodPost, "/api/v1/jobs", token, map[string]any{"company_name": "Acme"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/jobs", token, nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Items []struct {
			ID    uint `json:"id"`
			Saved bool `json:"saved"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 1, list.Total)
	require.Len(t, list.Items, 1)
	assert.True(t, list.Items[0].Saved, "creating a job tracks it")

	jobPath := "/api/v1/jobs/" + jsonNumber(job.ID)
	code, _ = s.do(t, http.MethodPost, jobPath+"/apply", token, map[string]bool{"current": false})
	assert.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodPut, jobPath+"/status", token, map[string]string{"status": "ghosted"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", env.Error.Type)

	code, _ = s.do(t, http.MethodPut, jobPath+"/status", token, map[string]string{"status": "interviewing"})
	assert.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/jobs/stats", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"interviewing":1`)

	code, _ = s.do(t, http.MethodGet, "/api/v1/jobs/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/jobs/999", token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/usage", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"applications_sent":1`)
}

func TestAdminRoutesNeedAdminRole(t *testing.T) {
	s := newTestServer(t)
	userToken := s.register(t, "u@example.com")

	code, env := s.do(t, http.MethodGet, "/api/v1/admin/stats", userToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.False(t, env.Success)

	_, err := s.auth.EnsureAdmin(t.Context(), "admin@example.com", "admin-password")
	require.NoError(t, err)
	code, env = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "admin@example.com", "password": "admin-password",
	})
	require.Equal(t, http.StatusOK, code)
	var login struct {
		Tokens auth.TokenPair `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	adminToken := login.Tokens.AccessToken

	code, env = s.do(t, http.MethodGet, "/api/v1/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"total_users":2`)

	code, env = s.do(t, http.MethodGet, "/api/v1/admin/scrapers", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	var configs []models.ScraperConfig
	require.NoError(t, json.Unmarshal(env.Data, &configs))
	assert.NotEmpty(t, configs)

	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/scrapers/runs", adminToken, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/scrapers/nope", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/admin/plans/1", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	// Suspension locks out a token that is still valid.
	code, env = s.do(t, http.MethodGet, "/api/v1/auth/me", userToken, nil)
	require.Equal(t, http.StatusOK, code)
	var me models.UserProfile
	require.NoError(t, json.Unmarshal(env.Data, &me))
	code, _ = s.do(t, http.MethodPut, "/api/v1/admin/users/"+me.ID, adminToken, map[string]string{"status": models.UserStatusSuspended})
	require.Equal(t, http.StatusOK, code)
	code, env = s.do(t, http.MethodGet, "/api/v1/jobs", userToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", env.Error.Type)
}

func jsonNumber(v uint) string {
	b, _ := json.Marshal(v)
	return string(b)
}
