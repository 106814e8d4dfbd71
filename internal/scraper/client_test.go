package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/jobtrackr/internal/retry"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "secret", time.Second,
		WithRetryPolicy(retry.Policy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}))
}

func TestRunSendsPayload(t *testing.T) {
	var got RunRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/scrapers/indeed", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(RunResult{
			Success:   true,
			JobsFound: 1,
			Duration:  2.5,
			Jobs:      []ScrapedJob{{Title: "Go Engineer", Company: "Acme", URL: "https://acme.dev/1"}},
		})
	}))

	res, err := client.Run(context.Background(), "indeed", RunRequest{
		Location: "Berlin", Keywords: []string{"golang"}, Headless: true, MaxPages: 2, DaysOld: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, "Berlin", got.Location)
	assert.Equal(t, []string{"golang"}, got.Keywords)
	assert.Equal(t, 2, got.MaxPages)
	assert.True(t, res.Success)
	assert.Equal(t, "indeed", res.Scraper)
	assert.Len(t, res.Jobs, 1)
}

func TestRunIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.Run(context.Background(), "indeed", RunRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Stats{Running: true, JobsFound: 7})
	}))

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Running)
	assert.Equal(t, 7, stats.JobsFound)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Logs(context.Background())
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHealthAndLogs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","scrapers":["indeed","linkedin"]}`))
	})
	mux.HandleFunc("/api/scrapers/logs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"scraper":"indeed","level":"info","message":"page 1","timestamp":"2024-05-01T10:00:00Z"}]`))
	})
	client := newTestClient(t, mux)

	h, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, []string{"indeed", "linkedin"}, h.Scrapers)

	logs, err := client.Logs(context.Background())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "page 1", logs[0].Message)
}
