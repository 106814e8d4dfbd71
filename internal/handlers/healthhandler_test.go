package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/jobtrackr/internal/storage"
	"github.com/justsurfingit/jobtrackr/internal/testutil"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFileHandlerServe(t *testing.T) {
	st, err := storage.New(t.TempDir(), "/files", 1)
	require.NoError(t, err)
	obj, err := st.Put(storage.BucketResumes, "user-1", "cv.txt", strings.NewReader("resume body"))
	require.NoError(t, err)

	r := gin.New()
	r.GET("/files/:bucket/*key", NewFileHandler(st).Serve)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/files/resumes/" + obj.Key)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "resume body", w.Body.String())

	assert.Equal(t, http.StatusNotFound, get("/files/resumes/user-1/missing.txt").Code)
	assert.Equal(t, http.StatusNotFound, get("/files/secrets/"+obj.Key).Code)
}

func TestHealthHandler(t *testing.T) {
	db := testutil.NewTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	check := func(h *HealthHandler) (int, utils.APIResponse) {
		r := gin.New()
		r.GET("/health", h.Health)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		var resp utils.APIResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return w.Code, resp
	}

	code, resp := check(NewHealthHandler(db, nil))
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)

	code, resp = check(NewHealthHandler(db, rdb))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"database": "ok", "redis": "ok"}, resp.Data)

	mr.Close()
	code, resp = check(NewHealthHandler(db, rdb))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "service_unavailable", resp.Error.Type)
	assert.Equal(t, map[string]any{"database": "ok", "redis": "down"}, resp.Data)
}
