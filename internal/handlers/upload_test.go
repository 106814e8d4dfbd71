package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
)

func multipartContext(t *testing.T, field, name, body string) *gin.Context {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/upload", &buf)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	return c
}

func TestFormUpload(t *testing.T) {
	up, done, err := formUpload(multipartContext(t, "resume", "cv.txt", "resume body"), "resume", false)
	require.NoError(t, err)
	defer done()
	assert.Equal(t, "cv.txt", up.FileName)
	data, err := io.ReadAll(up.Reader)
	require.NoError(t, err)
	assert.Equal(t, "resume body", string(data))

	_, _, err = formUpload(multipartContext(t, "", "", ""), "resume", false)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	assert.Contains(t, err.Error(), "resume file is required")

	up, done, err = formUpload(multipartContext(t, "", "", ""), "cover_letter", true)
	require.NoError(t, err)
	assert.Nil(t, up)
	done()
}
