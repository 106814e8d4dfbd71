package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/jobtrackr/internal/models"
)

func TestJWTGenerateAndVerify(t *testing.T) {
	svc := NewJWTService("secret", 15, 7)

	pair, err := svc.Generate("user-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	claims, err := svc.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)

	refresh, err := svc.Verify(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, refresh.TokenType)
}

func TestJWTRejectsForeignAndExpiredTokens(t *testing.T) {
	svc := NewJWTService("secret", 15, 7)
	other := NewJWTService("other-secret", 15, 7)

	pair, err := other.Generate("user-1", models.RoleUser)
	require.NoError(t, err)
	_, err = svc.Verify(pair.AccessToken)
	assert.Error(t, err)

	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := svc.Generate("user-1", models.RoleUser)
	require.NoError(t, err)
	_, err = svc.Verify(old.AccessToken)
	assert.Error(t, err)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptPasswordHasher(4)

	hash, err := h.Hash("hunter22")
	require.NoError(t, err)
	assert.NoError(t, h.Verify("hunter22", hash))
	assert.Error(t, h.Verify("wrong", hash))
	assert.Error(t, h.Verify("hunter22", "not-a-hash"))
}

func TestEnforcer(t *testing.T) {
	e, err := NewEnforcer()
	require.NoError(t, err)

	tests := []struct {
		role, path, method string
		want               bool
	}{
		{models.RoleUser, "/api/v1/jobs", "GET", true},
		{models.RoleUser, "/api/v1/admin/users", "GET", false},
		{models.RoleAdmin, "/api/v1/admin/users", "DELETE", true},
		{models.RoleAdmin, "/api/v1/jobs/3/save", "POST", true},
		{"guest", "/api/v1/jobs", "GET", false},
	}
	for _, tt := range tests {
		allowed, err := e.Enforce(tt.role, tt.path, tt.method)
		require.NoError(t, err)
		assert.Equal(t, tt.want, allowed, "%s %s %s", tt.role, tt.method, tt.path)
	}
}
