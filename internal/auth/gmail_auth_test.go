package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const installedCredentials = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret",
"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",
"redirect_uris":["http://localhost"]}}`

func TestGmailConfig(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credential.json")
	require.NoError(t, os.WriteFile(creds, []byte(installedCredentials), 0o600))

	cfg, err := GmailConfig(creds)
	require.NoError(t, err)
	assert.Equal(t, "id.apps.googleusercontent.com", cfg.ClientID)
	assert.Contains(t, cfg.Scopes, "https://www.googleapis.com/auth/gmail.readonly")

	_, err = GmailConfig(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "unable to read client secret file")
}

func TestGmailClientNeedsStoredToken(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credential.json")
	tokenFile := filepath.Join(dir, "token.json")
	require.NoError(t, os.WriteFile(creds, []byte(installedCredentials), 0o600))

	_, err := GmailClient(context.Background(), creds, tokenFile)
	assert.ErrorContains(t, err, "no stored gmail token")

	want := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour).UTC()}
	require.NoError(t, saveToken(tokenFile, want))
	got, err := tokenFromFile(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.True(t, want.Expiry.Equal(got.Expiry))

	client, err := GmailClient(context.Background(), creds, tokenFile)
	require.NoError(t, err)
	assert.NotNil(t, client)
}
