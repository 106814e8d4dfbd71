package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "database", cfg.Accounting.Source)
	assert.Equal(t, 3*time.Second, cfg.Scraper.PollInterval)
	assert.Equal(t, "host=localhost user=postgres password=password dbname=jobtracker port=5432 sslmode=disable", cfg.Database.GetDSN())
	assert.Same(t, cfg, Get())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JOBTRACKR_SERVER_PORT", "9090")
	t.Setenv("JOBTRACKR_SCRAPER_BASE_URL", "http://scraper:8000")
	t.Setenv("GEMINI_API_KEY", "legacy-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://scraper:8000", cfg.Scraper.BaseURL)
	assert.Equal(t, "legacy-key", cfg.LLM.GeminiAPIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "api source without base url",
			cfg:     Config{Accounting: AccountingConfig{Source: "api"}},
			wantErr: true,
		},
		{
			name: "api source with base url",
			cfg:  Config{Accounting: AccountingConfig{Source: "api", APIBaseURL: "http://primary:8080"}},
		},
		{
			name:    "unknown source",
			cfg:     Config{Accounting: AccountingConfig{Source: "supabase"}},
			wantErr: true,
		},
		{
			name:    "release mode with default secret",
			cfg:     Config{Server: ServerConfig{Mode: "release"}, Auth: AuthConfig{JWTSecret: defaultJWTSecret}},
			wantErr: true,
		},
		{
			name: "empty source defaults to database",
			cfg:  Config{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
