package config

import (
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "python3", cfg.Content.Python)
	assert.Equal(t, 1, cfg.Content.Concurrency)
	assert.False(t, cfg.Content.RequireAuth)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.AdminEnabled())
}

func TestFromMap_Prefixes(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"SERVER_ADDRESS":       "127.0.0.1:9000",
		"SERVER_CORS_ORIGINS":  "https://a.example,https://b.example",
		"AUTH_SECRET":          "s3cret",
		"AUTH_ADMIN_EMAIL":     "admin@example.edu",
		"BACKEND_URL":          "http://api:8000",
		"BACKEND_TIMEOUT":      "2s",
		"FONT_REGULAR":         "/fonts/r.ttf",
		"CONTENT_REQUIRE_AUTH": "true",
		"CONTENT_CONCURRENCY":  "2",
		"CONTENT_ENV":          "OPENAI_MODEL=gpt-4o;DATA_DIR=/srv/data",
		"UPLOAD_MAX_WIDTH":     "800",
		"LOG_PRETTY":           "false",
		"SITE_PROFILE":         "site.yaml",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "http://api:8000", cfg.Backend.URL)
	assert.Equal(t, 2*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "/fonts/r.ttf", cfg.Font.Regular)
	assert.True(t, cfg.Content.RequireAuth)
	assert.Equal(t, 2, cfg.Content.Concurrency)
	assert.Equal(t, []string{"OPENAI_MODEL=gpt-4o", "DATA_DIR=/srv/data"}, cfg.Content.Env)
	assert.Equal(t, 800, cfg.Upload.MaxWidth)
	assert.False(t, cfg.Log.Pretty)
	assert.Equal(t, "site.yaml", cfg.SiteProfile)
	assert.True(t, cfg.AdminEnabled())
}

func TestFromMap_Invalid(t *testing.T) {
	_, err := FromMap(map[string]string{"AUTH_ADMIN_EMAIL": "admin@example.edu"})
	assert.ErrorContains(t, err, "AUTH_SECRET")

	_, err = FromMap(map[string]string{"CONTENT_CONCURRENCY": "0", "UPLOAD_JPEG_QUALITY": "200"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "CONTENT_CONCURRENCY")
	assert.ErrorContains(t, err, "UPLOAD_JPEG_QUALITY")

	_, err = FromMap(map[string]string{"BACKEND_TIMEOUT": "soon"})
	assert.ErrorContains(t, err, "parse env")
}

func TestExample_Parses(t *testing.T) {
	vars, err := godotenv.Unmarshal(Example())
	require.NoError(t, err)

	cfg, err := FromMap(vars)
	require.NoError(t, err)
	assert.True(t, cfg.AdminEnabled())
	assert.Equal(t, "scripts", cfg.Content.ScriptDir)
}
