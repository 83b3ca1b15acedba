package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("REQUESTS_SINGLE_ACTIVE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.True(t, cfg.Requests.SingleActive)
	assert.Equal(t, 30, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, MailDriverLog, cfg.Mail.Driver)
	assert.Equal(t, int64(10*1024*1024), cfg.Storage.MaxUploadBytes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REQUESTS_SINGLE_ACTIVE", "false")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("FRONTEND_URL", "https://app.example/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Requests.SingleActive)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "https://app.example", cfg.Mail.FrontendURL)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Second, parseDuration("", time.Second))
	assert.Equal(t, time.Second, parseDuration("nope", time.Second))
	assert.Equal(t, 3*time.Minute, parseDuration("3m", time.Second))
}
