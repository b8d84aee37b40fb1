package chdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CH_API_KEY", "")
	t.Setenv("CH_BASE_URL", "")
	t.Setenv("CHDATA_DB_PATH", "")
	t.Setenv("CH_REQUEST_TIMEOUT", "")
	t.Setenv("CH_REQUEST_INTERVAL", "")
	t.Setenv("LOG_LEVEL", "")

	cfg := LoadConfig()
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "chdata.db", cfg.DatabasePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 800*time.Millisecond, cfg.RequestInterval)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CH_API_KEY", "secret")
	t.Setenv("CH_BASE_URL", "http://localhost:9999")
	t.Setenv("CHDATA_DB_PATH", "/tmp/statements.db")
	t.Setenv("CH_REQUEST_TIMEOUT", "30s")
	t.Setenv("CH_REQUEST_INTERVAL", "250ms")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadConfig()
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "http://localhost:9999", cfg.BaseURL)
	assert.Equal(t, "/tmp/statements.db", cfg.DatabasePath)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.RequestInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigBadDuration(t *testing.T) {
	t.Setenv("CH_REQUEST_TIMEOUT", "not a duration")
	cfg := LoadConfig()
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 800*time.Millisecond, cfg.RequestInterval)
}
