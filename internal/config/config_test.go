package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "DB_DSN", "SHUTDOWN_TIMEOUT_SECONDS", "SESSION_TTL_MINUTES", "CORS_ALLOW_ORIGINS", "CAMERA_MODE", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.DBConnString)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowOrigins)
	assert.Equal(t, "simulated", cfg.CameraMode)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("SESSION_TTL_MINUTES", "bogus")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://shop.example, ,https://m.shop.example")
	t.Setenv("CAMERA_MODE", "denied")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL, "invalid values fall back to the default")
	assert.Equal(t, []string{"https://shop.example", "https://m.shop.example"}, cfg.CORSAllowOrigins)
	assert.Equal(t, "denied", cfg.CameraMode)
}
