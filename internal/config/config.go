package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration parsed from environment variables.
type Config struct {
	HTTPAddr         string
	DBConnString     string
	ShutdownTimeout  time.Duration
	SessionTTL       time.Duration
	CORSAllowOrigins []string
	CameraMode       string
	LogLevel         string
}

// FromEnv builds Config with defaults, overridden by environment variables.
// An empty DB_DSN serves the embedded catalog.
func FromEnv() Config {
	return Config{
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		DBConnString:     os.Getenv("DB_DSN"),
		ShutdownTimeout:  envDuration("SHUTDOWN_TIMEOUT_SECONDS", time.Second, 10*time.Second),
		SessionTTL:       envDuration("SESSION_TTL_MINUTES", time.Minute, 30*time.Minute),
		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{"*"}),
		CameraMode:       envOrDefault("CAMERA_MODE", "simulated"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, unit, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			return time.Duration(n) * unit
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
