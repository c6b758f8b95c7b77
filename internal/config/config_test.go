package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DEFAULT_PAYMENT_PROCESSOR_URL", "http://default:8080")
	t.Setenv("FALLBACK_PAYMENT_PROCESSOR_URL", "http://fallback:8080")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "http://default:8080", cfg.DefaultProcessorURL)
	assert.Equal(t, "http://fallback:8080", cfg.FallbackProcessorURL)
	assert.Equal(t, 60*time.Second, cfg.ServerKeepalive)
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, DefaultWorkerCount, cfg.WorkerCount)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_KEEPALIVE", "120")
	t.Setenv("PORT", "8080")
	t.Setenv("WORKER_COUNT", "16")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 120*time.Second, cfg.ServerKeepalive)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 16, cfg.WorkerCount)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		missing string
	}{
		{"redis url", "REDIS_URL"},
		{"default processor url", "DEFAULT_PAYMENT_PROCESSOR_URL"},
		{"fallback processor url", "FALLBACK_PAYMENT_PROCESSOR_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.missing, "")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric keepalive", "SERVER_KEEPALIVE", "sixty"},
		{"zero keepalive", "SERVER_KEEPALIVE", "0"},
		{"non-numeric worker count", "WORKER_COUNT", "many"},
		{"zero worker count", "WORKER_COUNT", "0"},
		{"unknown log level", "LOG_LEVEL", "chatty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
