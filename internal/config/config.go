package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

const (
	// HealthCheckInterval is the period between health probe sweeps. The
	// external processors rate-limit the health endpoint to one call per
	// 5 seconds; probing faster is a protocol error.
	HealthCheckInterval = 5 * time.Second

	// HealthCheckTimeout bounds a single health probe request.
	HealthCheckTimeout = 2 * time.Second

	// ProcessorTimeout bounds an outbound payment call so a slow processor
	// cannot block a worker indefinitely.
	ProcessorTimeout = 2 * time.Second

	// QueuePopTimeout is how long a blocking pop waits for a message.
	QueuePopTimeout = 1 * time.Second

	// WorkerBackoff is the pause after a transient store failure.
	WorkerBackoff = 1 * time.Second

	// StoreDialTimeout bounds the initial connection to the backing store.
	StoreDialTimeout = 1 * time.Second

	// SlowResponseThresholdMS is the latency above which a processor is
	// latency-penalized and skipped by the router.
	SlowResponseThresholdMS = 100

	// BreakerWindowSize is the number of recent calls the circuit breaker
	// considers before it may trip.
	BreakerWindowSize = 20

	// BreakerFailureRatio is the failure ratio over a full window that
	// transitions a breaker from closed to open.
	BreakerFailureRatio = 0.5

	// BreakerCooldown is how long an open breaker short-circuits calls
	// before admitting a half-open probe.
	BreakerCooldown = 30 * time.Second

	// SummaryWindow is the default half-width of the summary range when the
	// caller omits the bounds.
	SummaryWindow = 30 * 24 * time.Hour

	// DefaultWorkerCount is the worker pool size unless overridden.
	DefaultWorkerCount = 4
)

// Config holds the environment-driven settings. Required fields fail Load
// when absent so a misconfigured process never starts.
type Config struct {
	RedisURL             string
	DefaultProcessorURL  string
	FallbackProcessorURL string
	ServerKeepalive      time.Duration
	Port                 string
	WorkerCount          int
	LogLevel             slog.Level
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	cfg := Config{
		ServerKeepalive: 60 * time.Second,
		Port:            "9999",
		WorkerCount:     DefaultWorkerCount,
		LogLevel:        slog.LevelInfo,
	}

	var err error
	if cfg.RedisURL, err = requireEnv("REDIS_URL"); err != nil {
		return Config{}, err
	}
	if cfg.DefaultProcessorURL, err = requireEnv("DEFAULT_PAYMENT_PROCESSOR_URL"); err != nil {
		return Config{}, err
	}
	if cfg.FallbackProcessorURL, err = requireEnv("FALLBACK_PAYMENT_PROCESSOR_URL"); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("SERVER_KEEPALIVE"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("invalid SERVER_KEEPALIVE %q: expected positive integer seconds", v)
		}
		cfg.ServerKeepalive = time.Duration(secs) * time.Second
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}

	if v := os.Getenv("WORKER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid WORKER_COUNT %q: expected integer >= 1", v)
		}
		cfg.WorkerCount = n
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
		cfg.LogLevel = level
	}

	return cfg, nil
}

func requireEnv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("missing required environment variable %s", name)
	}
	return v, nil
}
