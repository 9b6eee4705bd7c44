package testsupport

import (
	"testing"
	"time"

	"github.com/hiddenhill/api/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config that never reaches real infrastructure: the
// broker points at a closed port and every timeout is short.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Server:   config.ServerConfig{Port: "0", Env: "test", LogLevel: "error"},
		Database: config.DatabaseConfig{LogLevel: "silent"},
		Redis:    config.RedisConfig{URL: "redis://127.0.0.1:1/0"},
		Queue: config.QueueConfig{
			BrokerURL:      "redis://127.0.0.1:1/0",
			ResultBackend:  "redis://127.0.0.1:1/0",
			DefaultQueue:   "hidden-hill-test",
			Concurrency:    1,
			EnqueueTimeout: 200 * time.Millisecond,
			ProbeTimeout:   200 * time.Millisecond,
			Retention:      time.Minute,
		},
		Worker:    config.WorkerConfig{PlaceholderURL: "s3://fake/video.mp4"},
		Reaper:    config.ReaperConfig{Schedule: "@every 5m", StaleAfter: time.Hour},
		RateLimit: config.RateLimitConfig{GeneratePerHour: 0},
		Storage:   config.StorageConfig{Region: "auto", PresignExpiry: time.Minute},
	}

	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithPlaceholderURL overrides the URL the placeholder generator returns.
func WithPlaceholderURL(url string) ConfigOption {
	return func(c *config.Config) {
		c.Worker.PlaceholderURL = url
	}
}
