package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Reaper    ReaperConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type DatabaseConfig struct {
	URL      string
	LogLevel string
}

type RedisConfig struct {
	URL string
}

type QueueConfig struct {
	BrokerURL      string
	ResultBackend  string
	DefaultQueue   string
	Concurrency    int
	MaxRetry       int
	EnqueueTimeout time.Duration
	ProbeTimeout   time.Duration
	Retention      time.Duration
}

type WorkerConfig struct {
	PlaceholderURL string
}

type ReaperConfig struct {
	Enabled    bool
	Schedule   string
	StaleAfter time.Duration
}

type RateLimitConfig struct {
	GeneratePerHour int
}

type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PresignExpiry   time.Duration
}

// Load builds the configuration from defaults, an optional config.yaml,
// an optional .env file and the process environment, in increasing priority.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readSecret("DATABASE_URL")
	readSecret("REDIS_URL")
	readSecret("BROKER_URL")
	readSecret("S3_ACCESS_KEY_ID")
	readSecret("S3_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	_ = v.BindEnv("redis.url", "REDIS_URL")
	_ = v.BindEnv("queue.broker_url", "BROKER_URL")
	_ = v.BindEnv("queue.result_backend", "RESULT_BACKEND_URL")
	_ = v.BindEnv("queue.default_queue", "DEFAULT_QUEUE")
	_ = v.BindEnv("queue.concurrency", "QUEUE_CONCURRENCY")
	_ = v.BindEnv("queue.max_retry", "QUEUE_MAX_RETRY")
	_ = v.BindEnv("queue.enqueue_timeout", "QUEUE_ENQUEUE_TIMEOUT")
	_ = v.BindEnv("queue.probe_timeout", "QUEUE_PROBE_TIMEOUT")
	_ = v.BindEnv("queue.retention", "QUEUE_RETENTION")
	_ = v.BindEnv("worker.placeholder_url", "WORKER_PLACEHOLDER_URL")
	_ = v.BindEnv("reaper.enabled", "REAPER_ENABLED")
	_ = v.BindEnv("reaper.schedule", "REAPER_SCHEDULE")
	_ = v.BindEnv("reaper.stale_after", "REAPER_STALE_AFTER")
	_ = v.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	_ = v.BindEnv("storage.region", "S3_REGION")
	_ = v.BindEnv("storage.access_key_id", "S3_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.secret_access_key", "S3_SECRET_ACCESS_KEY")
	_ = v.BindEnv("storage.presign_expiry", "S3_PRESIGN_EXPIRY")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.url", "sqlite:///./hidden_hill.db")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("queue.default_queue", "hidden-hill")
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.max_retry", 0)
	v.SetDefault("queue.enqueue_timeout", time.Second)
	v.SetDefault("queue.probe_timeout", time.Second)
	v.SetDefault("queue.retention", 24*time.Hour)
	v.SetDefault("worker.placeholder_url", "s3://fake/video.mp4")
	v.SetDefault("reaper.enabled", true)
	v.SetDefault("reaper.schedule", "@every 5m")
	v.SetDefault("reaper.stale_after", time.Hour)
	v.SetDefault("ratelimit.generate_per_hour", 30)
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.presign_expiry", 15*time.Minute)

	// config.yaml is optional, but a broken one is an error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("server.port"),
			Env:      v.GetString("server.env"),
			LogLevel: v.GetString("server.log_level"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("database.url"),
			LogLevel: v.GetString("database.log_level"),
		},
		Redis: RedisConfig{
			URL: v.GetString("redis.url"),
		},
		Queue: QueueConfig{
			BrokerURL:      v.GetString("queue.broker_url"),
			ResultBackend:  v.GetString("queue.result_backend"),
			DefaultQueue:   v.GetString("queue.default_queue"),
			Concurrency:    v.GetInt("queue.concurrency"),
			MaxRetry:       v.GetInt("queue.max_retry"),
			EnqueueTimeout: v.GetDuration("queue.enqueue_timeout"),
			ProbeTimeout:   v.GetDuration("queue.probe_timeout"),
			Retention:      v.GetDuration("queue.retention"),
		},
		Worker: WorkerConfig{
			PlaceholderURL: v.GetString("worker.placeholder_url"),
		},
		Reaper: ReaperConfig{
			Enabled:    v.GetBool("reaper.enabled"),
			Schedule:   v.GetString("reaper.schedule"),
			StaleAfter: v.GetDuration("reaper.stale_after"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: v.GetInt("ratelimit.generate_per_hour"),
		},
		Storage: StorageConfig{
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			PresignExpiry:   v.GetDuration("storage.presign_expiry"),
		},
	}

	// Broker and result backend follow REDIS_URL unless set explicitly.
	if cfg.Queue.BrokerURL == "" {
		cfg.Queue.BrokerURL = cfg.Redis.URL
	}
	if cfg.Queue.ResultBackend == "" {
		cfg.Queue.ResultBackend = cfg.Redis.URL
	}

	return cfg, nil
}
