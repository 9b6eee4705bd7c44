package worker

import (
	"strings"

	"github.com/hibiken/asynq"

	"github.com/hiddenhill/api/internal/config"
	"github.com/hiddenhill/api/internal/logger"
	"github.com/hiddenhill/api/internal/service"
)

// RedisConnOpt parses a redis:// URL into asynq connection options
func RedisConnOpt(url string) (asynq.RedisConnOpt, error) {
	return asynq.ParseRedisURI(url)
}

// LogLevel maps the application log level onto asynq's
func LogLevel(level string) asynq.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return asynq.DebugLevel
	case "warn", "warning":
		return asynq.WarnLevel
	case "error":
		return asynq.ErrorLevel
	default:
		return asynq.InfoLevel
	}
}

// NewServer creates the asynq server consuming the default queue
func NewServer(cfg *config.Config, redisOpt asynq.RedisConnOpt) *asynq.Server {
	concurrency := cfg.Queue.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			cfg.Queue.DefaultQueue: 1,
		},
		Logger:   logger.Logger(),
		LogLevel: LogLevel(cfg.Server.LogLevel),
	})
}

// NewMux routes task types to their handlers
func NewMux(videoWorker *VideoWorker, reaper *Reaper) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeGenerateVideo, videoWorker.ProcessTask)
	if reaper != nil {
		mux.HandleFunc(service.TaskTypeReapStale, reaper.ProcessTask)
	}
	return mux
}

// NewScheduler registers the periodic reaper sweep
func NewScheduler(cfg *config.Config, redisOpt asynq.RedisConnOpt) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   logger.Logger(),
		LogLevel: LogLevel(cfg.Server.LogLevel),
	})
	if _, err := scheduler.Register(cfg.Reaper.Schedule, NewReapTask(),
		asynq.Queue(cfg.Queue.DefaultQueue),
		asynq.MaxRetry(0),
	); err != nil {
		return nil, err
	}
	return scheduler, nil
}
