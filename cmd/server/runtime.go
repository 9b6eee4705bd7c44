package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/hiddenhill/api/internal/client"
	"github.com/hiddenhill/api/internal/config"
	"github.com/hiddenhill/api/internal/db"
	"github.com/hiddenhill/api/internal/db/repos"
	"github.com/hiddenhill/api/internal/events"
	"github.com/hiddenhill/api/internal/handler"
	"github.com/hiddenhill/api/internal/logger"
	"github.com/hiddenhill/api/internal/middleware"
	"github.com/hiddenhill/api/internal/service"
	ws "github.com/hiddenhill/api/internal/websocket"
	"github.com/hiddenhill/api/internal/worker"
)

// runtime holds the shared resources of one process
type runtime struct {
	cfg      *config.Config
	db       *gorm.DB
	jobs     *service.JobService
	users    *repos.UserRepository
	redis    *redis.Client
	events   *redis.Client
	broker   *redis.Client
	brokerOp asynq.RedisConnOpt
}

func withStore(cfg *config.Config, fn func(rt *runtime) error) error {
	gdb, err := db.New(db.Options{
		URL:      cfg.Database.URL,
		LogLevel: db.ParseLogLevel(cfg.Database.LogLevel),
	})
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	return fn(&runtime{
		cfg:   cfg,
		db:    gdb,
		jobs:  service.NewJobService(repos.NewJobRepository(gdb), repos.NewVideoRepository(gdb)),
		users: repos.NewUserRepository(gdb),
	})
}

func withRuntime(cfg *config.Config, fn func(rt *runtime) error) error {
	return withStore(cfg, func(rt *runtime) error {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rt.redis = redis.NewClient(redisOpts)
		defer rt.redis.Close()

		eventOpts, err := redis.ParseURL(cfg.Queue.ResultBackend)
		if err != nil {
			return fmt.Errorf("invalid RESULT_BACKEND_URL: %w", err)
		}
		rt.events = redis.NewClient(eventOpts)
		defer rt.events.Close()

		rt.brokerOp, err = worker.RedisConnOpt(cfg.Queue.BrokerURL)
		if err != nil {
			return fmt.Errorf("invalid BROKER_URL: %w", err)
		}
		rt.broker = rt.redis
		if cfg.Queue.BrokerURL != cfg.Redis.URL {
			brokerOpts, err := redis.ParseURL(cfg.Queue.BrokerURL)
			if err != nil {
				return fmt.Errorf("invalid BROKER_URL: %w", err)
			}
			rt.broker = redis.NewClient(brokerOpts)
			defer rt.broker.Close()
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Queue.ProbeTimeout)
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			logger.Warnf("Redis not available: %v", err)
		}
		cancel()

		return fn(rt)
	})
}

// serve runs the API and the worker until ctx is done or either fails
func (rt *runtime) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	go func() { errs <- rt.runWorker(ctx) }()
	go func() { errs <- rt.runAPI(ctx) }()

	first := <-errs
	cancel()
	second := <-errs
	return errors.Join(first, second)
}

func (rt *runtime) runAPI(ctx context.Context) error {
	asynqClient := asynq.NewClient(rt.brokerOp)
	defer asynqClient.Close()

	inspector := asynq.NewInspector(rt.brokerOp)
	defer inspector.Close()

	var signer client.URLSigner
	if rt.cfg.Storage.AccessKeyID != "" && rt.cfg.Storage.SecretAccessKey != "" {
		s3Client, err := client.NewS3Client(&rt.cfg.Storage)
		if err != nil {
			logger.Warnf("Storage client not initialized: %v", err)
		} else {
			signer = s3Client
		}
	} else {
		logger.Info("Object storage not configured, download links use stored urls")
	}

	dispatcher := service.NewAsynqDispatcher(asynqClient, rt.cfg.Queue)
	videoService := service.NewVideoService(rt.jobs, rt.users, dispatcher, signer)

	hub := ws.NewHub()
	go hub.Run(ctx)
	go hub.Relay(ctx, rt.events)

	app := handler.NewApp(handler.Routes{
		Video:           handler.NewVideoHandler(videoService, handler.NewValidator()),
		Health:          handler.NewHealthHandler(rt.redis, inspector, rt.cfg.Queue.ProbeTimeout).WithBroker(rt.broker),
		Stream:          handler.NewStreamHandler(rt.jobs, hub),
		RateLimiter:     middleware.NewRateLimiter(rt.redis),
		GeneratePerHour: rt.cfg.RateLimit.GeneratePerHour,
		LogLevel:        rt.cfg.Server.LogLevel,
	})

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
	}()

	addr := ":" + rt.cfg.Server.Port
	logger.Infof("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (rt *runtime) runWorker(ctx context.Context) error {
	reporter := worker.NewProgressReporter(rt.jobs, events.NewRedisPublisher(rt.events))
	videoWorker := worker.NewVideoWorker(rt.jobs, reporter, worker.PlaceholderGenerator{URL: rt.cfg.Worker.PlaceholderURL})

	var reaper *worker.Reaper
	if rt.cfg.Reaper.Enabled {
		reaper = worker.NewReaper(rt.jobs, rt.cfg.Reaper.StaleAfter)
	}

	srv := worker.NewServer(rt.cfg, rt.brokerOp)
	if err := srv.Start(worker.NewMux(videoWorker, reaper)); err != nil {
		return fmt.Errorf("asynq worker error: %w", err)
	}
	defer srv.Shutdown()
	logger.Infof("Worker consuming queue %q", rt.cfg.Queue.DefaultQueue)

	if reaper != nil {
		scheduler, err := worker.NewScheduler(rt.cfg, rt.brokerOp)
		if err != nil {
			return fmt.Errorf("failed to schedule reaper: %w", err)
		}
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer scheduler.Shutdown()
	}

	<-ctx.Done()
	logger.Info("Shutting down worker...")
	return nil
}
