package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/hiddenhill/api/internal/model"
	"github.com/hiddenhill/api/pkg/response"
)

// WorkerInspector is the part of asynq.Inspector used to find live workers
type WorkerInspector interface {
	Servers() ([]*asynq.ServerInfo, error)
}

type HealthHandler struct {
	redis     *redis.Client
	broker    *redis.Client
	inspector WorkerInspector
	timeout   time.Duration
}

// NewHealthHandler creates the handler. redis and inspector may be nil, in
// which case the matching probe reports false.
func NewHealthHandler(redisClient *redis.Client, inspector WorkerInspector, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &HealthHandler{
		redis:     redisClient,
		inspector: inspector,
		timeout:   timeout,
	}
}

// WithBroker adds the queue broker to the redis probe when it is not the
// same server as the cache.
func (h *HealthHandler) WithBroker(broker *redis.Client) *HealthHandler {
	h.broker = broker
	return h
}

// Root handles GET /
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"message": "Hidden Hill API is running"})
}

// Live handles GET /health
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"status": "ok"})
}

// Detailed handles GET /api/health
// @Summary      Dependency health
// @Description  Probe Redis (cache and broker) and the background workers; each probe is bounded by the probe timeout
// @Tags         Health
// @Produce      json
// @Success      200 {object} model.HealthResponse
// @Router       /api/health [get]
func (h *HealthHandler) Detailed(c *fiber.Ctx) error {
	return response.OK(c, model.HealthResponse{
		API:        "ok",
		Redis:      h.pingRedis(c.UserContext()),
		WorkerPing: h.pingWorkers(),
	})
}

func (h *HealthHandler) pingRedis(ctx context.Context) bool {
	if h.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if h.redis.Ping(ctx).Err() != nil {
		return false
	}
	if h.broker != nil && h.broker != h.redis {
		return h.broker.Ping(ctx).Err() == nil
	}
	return true
}

// pingWorkers reports whether at least one worker server is registered.
// Inspector calls take no context, so the wait is bounded here.
func (h *HealthHandler) pingWorkers() bool {
	if h.inspector == nil {
		return false
	}
	result := make(chan bool, 1)
	go func() {
		servers, err := h.inspector.Servers()
		result <- err == nil && len(servers) > 0
	}()

	select {
	case ok := <-result:
		return ok
	case <-time.After(h.timeout):
		return false
	}
}
