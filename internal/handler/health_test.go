package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiddenhill/api/internal/model"
)

type stubInspector struct {
	servers []*asynq.ServerInfo
	err     error
	delay   time.Duration
}

func (s stubInspector) Servers() ([]*asynq.ServerInfo, error) {
	time.Sleep(s.delay)
	return s.servers, s.err
}

func TestRootAndLiveness(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Hidden Hill API is running"}`, string(body))

	resp, body = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestDetailedHealthWithoutDependencies(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[model.HealthResponse](t, body)
	assert.Equal(t, "ok", health.API)
	assert.False(t, health.Redis)
	assert.False(t, health.WorkerPing)
}

func TestWorkerPing(t *testing.T) {
	live := NewHealthHandler(nil, stubInspector{servers: []*asynq.ServerInfo{{ID: "w1"}}}, 100*time.Millisecond)
	assert.True(t, live.pingWorkers())

	none := NewHealthHandler(nil, stubInspector{}, 100*time.Millisecond)
	assert.False(t, none.pingWorkers())

	broken := NewHealthHandler(nil, stubInspector{err: errors.New("redis down")}, 100*time.Millisecond)
	assert.False(t, broken.pingWorkers())

	slow := NewHealthHandler(nil, stubInspector{servers: []*asynq.ServerInfo{{ID: "w1"}}, delay: time.Second}, 50*time.Millisecond)
	start := time.Now()
	assert.False(t, slow.pingWorkers())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRedisPingUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	h := NewHealthHandler(rdb, nil, 200*time.Millisecond)
	start := time.Now()
	assert.False(t, h.pingRedis(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestRedisPingCoversBroker(t *testing.T) {
	cache := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	defer cache.Close()
	broker := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	defer broker.Close()
	down := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer down.Close()

	require.True(t, NewHealthHandler(cache, nil, 200*time.Millisecond).pingRedis(context.Background()))
	assert.True(t, NewHealthHandler(cache, nil, 200*time.Millisecond).WithBroker(cache).pingRedis(context.Background()))
	assert.True(t, NewHealthHandler(cache, nil, 200*time.Millisecond).WithBroker(broker).pingRedis(context.Background()))
	assert.False(t, NewHealthHandler(cache, nil, 200*time.Millisecond).WithBroker(down).pingRedis(context.Background()))
}
