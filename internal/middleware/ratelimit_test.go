package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Post("/limited", handler, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func TestLimitFailsOpenWhenRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	app := newApp(NewRateLimiter(rdb).GenerateLimit(1))
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/limited", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}
}

func TestLimitDisabled(t *testing.T) {
	app := newApp(NewRateLimiter(nil).GenerateLimit(0))
	resp, err := app.Test(httptest.NewRequest("POST", "/limited", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestLimitRejectsOverLimit(t *testing.T) {
	mr, rdb := newMiniredis(t)
	app := newApp(NewRateLimiter(rdb).GenerateLimit(2))

	for _, remaining := range []string{"1", "0"} {
		resp, err := app.Test(httptest.NewRequest("POST", "/limited", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, remaining, resp.Header.Get("X-RateLimit-Remaining"))
	}

	resp, err := app.Test(httptest.NewRequest("POST", "/limited", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "3600", resp.Header.Get("Retry-After"))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))

	mr.FastForward(time.Hour)

	resp, err = app.Test(httptest.NewRequest("POST", "/limited", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestLimitRestoresMissingExpiry(t *testing.T) {
	mr, rdb := newMiniredis(t)
	app := newApp(NewRateLimiter(rdb).GenerateLimit(1))

	resp, err := app.Test(httptest.NewRequest("POST", "/limited", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.NoError(t, mr.Set(keys[0], "1"))
	require.Zero(t, mr.TTL(keys[0]))

	resp, err = app.Test(httptest.NewRequest("POST", "/limited", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "3600", resp.Header.Get("Retry-After"))
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))

	mr.FastForward(time.Hour)
	resp, err = app.Test(httptest.NewRequest("POST", "/limited", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}
