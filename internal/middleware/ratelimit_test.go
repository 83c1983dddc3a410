package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRateLimiter_Allow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewEnforcingRateLimiter(rdb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(ctx, "login", "ip:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, err := l.Allow(ctx, "login", "ip:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	other, err := l.Allow(ctx, "login", "ip:5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, other)

	assert.Equal(t, time.Minute, mr.TTL("rl:login:ip:1.2.3.4"))
	mr.FastForward(time.Minute + time.Second)

	allowed, err = l.Allow(ctx, "login", "ip:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiter_EnvironmentBypass(t *testing.T) {
	for _, env := range []string{"", "test", "development", "stress"} {
		l := NewRateLimiter(nil, env)
		allowed, err := l.Allow(context.Background(), "x", "y", 0, time.Minute)
		assert.NoError(t, err, env)
		assert.True(t, allowed, env)
	}

	_, err := NewRateLimiter(nil, "production").Allow(context.Background(), "x", "y", 1, time.Minute)
	assert.Error(t, err)
}

func TestRateLimiter_Handler(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewEnforcingRateLimiter(rdb)

	app := fiber.New()
	app.Post("/signup", l.Handler(2, time.Minute, FailOpen, "signup"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/signup", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests {
			assert.Equal(t, "60", resp.Header.Get("Retry-After"))
		}
		_ = resp.Body.Close()
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_FailurePolicies(t *testing.T) {
	l := NewRateLimiter(nil, "production")

	app := fiber.New()
	open := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Get("/open", l.Handler(1, time.Minute, FailOpen), open)
	app.Get("/closed", l.Handler(1, time.Minute, FailClosed), open)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/open", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/closed", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_ = resp.Body.Close()
}
