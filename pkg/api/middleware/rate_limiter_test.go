package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	. "unitlens/pkg/api/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{
		RequestsPerMinute: 10,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	})

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow("client1"), "request %d should be allowed", i+1)
	}
}

func TestRateLimiter_BlocksExcessRequests(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{
		RequestsPerMinute: 60,
		BurstSize:         2,
		CleanupInterval:   time.Minute,
	})

	limiter.Allow("client1")
	limiter.Allow("client1")

	assert.False(t, limiter.Allow("client1"), "third request should be blocked after burst exhausted")
}

func TestRateLimiter_SeparatesClients(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{
		RequestsPerMinute: 60,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})

	limiter.Allow("client1")
	assert.True(t, limiter.Allow("client2"), "different client should have separate quota")
	assert.Equal(t, 2, limiter.Clients())
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{
		RequestsPerMinute: 6000, // 100 per second
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})

	limiter.Allow("client1")
	time.Sleep(20 * time.Millisecond)
	assert.True(t, limiter.Allow("client1"), "token should have refilled after waiting")
}

func TestRateLimiter_RunStopsWithContext(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{
		RequestsPerMinute: 60,
		BurstSize:         1,
		CleanupInterval:   10 * time.Millisecond,
	})
	limiter.Allow("idle")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		limiter.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return limiter.Clients() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRateLimiterMiddleware_Returns429(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{
		RequestsPerMinute: 60,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})

	router := gin.New()
	router.Use(limiter.Middleware())
	router.GET("/summary", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/summary", nil)
	req.RemoteAddr = "192.168.1.1:1234"

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	assert.Equal(t, "1", w2.Header().Get("Retry-After"))
	assert.Contains(t, w2.Body.String(), "rate limit exceeded")
}
