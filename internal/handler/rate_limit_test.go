package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/identity-gateway/internal/service"
	"github.com/prperemyshlev/identity-gateway/pkg/database"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newRateLimitedRouter(t *testing.T, limit int) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := service.NewRateLimiter(&database.Redis{Client: client})
	router := gin.New()
	router.POST("/auth/login", RateLimitMiddleware(limiter, limit, time.Minute, RouteAndIPKey, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router, mr
}

func TestRateLimitMiddleware(t *testing.T) {
	router, _ := newRateLimitedRouter(t, 2)

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		return w
	}

	first := send()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, send().Code)

	denied := send()
	assert.Equal(t, http.StatusTooManyRequests, denied.Code)
	assert.Equal(t, "0", denied.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, denied.Header().Get("Retry-After"))
	assert.Equal(t, "Too Many Requests", decodeError(t, denied).Error)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	router, mr := newRateLimitedRouter(t, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}
