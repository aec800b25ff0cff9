package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariebrainware/hospital-appointment/config"
	"github.com/gin-gonic/gin"
)

func newRateLimitedRouter(cfg RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimiter(cfg))
	r.POST("/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	return r
}

func postLogin(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "192.168.1.1:1234"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_WithoutRedis(t *testing.T) {
	config.ResetRedisClientForTest()
	r := newRateLimitedRouter(RateLimitConfig{Limit: 5, Window: 15 * time.Minute})

	for i := 0; i < 10; i++ {
		if w := postLogin(r); w.Code != http.StatusOK {
			t.Errorf("Request %d: expected status 200, got %d", i+1, w.Code)
		}
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	captureSecurityLog(t)
	mock := setupRedisMock(t)
	key := "ratelimit:/login:192.168.1.1"
	window := time.Minute

	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectExpire(key, window).SetVal(true)
	mock.ExpectIncr(key).SetVal(3)
	mock.ExpectExpire(key, window).SetVal(true)

	r := newRateLimitedRouter(RateLimitConfig{Limit: 2, Window: window})
	if w := postLogin(r); w.Code != http.StatusOK {
		t.Fatalf("expected request within limit to pass, got %d", w.Code)
	}
	w := postLogin(r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected request over limit to be rejected, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After 60, got %q", w.Header().Get("Retry-After"))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Redis expectations were not met: %v", err)
	}
}

func TestRateLimiter_RedisErrorFailsOpen(t *testing.T) {
	captureSecurityLog(t)
	mock := setupRedisMock(t)
	mock.ExpectIncr("ratelimit:/login:192.168.1.1").SetErr(errors.New("connection refused"))

	r := newRateLimitedRouter(RateLimitConfig{})
	if w := postLogin(r); w.Code != http.StatusOK {
		t.Errorf("expected request to pass when Redis fails, got %d", w.Code)
	}
}

func TestResetRateLimit(t *testing.T) {
	config.ResetRedisClientForTest()
	if err := ResetRateLimit(context.Background(), "192.168.1.1", "/login"); err == nil {
		t.Error("Expected error when Redis not available, got nil")
	}

	mock := setupRedisMock(t)
	mock.ExpectDel("ratelimit:/login:192.168.1.1").SetVal(1)
	if err := ResetRateLimit(context.Background(), "192.168.1.1", "/login"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
