package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestTokenBucketBurstThenRefill(t *testing.T) {
	l := NewTokenBucketLimiter(2, 100*time.Millisecond)
	defer l.Stop()

	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	// The full burst refills over the window.
	time.Sleep(150 * time.Millisecond)
	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}

func TestTokenBucketKeysAreIndependent(t *testing.T) {
	l := NewTokenBucketLimiter(1, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestRateLimitByUserKeysOnUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewTokenBucketLimiter(1, time.Minute)
	defer l.Stop()

	r := gin.New()
	r.GET("/ping", func(c *gin.Context) {
		c.Set("user_id", uint(7))
	}, RateLimitByUser(l), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/other", func(c *gin.Context) {
		c.Set("user_id", uint(8))
	}, RateLimitByUser(l), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	get := func(path string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		r.ServeHTTP(w, req)
		return w.Code
	}

	// Same source address throughout; buckets split per user id.
	assert.Equal(t, http.StatusOK, get("/ping"))
	assert.Equal(t, http.StatusTooManyRequests, get("/ping"))
	assert.Equal(t, http.StatusOK, get("/other"))
}

func TestRateLimitByIPRejectsWhenExhausted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewTokenBucketLimiter(1, time.Minute)
	defer l.Stop()

	r := gin.New()
	r.Use(RateLimitByIP(l))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestStopHaltsJanitor(t *testing.T) {
	l := NewTokenBucketLimiter(1, 10*time.Millisecond)
	l.Stop()

	// Allow still works after the janitor is gone; no panic, no tick.
	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow("k"))
}
