package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// TokenBucketLimiter allots each key a bucket of burst tokens refilled at a
// steady rate. A request spends one token; an empty bucket rejects.
type TokenBucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	burst   float64
	rate    float64 // tokens per second
	done    chan struct{}
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewTokenBucketLimiter allows burst requests at once per key, refilling the
// full burst over the given window.
func NewTokenBucketLimiter(burst int, window time.Duration) *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		buckets: make(map[string]*bucket),
		burst:   float64(burst),
		rate:    float64(burst) / window.Seconds(),
		done:    make(chan struct{}),
	}
	go l.janitor(window)
	return l
}

func (l *TokenBucketLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst}
		l.buckets[key] = b
	} else {
		b.tokens += now.Sub(b.lastSeen).Seconds() * l.rate
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
	}
	b.lastSeen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Stop terminates the janitor goroutine.
func (l *TokenBucketLimiter) Stop() {
	close(l.done)
}

// janitor drops buckets idle long enough to have refilled completely.
func (l *TokenBucketLimiter) janitor(window time.Duration) {
	tick := time.NewTicker(window)
	defer tick.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-tick.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-window)
			for k, b := range l.buckets {
				if b.lastSeen.Before(cutoff) {
					delete(l.buckets, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

// RateLimitByIP limits by client IP, for routes that run before auth.
func RateLimitByIP(l *TokenBucketLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow("ip:" + c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// RateLimitByUser limits by the authenticated user id, so one user cannot
// exhaust an address shared behind a NAT. Falls back to the client IP when
// mounted before authentication.
func RateLimitByUser(l *TokenBucketLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if id := GetUserID(c); id != 0 {
			key = "user:" + strconv.FormatUint(uint64(id), 10)
		}
		if !l.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
