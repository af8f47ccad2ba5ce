package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"docsum-backend/internal/shared/server/respond"
)

// Limit is a per-client token bucket refilled at PerMinute tokens a minute,
// holding at most Burst tokens. A zero Limit disables limiting.
type Limit struct {
	PerMinute float64
	Burst     int
}

func (l Limit) disabled() bool {
	return l.PerMinute <= 0 || l.Burst <= 0
}

// idleBucketTTL is how long a full bucket is kept after its last request.
const idleBucketTTL = 10 * time.Minute

// RateLimiter holds one bucket per client.
type RateLimiter struct {
	limit Limit
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

func NewRateLimiter(limit Limit, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		limit:   limit,
		now:     now,
		buckets: make(map[string]*bucket),
	}
}

// Take spends one token for key. When none is left it returns false and how
// long until the next token.
func (l *RateLimiter) Take(key string) (bool, time.Duration) {
	if l == nil || l.limit.disabled() {
		return true, 0
	}
	perSecond := l.limit.PerMinute / 60
	burst := float64(l.limit.Burst)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: burst, seen: now}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.seen).Seconds(); elapsed > 0 {
		b.tokens = math.Min(burst, b.tokens+elapsed*perSecond)
	}
	b.seen = now
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := (1 - b.tokens) / perSecond
	return false, time.Duration(math.Ceil(wait*1000)) * time.Millisecond
}

func (l *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < idleBucketTTL {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.seen) >= idleBucketTTL {
			delete(l.buckets, key)
		}
	}
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit answers 429 with Retry-After once a client IP has spent its
// bucket.
func RateLimit(l *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := l.Take(strings.TrimSpace(c.ClientIP()))
		if ok {
			c.Next()
			return
		}
		retryAfterMs := int(wait / time.Millisecond)
		if retryAfterMs <= 0 {
			retryAfterMs = 1000
		}
		seconds := (retryAfterMs + 999) / 1000
		c.Header("Retry-After", strconv.Itoa(seconds))
		respond.Error(c, http.StatusTooManyRequests, "Too many requests", gin.H{
			"error":        "rate_limited",
			"retryAfterMs": retryAfterMs,
		})
	}
}
