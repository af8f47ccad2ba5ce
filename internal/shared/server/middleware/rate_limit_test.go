package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"docsum-backend/internal/shared/telemetry"
)

func TestRateLimitOnlyGuardsAnalyzeRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	defer telemetry.SetOutput(&bytes.Buffer{})()
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(Limit{PerMinute: 60, Burst: 2}, func() time.Time { return now })

	r := gin.New()
	r.GET("/api/v1/documents/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.POST("/api/v1/documents/:id/analyze", RateLimit(limiter), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-1", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("read request %d expected 200, got %d", i+1, resp.Code)
		}
	}

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc-1/analyze", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("analyze request %d expected 200, got %d", i+1, resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc-1/analyze", nil))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("analyze request 3 expected 429, got %d", resp.Code)
	}

	now = now.Add(time.Second)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc-1/analyze", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("analyze after refill expected 200, got %d", resp.Code)
	}
}

func TestRateLimit429IncludesRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	defer telemetry.SetOutput(&bytes.Buffer{})()
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(Limit{PerMinute: 60, Burst: 1}, func() time.Time { return now })

	r := gin.New()
	r.Use(RateLimit(limiter))
	r.GET("/api/v1/limited", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	resp1 := httptest.NewRecorder()
	r.ServeHTTP(resp1, httptest.NewRequest(http.MethodGet, "/api/v1/limited", nil))
	if resp1.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", resp1.Code)
	}

	resp2 := httptest.NewRecorder()
	r.ServeHTTP(resp2, httptest.NewRequest(http.MethodGet, "/api/v1/limited", nil))
	if resp2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp2.Code)
	}
	if resp2.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", resp2.Header().Get("Retry-After"))
	}

	var payload struct {
		StatusCode int            `json:"statusCode"`
		Data       map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.StatusCode != http.StatusTooManyRequests || payload.Data["error"] != "rate_limited" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Data["retryAfterMs"] != float64(1000) {
		t.Fatalf("expected retryAfterMs 1000, got %v", payload.Data["retryAfterMs"])
	}
}

func TestRateLimiterKeysByClient(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(Limit{PerMinute: 1, Burst: 1}, func() time.Time { return now })

	if ok, _ := limiter.Take("10.0.0.1"); !ok {
		t.Fatalf("first client should pass")
	}
	if ok, wait := limiter.Take("10.0.0.1"); ok || wait != time.Minute {
		t.Fatalf("first client second take = %v, %s; want false, 1m", ok, wait)
	}
	if ok, _ := limiter.Take("10.0.0.2"); !ok {
		t.Fatalf("second client should have its own bucket")
	}
}

func TestRateLimiterDisabledAndIdleEviction(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	off := NewRateLimiter(Limit{}, func() time.Time { return now })
	for i := 0; i < 10; i++ {
		if ok, _ := off.Take("c"); !ok {
			t.Fatalf("zero limit should never reject")
		}
	}

	l := NewRateLimiter(Limit{PerMinute: 6, Burst: 1}, func() time.Time { return now })
	l.Take("a")
	l.Take("b")
	if got := l.size(); got != 2 {
		t.Fatalf("expected 2 buckets, got %d", got)
	}
	now = now.Add(idleBucketTTL)
	l.Take("c")
	if got := l.size(); got != 1 {
		t.Fatalf("expected idle buckets evicted, got %d", got)
	}
}
