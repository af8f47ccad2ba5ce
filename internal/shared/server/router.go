package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docsum-backend/internal/documents"
	"docsum-backend/internal/services/health"
	"docsum-backend/internal/shared/config"
	"docsum-backend/internal/shared/metrics"
	"docsum-backend/internal/shared/server/middleware"
	"docsum-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config          config.Config
	DocumentHandler *documents.Handler
	Health          *health.Service
	// RateLimiter is shared across routers in tests. Optional.
	RateLimiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/", func(c *gin.Context) {
		respond.OK(c, "AI Document Summarization API", gin.H{
			"routes": []string{
				"POST /api/v1/documents/upload",
				"GET /api/v1/documents",
				"GET /api/v1/documents/:id",
				"POST /api/v1/documents/:id/analyze",
				"GET /api/v1/health",
				"GET /metrics",
			},
		})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, "OK", gin.H{"ok": true})
			return
		}
		status := deps.Health.Status(c.Request.Context())
		if ok, _ := status["ok"].(bool); !ok {
			respond.JSON(c, http.StatusServiceUnavailable, "Degraded", status)
			return
		}
		respond.OK(c, "OK", status)
	})

	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(middleware.Limit{
			PerMinute: deps.Config.AnalyzeRatePerMinute,
			Burst:     deps.Config.AnalyzeBurst,
		}, nil)
	}
	analyzeLimit := middleware.RateLimit(limiter)
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api, analyzeLimit)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
