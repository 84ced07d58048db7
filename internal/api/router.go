package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Gopher0727/AltMur/internal/metrics"
	logger "github.com/Gopher0727/AltMur/middleware/log"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

const readyTimeout = 2 * time.Second

// NewRouter serves /health and /metrics, plus /ready, which runs checks
// under a deadline.
func NewRouter(log *logger.Logger, checks map[string]Check) *gin.Engine {
	mm := NewMiddlewareManager(log)

	r := gin.New()
	r.Use(mm.Recovery(), mm.TraceID(), mm.Logger(), metrics.GinMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", readyHandler(log, checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func readyHandler(log *logger.Logger, checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.WarnContext(ctx, "readiness check failed", zap.String("check", name), zap.Error(err))
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		body := gin.H{"status": "ok", "checks": results}
		if status != http.StatusOK {
			body["status"] = "unavailable"
		}
		c.JSON(status, body)
	}
}
