package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/Gopher0727/AltMur/middleware/log"
)

type MiddlewareManager struct {
	logger *logger.Logger
}

func NewMiddlewareManager(log *logger.Logger) *MiddlewareManager {
	return &MiddlewareManager{logger: log}
}

// TraceID takes the trace ID from the request header, or generates one, and
// stores it in the request context and the response header.
func (m *MiddlewareManager) TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := logger.WithTraceID(c.Request.Context(), c.GetHeader(logger.TraceHeader))
		c.Request = c.Request.WithContext(ctx)
		c.Header(logger.TraceHeader, logger.GetTraceID(ctx))
		c.Next()
	}
}

func (m *MiddlewareManager) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", statusCode),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}

		ctx := c.Request.Context()
		switch {
		case statusCode >= 500:
			m.logger.ErrorContext(ctx, "server error", fields...)
		case statusCode >= 400:
			m.logger.WarnContext(ctx, "client error", fields...)
		default:
			m.logger.DebugContext(ctx, "request completed", fields...)
		}
	}
}

func (m *MiddlewareManager) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				m.logger.ErrorContext(c.Request.Context(), "panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()

		c.Next()
	}
}
