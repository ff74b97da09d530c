package portal

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"spike_backend/platform/logger"
)

// StripStagePrefix removes a leading "/<stage>" segment (API gateway style
// deployments prefix every path) so route matching is stage-independent.
func StripStagePrefix(stage string) gin.HandlerFunc {
	prefix := ""
	if stage != "" {
		prefix = "/" + strings.Trim(stage, "/")
	}
	return func(c *gin.Context) {
		if prefix != "" {
			if path := c.Request.URL.Path; path == prefix || strings.HasPrefix(path, prefix+"/") {
				trimmed := strings.TrimPrefix(path, prefix)
				if trimmed == "" {
					trimmed = "/"
				}
				c.Request.URL.Path = trimmed
			}
		}
		c.Next()
	}
}

// RequestID assigns each request an id, exposed on the context for the
// orchestrator's trace and echoed in the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := float64(time.Since(start).Microseconds()) / 1000
		log.HTTPRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), latency, c.ClientIP())
	}
}
