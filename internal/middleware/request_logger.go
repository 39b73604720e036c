package middleware

import (
	"time"

	"freelance_hub/pkg/logger"

	"github.com/gin-gonic/gin"
)

func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		args := []any{
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		}
		if userID, ok := c.Get(ContextKeyUserID); ok {
			args = append(args, "user_id", userID)
		}

		if c.Writer.Status() >= 500 {
			log.Warn("HTTP request", args...)
			return
		}
		log.Info("HTTP request", args...)
	}
}
