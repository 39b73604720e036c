package middleware

import (
	"net/http"

	apperrors "freelance_hub/pkg/errors"
	"freelance_hub/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler превращает c.Error(err) в ответ {"error": ...} с нужным статусом
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last()
		statusCode := apperrors.HTTPStatusFromError(err.Err)

		message := err.Error()
		if statusCode >= http.StatusInternalServerError {
			log.Error("Request failed", "error", err.Err, "path", c.FullPath(), "status", statusCode)
			// Детали БД наружу не отдаем
			message = http.StatusText(statusCode)
		}

		c.JSON(statusCode, gin.H{"error": message})
	}
}
