package middleware

import (
	"math"
	"net/http"
	"strconv"

	"freelance_hub/internal/domain"
	"freelance_hub/internal/service"
	apperrors "freelance_hub/pkg/errors"
	"freelance_hub/pkg/logger"

	"github.com/gin-gonic/gin"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		log:              log,
	}
}

// LimitByIP - для открытых маршрутов (auth)
func (m *RateLimitMiddleware) LimitByIP() gin.HandlerFunc {
	return m.limit(domain.RateLimitScopeIP, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// LimitByUser ставится после RequireAuth
func (m *RateLimitMiddleware) LimitByUser() gin.HandlerFunc {
	return m.limit(domain.RateLimitScopeUser, func(c *gin.Context) string {
		if user := CurrentUser(c); user != nil {
			return user.ID.String()
		}
		return c.ClientIP()
	})
}

func (m *RateLimitMiddleware) limit(scope string, subject func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter, err := m.rateLimitService.Allow(c.Request.Context(), scope, subject(c))
		if err != nil {
			m.log.Error("Rate limit check failed", "error", err, "scope", scope)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if !allowed {
			// тело ответа пишет ErrorHandler
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			_ = c.Error(apperrors.ErrRateLimited)
			c.Abort()
			return
		}

		c.Next()
	}
}
