package middleware

import (
	"errors"
	"net/http"
	"strings"

	"freelance_hub/internal/domain"
	"freelance_hub/internal/service"
	apperrors "freelance_hub/pkg/errors"
	"freelance_hub/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	ContextKeyUser   = "user"
	ContextKeyUserID = "user_id"
)

type AuthMiddleware struct {
	authService service.AuthService
	log         logger.Logger
}

func NewAuthMiddleware(authService service.AuthService, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		log:         log,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		user, err := m.authService.ValidateToken(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			status := apperrors.HTTPStatusFromError(err)
			if status != http.StatusServiceUnavailable && status != http.StatusInternalServerError {
				status = http.StatusUnauthorized
			}
			message := "Invalid or expired token"
			if errors.Is(err, apperrors.ErrTokenExpired) {
				message = "Token expired"
			}
			if status != http.StatusUnauthorized {
				m.log.Error("Token validation failed", "error", err)
				message = "Internal server error"
			}
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}

		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyUserID, user.ID)
		c.Next()
	}
}

// CurrentUser возвращает пользователя, положенного RequireAuth
func CurrentUser(c *gin.Context) *domain.User {
	value, ok := c.Get(ContextKeyUser)
	if !ok {
		return nil
	}
	user, _ := value.(*domain.User)
	return user
}
