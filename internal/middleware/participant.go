package middleware

import (
	"net/http"

	"freelance_hub/internal/service"
	apperrors "freelance_hub/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextKeyProjectID       = "project_id"
	ContextKeyParticipantRole = "participant_role"
)

// RequireParticipant пропускает только клиента или исполнителя проекта из :id.
// Ставится после RequireAuth.
func RequireParticipant(guard service.AccessGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
			return
		}

		role, err := guard.AuthorizeSend(c.Request.Context(), CurrentUser(c), projectID)
		if err != nil {
			c.AbortWithStatusJSON(apperrors.HTTPStatusFromError(err), gin.H{"error": participantError(err)})
			return
		}

		c.Set(ContextKeyProjectID, projectID)
		c.Set(ContextKeyParticipantRole, role)
		c.Next()
	}
}

func participantError(err error) string {
	switch apperrors.HTTPStatusFromError(err) {
	case http.StatusUnauthorized:
		return "Authentication required"
	case http.StatusForbidden:
		return "You are not a participant of this project"
	case http.StatusNotFound:
		return "Project not found"
	default:
		return "Internal server error"
	}
}
