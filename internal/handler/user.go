package handler

import (
	"net/http"

	"freelance_hub/internal/middleware"
	"freelance_hub/internal/service"
	"freelance_hub/pkg/logger"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
	log         logger.Logger
}

func NewUserHandler(userService service.UserService, log logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		log:         log,
	}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	identity := middleware.CurrentUser(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	user, err := h.userService.GetMe(c.Request.Context(), identity.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

type UpdateMeRequest struct {
	DisplayName string  `json:"display_name" binding:"required,notblank,max=100"`
	AvatarURL   *string `json:"avatar_url,omitempty" binding:"omitempty,max=2048"`
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	identity := middleware.CurrentUser(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.userService.UpdateMe(c.Request.Context(), identity.ID, req.DisplayName, req.AvatarURL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
