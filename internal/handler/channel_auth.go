package handler

import (
	"net/http"

	"freelance_hub/internal/middleware"
	"freelance_hub/internal/service"
	"freelance_hub/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ChannelAuthHandler struct {
	channelAuth service.ChannelAuthService
	log         logger.Logger
}

func NewChannelAuthHandler(channelAuth service.ChannelAuthService, log logger.Logger) *ChannelAuthHandler {
	return &ChannelAuthHandler{
		channelAuth: channelAuth,
		log:         log,
	}
}

// Клиент шлет form-urlencoded, как принято для авторизации приватных каналов
type ChannelAuthRequest struct {
	SocketID    string `form:"socket_id" json:"socket_id" binding:"required,notblank,max=128"`
	ChannelName string `form:"channel_name" json:"channel_name" binding:"required,notblank,max=128"`
}

func (h *ChannelAuthHandler) Authorize(c *gin.Context) {
	var req ChannelAuthRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	grant, err := h.channelAuth.AuthorizeSubscription(c.Request.Context(), middleware.CurrentUser(c), req.SocketID, req.ChannelName)
	if err != nil {
		h.log.Warn("Channel subscription denied", "error", err, "channel", req.ChannelName)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, grant)
}
