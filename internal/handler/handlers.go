package handler

import (
	"freelance_hub/internal/config"
	"freelance_hub/internal/repository"
	"freelance_hub/internal/service"
	"freelance_hub/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health      *HealthHandler
	Auth        *AuthHandler
	User        *UserHandler
	Project     *ProjectHandler
	Chat        *ChatHandler
	ChannelAuth *ChannelAuthHandler
	WebSocket   *WebSocketHandler
}

func NewHandlers(services *service.Services, repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Handlers {
	handlers := &Handlers{
		Health:      NewHealthHandler(),
		Auth:        NewAuthHandler(services.Auth, log),
		User:        NewUserHandler(services.User, log),
		Project:     NewProjectHandler(services.Project, log),
		Chat:        NewChatHandler(services.Chat, log),
		ChannelAuth: NewChannelAuthHandler(services.ChannelAuth, log),
		WebSocket:   NewWebSocketHandler(services.ChannelAuth, repos.Broadcast, cfg.Server.CORSOrigin, log),
	}

	log.Info("Handlers initialized")

	return handlers
}

// respondError отдает ошибку в ErrorHandler, статус определяется по ее цепочке
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
