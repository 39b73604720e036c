package service

import (
	"freelance_hub/internal/config"
	"freelance_hub/internal/repository"
	"freelance_hub/pkg/logger"
)

type Services struct {
	Auth        AuthService
	User        UserService
	Project     ProjectService
	Access      AccessGuard
	Chat        ChatService
	Broadcast   BroadcastService
	ChannelAuth ChannelAuthService
	RateLimit   RateLimitService
	Audit       AuditService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, log)
	access := NewAccessGuard(repos.Project, log)
	broadcast := NewBroadcastService(repos.Broadcast, log)

	services := &Services{
		Auth:        NewAuthService(repos.User, cfg.JWT, log),
		User:        NewUserService(repos.User, log),
		Project:     NewProjectService(repos.Project, repos.User, access, audit, log),
		Access:      access,
		Chat:        NewChatService(repos.Chat, repos.Project, access, broadcast, audit, cfg.Chat, log),
		Broadcast:   broadcast,
		ChannelAuth: NewChannelAuthService(access, audit, cfg.Broadcast, log),
		RateLimit:   NewRateLimitService(repos.RateLimit, cfg.RateLimit, log),
		Audit:       audit,
	}

	log.Info("Services initialized")

	return services
}
