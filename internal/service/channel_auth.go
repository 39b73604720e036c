package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"freelance_hub/internal/config"
	"freelance_hub/internal/domain"
	apperrors "freelance_hub/pkg/errors"
	"freelance_hub/pkg/jwt"
	"freelance_hub/pkg/logger"
)

// ChannelAuthService выдает подписанные разрешения на подписку к каналам проектов
type ChannelAuthService interface {
	AuthorizeSubscription(ctx context.Context, identity *domain.User, socketID, channelName string) (*domain.ChannelGrant, error)
	// VerifyGrant проверяет, что разрешение выдано именно этому сокету и каналу
	VerifyGrant(token, socketID, channelName string) (*jwt.GrantClaims, error)
}

type channelAuthService struct {
	guard AccessGuard
	audit AuditService
	cfg   config.BroadcastConfig
	log   logger.Logger
}

func NewChannelAuthService(guard AccessGuard, audit AuditService, cfg config.BroadcastConfig, log logger.Logger) ChannelAuthService {
	return &channelAuthService{
		guard: guard,
		audit: audit,
		cfg:   cfg,
		log:   log,
	}
}

type channelData struct {
	UserID   string   `json:"user_id"`
	UserInfo userInfo `json:"user_info"`
}

type userInfo struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (s *channelAuthService) AuthorizeSubscription(ctx context.Context, identity *domain.User, socketID, channelName string) (*domain.ChannelGrant, error) {
	if identity == nil {
		return nil, apperrors.ErrUnauthenticated
	}

	projectID, ok := domain.ParseChannelName(channelName)
	if !ok {
		return nil, fmt.Errorf("channel %q: %w", channelName, apperrors.ErrInvalidChannel)
	}

	socketID = strings.TrimSpace(socketID)
	if socketID == "" {
		return nil, fmt.Errorf("socket_id is required: %w", apperrors.ErrInvalidArgument)
	}

	role, err := s.guard.AuthorizeSend(ctx, identity, projectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrForbidden) || errors.Is(err, apperrors.ErrNotFound) {
			_ = s.audit.LogEvent(ctx, &identity.ID, identity.Role, &projectID, domain.EventTypeChannelSubscriptionDenied, map[string]interface{}{
				"channel":   channelName,
				"socket_id": socketID,
				"reason":    err.Error(),
			})
		}
		return nil, err
	}

	auth, err := jwt.GenerateChannelGrant(jwt.GrantClaims{
		SocketID: socketID,
		Channel:  channelName,
		UserID:   identity.ID,
		Role:     role,
	}, s.cfg.AppKey, s.cfg.AppSecret, s.cfg.GrantTTL)
	if err != nil {
		s.log.Error("Failed to sign channel grant", "error", err)
		return nil, err
	}

	data, err := json.Marshal(channelData{
		UserID:   identity.ID.String(),
		UserInfo: userInfo{Name: identity.DisplayName, Role: role},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal channel data: %w", err)
	}

	_ = s.audit.LogEvent(ctx, &identity.ID, role, &projectID, domain.EventTypeChannelSubscriptionGranted, map[string]interface{}{
		"channel":   channelName,
		"socket_id": socketID,
	})

	s.log.Info("Channel subscription granted", "user_id", identity.ID, "channel", channelName)

	return &domain.ChannelGrant{Auth: auth, ChannelData: data}, nil
}

func (s *channelAuthService) VerifyGrant(token, socketID, channelName string) (*jwt.GrantClaims, error) {
	claims, err := jwt.ValidateChannelGrant(token, s.cfg.AppKey, s.cfg.AppSecret)
	if err != nil {
		return nil, err
	}

	if claims.SocketID != socketID || claims.Channel != channelName {
		return nil, fmt.Errorf("grant issued for another connection or channel: %w", apperrors.ErrForbidden)
	}

	return claims, nil
}
