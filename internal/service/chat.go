package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"freelance_hub/internal/config"
	"freelance_hub/internal/domain"
	"freelance_hub/internal/repository"
	apperrors "freelance_hub/pkg/errors"
	"freelance_hub/pkg/logger"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type ChatService interface {
	// Send: проверка участия, сохранение, затем публикация. Строго в этом порядке.
	Send(ctx context.Context, identity *domain.User, input SendMessageInput) (*SendResult, error)
	History(ctx context.Context, identity *domain.User, projectID uuid.UUID) ([]*domain.ChatMessage, error)
	NotifyTyping(ctx context.Context, identity *domain.User, projectID uuid.UUID, isTyping bool) error
	ListRooms(ctx context.Context, identity *domain.User) ([]*domain.ChatRoom, error)
}

type SendMessageInput struct {
	ProjectID   uuid.UUID
	Content     string
	Attachments []string
}

type SendResult struct {
	Message *domain.ChatMessage `json:"message"`
	// Broadcast=false: сообщение сохранено, но в канал не ушло
	Broadcast bool `json:"broadcast"`
}

type chatService struct {
	chatRepo    repository.ChatRepository
	projectRepo repository.ProjectRepository
	guard       AccessGuard
	broadcast   BroadcastService
	audit       AuditService
	cfg         config.ChatConfig
	log         logger.Logger
}

func NewChatService(
	chatRepo repository.ChatRepository,
	projectRepo repository.ProjectRepository,
	guard AccessGuard,
	broadcast BroadcastService,
	audit AuditService,
	cfg config.ChatConfig,
	log logger.Logger,
) ChatService {
	return &chatService{
		chatRepo:    chatRepo,
		projectRepo: projectRepo,
		guard:       guard,
		broadcast:   broadcast,
		audit:       audit,
		cfg:         cfg,
		log:         log,
	}
}

func (s *chatService) Send(ctx context.Context, identity *domain.User, input SendMessageInput) (*SendResult, error) {
	if identity == nil {
		return nil, apperrors.ErrUnauthenticated
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, fmt.Errorf("message content is empty: %w", apperrors.ErrInvalidArgument)
	}
	if s.cfg.MaxContentLength > 0 && utf8.RuneCountInString(content) > s.cfg.MaxContentLength {
		return nil, fmt.Errorf("message content exceeds %d characters: %w", s.cfg.MaxContentLength, apperrors.ErrInvalidArgument)
	}

	role, err := s.guard.AuthorizeSend(ctx, identity, input.ProjectID)
	if err != nil {
		return nil, err
	}

	message := &domain.ChatMessage{
		ProjectID:   input.ProjectID,
		SenderID:    identity.ID,
		Content:     content,
		Attachments: normalizeAttachments(input.Attachments),
	}

	if err := s.chatRepo.Append(ctx, message); err != nil {
		return nil, err
	}

	result := &SendResult{Message: message, Broadcast: true}

	// Запись уже сохранена: сбой публикации не откатывает ее и не повторяется
	if err := s.broadcast.PublishMessage(ctx, message); err != nil {
		result.Broadcast = false
		s.log.Error("Failed to broadcast message",
			"error", err,
			"project_id", message.ProjectID,
			"message_id", message.ID,
		)
		_ = s.audit.LogEvent(ctx, &identity.ID, role, &message.ProjectID, domain.EventTypeChatPublishFailed, map[string]interface{}{
			"message_id": message.ID,
			"channel":    domain.ChannelName(message.ProjectID),
			"error":      err.Error(),
		})
	}

	return result, nil
}

func (s *chatService) History(ctx context.Context, identity *domain.User, projectID uuid.UUID) ([]*domain.ChatMessage, error) {
	if _, err := s.guard.AuthorizeSend(ctx, identity, projectID); err != nil {
		return nil, err
	}

	return s.chatRepo.History(ctx, projectID)
}

func (s *chatService) NotifyTyping(ctx context.Context, identity *domain.User, projectID uuid.UUID, isTyping bool) error {
	if _, err := s.guard.AuthorizeSend(ctx, identity, projectID); err != nil {
		return err
	}

	event := domain.TypingEvent{UserID: identity.ID, IsTyping: isTyping}
	if err := s.broadcast.PublishTyping(ctx, projectID, event); err != nil {
		// typing - best effort
		s.log.Warn("Failed to broadcast typing event", "error", err, "project_id", projectID)
	}

	return nil
}

func (s *chatService) ListRooms(ctx context.Context, identity *domain.User) ([]*domain.ChatRoom, error) {
	if identity == nil {
		return nil, apperrors.ErrUnauthenticated
	}

	return s.projectRepo.ListChatRooms(ctx, identity.ID)
}

func normalizeAttachments(attachments []string) []string {
	trimmed := lo.Map(attachments, func(a string, _ int) string {
		return strings.TrimSpace(a)
	})
	return lo.Uniq(lo.Compact(trimmed))
}
