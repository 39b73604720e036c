package service

import (
	"context"
	"encoding/json"
	"fmt"

	"freelance_hub/internal/domain"
	"freelance_hub/internal/repository"
	"freelance_hub/pkg/logger"

	"github.com/google/uuid"
)

// BroadcastService публикует уже сохраненные записи в канал проекта
type BroadcastService interface {
	PublishMessage(ctx context.Context, message *domain.ChatMessage) error
	PublishTyping(ctx context.Context, projectID uuid.UUID, event domain.TypingEvent) error
}

type broadcastService struct {
	broadcastRepo repository.BroadcastRepository
	log           logger.Logger
}

func NewBroadcastService(broadcastRepo repository.BroadcastRepository, log logger.Logger) BroadcastService {
	return &broadcastService{
		broadcastRepo: broadcastRepo,
		log:           log,
	}
}

func (s *broadcastService) PublishMessage(ctx context.Context, message *domain.ChatMessage) error {
	return s.publish(ctx, message.ProjectID, domain.EventNewMessage, message)
}

func (s *broadcastService) PublishTyping(ctx context.Context, projectID uuid.UUID, event domain.TypingEvent) error {
	return s.publish(ctx, projectID, domain.EventUserTyping, event)
}

func (s *broadcastService) publish(ctx context.Context, projectID uuid.UUID, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}

	envelope := &domain.Envelope{
		Event:   event,
		Channel: domain.ChannelName(projectID),
		Data:    payload,
	}

	if err := s.broadcastRepo.Publish(ctx, envelope); err != nil {
		return err
	}

	s.log.Debug("Event published", "event", event, "channel", envelope.Channel)
	return nil
}
