package service

import (
	"context"
	"time"

	"freelance_hub/internal/domain"
	"freelance_hub/internal/repository"
	"freelance_hub/pkg/logger"

	"github.com/google/uuid"
)

type AuditService interface {
	LogEvent(ctx context.Context, actorUserID *uuid.UUID, actorRole string, projectID *uuid.UUID, eventType string, payload map[string]interface{}) error
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, actorUserID *uuid.UUID, actorRole string, projectID *uuid.UUID, eventType string, payload map[string]interface{}) error {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	if actorRole == "" {
		actorRole = domain.ActorRoleSystem
	}

	auditLog := &domain.AuditLog{
		EventTime:   time.Now(),
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		ProjectID:   projectID,
		EventType:   eventType,
		Payload:     payload,
	}

	if err := s.auditRepo.CreateLog(ctx, auditLog); err != nil {
		s.log.Warn("Failed to write audit event", "event_type", eventType, "error", err)
		return err
	}

	return nil
}
