package service

import (
	"context"
	"fmt"

	"freelance_hub/internal/domain"
	"freelance_hub/internal/repository"
	apperrors "freelance_hub/pkg/errors"
	"freelance_hub/pkg/logger"

	"github.com/google/uuid"
)

// AccessGuard - единственная проверка участия в проекте.
// Ее используют отправка, история, typing и авторизация подписок.
type AccessGuard interface {
	// AuthorizeSend возвращает роль участника: CLIENT или FREELANCER
	AuthorizeSend(ctx context.Context, identity *domain.User, projectID uuid.UUID) (string, error)
}

type accessGuard struct {
	projectRepo repository.ProjectRepository
	log         logger.Logger
}

func NewAccessGuard(projectRepo repository.ProjectRepository, log logger.Logger) AccessGuard {
	return &accessGuard{
		projectRepo: projectRepo,
		log:         log,
	}
}

func (g *accessGuard) AuthorizeSend(ctx context.Context, identity *domain.User, projectID uuid.UUID) (string, error) {
	if identity == nil || identity.ID == uuid.Nil {
		return "", apperrors.ErrUnauthenticated
	}

	participants, err := g.projectRepo.GetParticipants(ctx, projectID)
	if err != nil {
		return "", err
	}

	role := participants.RoleOf(identity.ID)
	if role == "" {
		g.log.Debug("Participancy check failed", "user_id", identity.ID, "project_id", projectID)
		return "", fmt.Errorf("user %s is not a participant of project %s: %w", identity.ID, projectID, apperrors.ErrForbidden)
	}

	return role, nil
}
