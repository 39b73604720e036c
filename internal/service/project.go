package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"freelance_hub/internal/domain"
	"freelance_hub/internal/repository"
	apperrors "freelance_hub/pkg/errors"
	"freelance_hub/pkg/logger"

	"github.com/google/uuid"
)

type ProjectService interface {
	Create(ctx context.Context, identity *domain.User, input CreateProjectInput) (*domain.Project, error)
	Get(ctx context.Context, identity *domain.User, projectID uuid.UUID) (*domain.Project, error)
}

type CreateProjectInput struct {
	Title        string
	Description  string
	Budget       string
	Deadline     *time.Time
	FreelancerID *uuid.UUID
}

var budgetPattern = regexp.MustCompile(`^\d{1,10}(\.\d{1,2})?$`)

type projectService struct {
	projectRepo repository.ProjectRepository
	userRepo    repository.UserRepository
	guard       AccessGuard
	audit       AuditService
	log         logger.Logger
}

func NewProjectService(projectRepo repository.ProjectRepository, userRepo repository.UserRepository, guard AccessGuard, audit AuditService, log logger.Logger) ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		userRepo:    userRepo,
		guard:       guard,
		audit:       audit,
		log:         log,
	}
}

func (s *projectService) Create(ctx context.Context, identity *domain.User, input CreateProjectInput) (*domain.Project, error) {
	if identity == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	if identity.Role != domain.UserRoleClient {
		return nil, fmt.Errorf("only clients can create projects: %w", apperrors.ErrForbidden)
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", apperrors.ErrInvalidArgument)
	}

	budget := strings.TrimSpace(input.Budget)
	if budget == "" {
		budget = "0"
	}
	if !budgetPattern.MatchString(budget) {
		return nil, fmt.Errorf("budget must be a non-negative decimal: %w", apperrors.ErrInvalidArgument)
	}

	status := domain.ProjectStatusOpen
	if input.FreelancerID != nil {
		if err := s.checkFreelancer(ctx, *input.FreelancerID, identity.ID); err != nil {
			return nil, err
		}
		status = domain.ProjectStatusInProgress
	}

	now := time.Now()
	project := &domain.Project{
		ID:           uuid.New(),
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		Status:       status,
		Budget:       budget,
		Deadline:     input.Deadline,
		ClientID:     identity.ID,
		FreelancerID: input.FreelancerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}

	_ = s.audit.LogEvent(ctx, &identity.ID, identity.Role, &project.ID, domain.EventTypeProjectCreated, map[string]interface{}{
		"title":  project.Title,
		"status": project.Status,
	})

	s.log.Info("Project created", "project_id", project.ID, "client_id", identity.ID)

	return project, nil
}

func (s *projectService) Get(ctx context.Context, identity *domain.User, projectID uuid.UUID) (*domain.Project, error) {
	if _, err := s.guard.AuthorizeSend(ctx, identity, projectID); err != nil {
		return nil, err
	}

	return s.projectRepo.GetByID(ctx, projectID)
}

func (s *projectService) checkFreelancer(ctx context.Context, freelancerID, clientID uuid.UUID) error {
	if freelancerID == clientID {
		return fmt.Errorf("client cannot be the freelancer of own project: %w", apperrors.ErrInvalidArgument)
	}

	freelancer, err := s.userRepo.GetByID(ctx, freelancerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("freelancer %s not found: %w", freelancerID, apperrors.ErrInvalidArgument)
		}
		return err
	}

	if freelancer.Role != domain.UserRoleFreelancer || !freelancer.IsActive {
		return fmt.Errorf("user %s is not an active freelancer: %w", freelancerID, apperrors.ErrInvalidArgument)
	}

	return nil
}
