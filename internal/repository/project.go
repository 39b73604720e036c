//go:generate go run go.uber.org/mock/mockgen -source=project.go -destination=mocks/mock_project.go -package=mocks
package repository

import (
	"context"
	"errors"
	"fmt"

	"freelance_hub/internal/domain"
	apperrors "freelance_hub/pkg/errors"
	"freelance_hub/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	// GetParticipants возвращает клиента и исполнителя проекта для проверки доступа
	GetParticipants(ctx context.Context, id uuid.UUID) (*domain.ProjectParticipants, error)
	ListChatRooms(ctx context.Context, userID uuid.UUID) ([]*domain.ChatRoom, error)
}

type projectRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewProjectRepository(db *pgxpool.Pool, log logger.Logger) ProjectRepository {
	return &projectRepository{db: db, log: log}
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	query := `
		INSERT INTO projects (id, title, description, status, budget, deadline, client_id, freelancer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10)
		RETURNING budget::text, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		project.ID, project.Title, project.Description, project.Status, project.Budget,
		project.Deadline, project.ClientID, project.FreelancerID, project.CreatedAt, project.UpdatedAt,
	).Scan(&project.Budget, &project.CreatedAt, &project.UpdatedAt)

	if err != nil {
		r.log.Error("Failed to create project", "error", err)
		return storageError("create project", err)
	}

	return nil
}

func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := `
		SELECT id, title, description, status, budget::text, deadline, client_id, freelancer_id, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	project := &domain.Project{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&project.ID, &project.Title, &project.Description, &project.Status, &project.Budget,
		&project.Deadline, &project.ClientID, &project.FreelancerID, &project.CreatedAt, &project.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, apperrors.ErrNotFound)
		}
		r.log.Error("Failed to get project by ID", "error", err)
		return nil, storageError("get project", err)
	}

	return project, nil
}

func (r *projectRepository) GetParticipants(ctx context.Context, id uuid.UUID) (*domain.ProjectParticipants, error) {
	query := `SELECT id, client_id, freelancer_id, status FROM projects WHERE id = $1`

	p := &domain.ProjectParticipants{}
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ProjectID, &p.ClientID, &p.FreelancerID, &p.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, apperrors.ErrNotFound)
		}
		r.log.Error("Failed to get project participants", "error", err, "project_id", id)
		return nil, storageError("get project participants", err)
	}

	return p, nil
}

func (r *projectRepository) ListChatRooms(ctx context.Context, userID uuid.UUID) ([]*domain.ChatRoom, error) {
	query := `
		SELECT p.id, p.title, p.status,
		       CASE WHEN p.client_id = $1 THEN 'CLIENT' ELSE 'FREELANCER' END,
		       cp.id, cp.display_name, cp.avatar_url,
		       lm.content, lm.created_at
		FROM projects p
		LEFT JOIN users cp
		       ON cp.id = CASE WHEN p.client_id = $1 THEN p.freelancer_id ELSE p.client_id END
		LEFT JOIN LATERAL (
		       SELECT m.content, m.created_at
		       FROM chat_messages m
		       WHERE m.project_id = p.id
		       ORDER BY m.created_at DESC, m.id DESC
		       LIMIT 1
		) lm ON TRUE
		WHERE p.client_id = $1 OR p.freelancer_id = $1
		ORDER BY COALESCE(lm.created_at, p.updated_at) DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list chat rooms", "error", err)
		return nil, storageError("list chat rooms", err)
	}
	defer rows.Close()

	rooms := make([]*domain.ChatRoom, 0)
	for rows.Next() {
		room := &domain.ChatRoom{}
		err := rows.Scan(
			&room.ProjectID, &room.ProjectTitle, &room.ProjectStatus, &room.Role,
			&room.CounterpartID, &room.CounterpartName, &room.CounterpartAvatar,
			&room.LastMessage, &room.LastMessageAt,
		)
		if err != nil {
			r.log.Error("Failed to scan chat room", "error", err)
			return nil, storageError("scan chat room", err)
		}
		room.Channel = domain.ChannelName(room.ProjectID)
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list chat rooms", err)
	}

	return rooms, nil
}
