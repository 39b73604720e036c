//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=mocks/mock_chat.go -package=mocks
package repository

import (
	"context"

	"freelance_hub/internal/domain"
	"freelance_hub/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatRepository - единственный источник истины для истории чата
type ChatRepository interface {
	// Append сохраняет сообщение; ID, CreatedAt и данные отправителя заполняет БД
	Append(ctx context.Context, message *domain.ChatMessage) error
	// History возвращает все сообщения проекта по возрастанию (created_at, id)
	History(ctx context.Context, projectID uuid.UUID) ([]*domain.ChatMessage, error)
}

type chatRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewChatRepository(db *pgxpool.Pool, log logger.Logger) ChatRepository {
	return &chatRepository{db: db, log: log}
}

func (r *chatRepository) Append(ctx context.Context, message *domain.ChatMessage) error {
	query := `
		WITH inserted AS (
			INSERT INTO chat_messages (project_id, sender_id, content, attachments)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, sender_id
		)
		SELECT i.id, i.created_at, u.display_name, u.avatar_url
		FROM inserted i
		JOIN users u ON u.id = i.sender_id
	`

	if message.Attachments == nil {
		message.Attachments = []string{}
	}

	err := r.db.QueryRow(ctx, query,
		message.ProjectID, message.SenderID, message.Content, message.Attachments,
	).Scan(&message.ID, &message.CreatedAt, &message.SenderName, &message.SenderAvatar)

	if err != nil {
		r.log.Error("Failed to append message", "error", err, "project_id", message.ProjectID)
		return storageError("append message", err)
	}

	if message.SenderName == "" {
		message.SenderName = domain.DefaultSenderName
	}

	return nil
}

func (r *chatRepository) History(ctx context.Context, projectID uuid.UUID) ([]*domain.ChatMessage, error) {
	query := `
		SELECT m.id, m.project_id, m.sender_id, u.display_name, u.avatar_url, m.content, m.attachments, m.created_at
		FROM chat_messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.project_id = $1
		ORDER BY m.created_at ASC, m.id ASC
	`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.log.Error("Failed to get history", "error", err, "project_id", projectID)
		return nil, storageError("history", err)
	}
	defer rows.Close()

	messages := make([]*domain.ChatMessage, 0)
	for rows.Next() {
		message := &domain.ChatMessage{}
		err := rows.Scan(
			&message.ID, &message.ProjectID, &message.SenderID, &message.SenderName, &message.SenderAvatar,
			&message.Content, &message.Attachments, &message.CreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, storageError("scan message", err)
		}
		if message.SenderName == "" {
			message.SenderName = domain.DefaultSenderName
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("history", err)
	}

	return messages, nil
}
