package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage - неизменяемая запись чата проекта вместе с данными отправителя
type ChatMessage struct {
	ID           int64     `json:"id"`
	ProjectID    uuid.UUID `json:"project_id"`
	SenderID     uuid.UUID `json:"sender_id"`
	SenderName   string    `json:"sender_name"`
	SenderAvatar *string   `json:"sender_avatar,omitempty"`
	Content      string    `json:"content"`
	Attachments  []string  `json:"attachments"`
	CreatedAt    time.Time `json:"created_at"`
}

// TypingEvent - индикатор набора текста
type TypingEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	IsTyping bool      `json:"is_typing"`
}

const (
	EventNewMessage = "new-message"
	EventUserTyping = "user-typing"
)

const DefaultSenderName = "User"
