package domain

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Budget       string     `json:"budget"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	ClientID     uuid.UUID  `json:"client_id"`
	FreelancerID *uuid.UUID `json:"freelancer_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ProjectParticipants - минимальный срез проекта для проверки участия
type ProjectParticipants struct {
	ProjectID    uuid.UUID
	ClientID     uuid.UUID
	FreelancerID *uuid.UUID
	Status       string
}

// RoleOf возвращает роль пользователя в проекте или пустую строку
func (p *ProjectParticipants) RoleOf(userID uuid.UUID) string {
	if p == nil || userID == uuid.Nil {
		return ""
	}
	if p.ClientID == userID {
		return ParticipantRoleClient
	}
	if p.FreelancerID != nil && *p.FreelancerID == userID {
		return ParticipantRoleFreelancer
	}
	return ""
}

// ChatRoom - проект в списке чатов участника
type ChatRoom struct {
	ProjectID         uuid.UUID  `json:"project_id"`
	ProjectTitle      string     `json:"project_title"`
	ProjectStatus     string     `json:"project_status"`
	Role              string     `json:"role"`
	CounterpartID     *uuid.UUID `json:"counterpart_id,omitempty"`
	CounterpartName   *string    `json:"counterpart_name,omitempty"`
	CounterpartAvatar *string    `json:"counterpart_avatar,omitempty"`
	LastMessage       *string    `json:"last_message,omitempty"`
	LastMessageAt     *time.Time `json:"last_message_at,omitempty"`
	Channel           string     `json:"channel"`
}

const (
	ProjectStatusDraft      = "DRAFT"
	ProjectStatusOpen       = "OPEN"
	ProjectStatusInProgress = "IN_PROGRESS"
	ProjectStatusReview     = "REVIEW"
	ProjectStatusCompleted  = "COMPLETED"
	ProjectStatusCancelled  = "CANCELLED"
)

const (
	ParticipantRoleClient     = "CLIENT"
	ParticipantRoleFreelancer = "FREELANCER"
)
