package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID          int64                  `json:"id"`
	EventTime   time.Time              `json:"event_time"`
	ActorUserID *uuid.UUID             `json:"actor_user_id,omitempty"`
	ActorRole   string                 `json:"actor_role"`
	ProjectID   *uuid.UUID             `json:"project_id,omitempty"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload"`
}

const (
	ActorRoleSystem = "SYSTEM"
)

const (
	EventTypeProjectCreated             = "PROJECT_CREATED"
	EventTypeChatPublishFailed          = "CHAT_PUBLISH_FAILED"
	EventTypeChannelSubscriptionGranted = "CHANNEL_SUBSCRIPTION_GRANTED"
	EventTypeChannelSubscriptionDenied  = "CHANNEL_SUBSCRIPTION_DENIED"
)
