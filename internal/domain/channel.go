package domain

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Один канал рассылки на проект: project-<uuid>
const ChannelPrefix = "project-"

func ChannelName(projectID uuid.UUID) string {
	return ChannelPrefix + projectID.String()
}

// ParseChannelName извлекает ID проекта из имени канала
func ParseChannelName(name string) (uuid.UUID, bool) {
	raw, ok := strings.CutPrefix(name, ChannelPrefix)
	if !ok || raw == "" {
		return uuid.Nil, false
	}
	projectID, err := uuid.Parse(raw)
	if err != nil || projectID == uuid.Nil {
		return uuid.Nil, false
	}
	// uuid.Parse принимает и другие формы записи, канал должен совпадать побайтно
	if ChannelName(projectID) != name {
		return uuid.Nil, false
	}
	return projectID, true
}

// Envelope - событие в канале, так же уходит клиенту по WebSocket
type Envelope struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ChannelGrant - подписанное разрешение на подписку для одного соединения
type ChannelGrant struct {
	Auth        string          `json:"auth"`
	ChannelData json.RawMessage `json:"channel_data,omitempty"`
}

// ChannelSubscription живет только в памяти процесса, пока открыт сокет
type ChannelSubscription struct {
	SocketID string
	Channel  string
	UserID   uuid.UUID
}

// Системные события транспорта
const (
	EventConnectionEstablished = "connection_established"
	EventSubscriptionSucceeded = "subscription_succeeded"
	EventSubscriptionError     = "subscription_error"
	EventPong                  = "pong"
	EventError                 = "error"
)

// Команды клиента
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

// ClientFrame - кадр от клиента по WebSocket
type ClientFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel,omitempty"`
	Auth    string `json:"auth,omitempty"`
}

type ConnectionEstablished struct {
	SocketID string `json:"socket_id"`
}

type SubscriptionError struct {
	Error string `json:"error"`
}
