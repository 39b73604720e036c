package service

import (
	"context"
	"sync"
	"time"

	"freelance_hub/internal/config"
	"freelance_hub/internal/domain"
	"freelance_hub/pkg/logger"

	"github.com/google/uuid"
)

var testLog = logger.Nop()

func testBroadcastConfig() config.BroadcastConfig {
	return config.BroadcastConfig{
		AppKey:    "test-app",
		AppSecret: "test-broadcast-secret",
		GrantTTL:  time.Minute,
	}
}

func newUser(role string) *domain.User {
	return &domain.User{
		ID:          uuid.New(),
		Email:       uuid.NewString() + "@example.com",
		DisplayName: "Test " + role,
		Role:        role,
		IsActive:    true,
	}
}

func participants(projectID uuid.UUID, client, freelancer *domain.User) *domain.ProjectParticipants {
	p := &domain.ProjectParticipants{
		ProjectID: projectID,
		ClientID:  client.ID,
		Status:    domain.ProjectStatusInProgress,
	}
	if freelancer != nil {
		p.FreelancerID = &freelancer.ID
	}
	return p
}

// memoryChatRepository - хранилище в памяти с тем же порядком, что и в SQL
type memoryChatRepository struct {
	mu       sync.Mutex
	nextID   int64
	messages map[uuid.UUID][]*domain.ChatMessage
	names    map[uuid.UUID]string
}

func newMemoryChatRepository() *memoryChatRepository {
	return &memoryChatRepository{
		messages: make(map[uuid.UUID][]*domain.ChatMessage),
		names:    make(map[uuid.UUID]string),
	}
}

func (r *memoryChatRepository) Append(_ context.Context, message *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	message.ID = r.nextID
	message.CreatedAt = time.Now()
	message.SenderName = r.names[message.SenderID]
	if message.SenderName == "" {
		message.SenderName = domain.DefaultSenderName
	}

	stored := *message
	r.messages[message.ProjectID] = append(r.messages[message.ProjectID], &stored)
	return nil
}

func (r *memoryChatRepository) History(_ context.Context, projectID uuid.UUID) ([]*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.ChatMessage, 0, len(r.messages[projectID]))
	for _, m := range r.messages[projectID] {
		copied := *m
		out = append(out, &copied)
	}
	return out, nil
}
