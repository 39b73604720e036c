package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"freelance_hub/internal/config"
	"freelance_hub/internal/domain"
	"freelance_hub/internal/repository"
	"freelance_hub/internal/repository/mocks"
	apperrors "freelance_hub/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type chatFixture struct {
	projectRepo   *mocks.MockProjectRepository
	chatRepo      *mocks.MockChatRepository
	broadcastRepo *mocks.MockBroadcastRepository
	auditRepo     *mocks.MockAuditRepository
	svc           ChatService
}

func newChatFixture(t *testing.T) *chatFixture {
	ctrl := gomock.NewController(t)
	f := &chatFixture{
		projectRepo:   mocks.NewMockProjectRepository(ctrl),
		chatRepo:      mocks.NewMockChatRepository(ctrl),
		broadcastRepo: mocks.NewMockBroadcastRepository(ctrl),
		auditRepo:     mocks.NewMockAuditRepository(ctrl),
	}
	f.svc = newChatServiceWith(f.chatRepo, f.projectRepo, f.broadcastRepo, f.auditRepo)
	return f
}

func newChatServiceWith(
	chatRepo repository.ChatRepository,
	projectRepo repository.ProjectRepository,
	broadcastRepo repository.BroadcastRepository,
	auditRepo repository.AuditRepository,
) ChatService {
	return NewChatService(
		chatRepo,
		projectRepo,
		NewAccessGuard(projectRepo, testLog),
		NewBroadcastService(broadcastRepo, testLog),
		NewAuditService(auditRepo, testLog),
		config.ChatConfig{MaxContentLength: 20},
		testLog,
	)
}

func TestChatService_SendPersistsBeforePublishing(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	client := newUser(domain.UserRoleClient)
	freelancer := newUser(domain.UserRoleFreelancer)
	projectID := uuid.New()

	var published *domain.Envelope
	gomock.InOrder(
		f.projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(participants(projectID, client, freelancer), nil),
		f.chatRepo.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m *domain.ChatMessage) error {
			m.ID = 42
			m.SenderName = client.DisplayName
			return nil
		}),
		f.broadcastRepo.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *domain.Envelope) error {
			published = e
			return nil
		}),
	)

	result, err := f.svc.Send(ctx, client, SendMessageInput{
		ProjectID:   projectID,
		Content:     "  hello  ",
		Attachments: []string{" a.png", "", "a.png", "b.pdf"},
	})
	require.NoError(t, err)
	require.True(t, result.Broadcast)
	assert.Equal(t, int64(42), result.Message.ID)
	assert.Equal(t, "hello", result.Message.Content)
	assert.Equal(t, client.ID, result.Message.SenderID)
	assert.Equal(t, []string{"a.png", "b.pdf"}, result.Message.Attachments)

	require.NotNil(t, published)
	assert.Equal(t, domain.EventNewMessage, published.Event)
	assert.Equal(t, domain.ChannelName(projectID), published.Channel)

	var payload domain.ChatMessage
	require.NoError(t, json.Unmarshal(published.Data, &payload))
	assert.Equal(t, int64(42), payload.ID)
	assert.Equal(t, client.DisplayName, payload.SenderName)
}

func TestChatService_SendRejectsOutsiders(t *testing.T) {
	f := newChatFixture(t)
	projectID := uuid.New()
	client := newUser(domain.UserRoleClient)

	f.projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(participants(projectID, client, nil), nil)
	f.chatRepo.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)
	f.broadcastRepo.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	_, err := f.svc.Send(context.Background(), newUser(domain.UserRoleFreelancer), SendMessageInput{
		ProjectID: projectID,
		Content:   "hi",
	})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestChatService_SendUnknownProject(t *testing.T) {
	f := newChatFixture(t)
	projectID := uuid.New()

	f.projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(nil, fmt.Errorf("project: %w", apperrors.ErrNotFound))

	_, err := f.svc.Send(context.Background(), newUser(domain.UserRoleClient), SendMessageInput{
		ProjectID: projectID,
		Content:   "hi",
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestChatService_SendValidatesContent(t *testing.T) {
	f := newChatFixture(t)
	client := newUser(domain.UserRoleClient)

	for _, content := range []string{"", "   \n\t", strings.Repeat("я", 21)} {
		_, err := f.svc.Send(context.Background(), client, SendMessageInput{
			ProjectID: uuid.New(),
			Content:   content,
		})
		require.ErrorIs(t, err, apperrors.ErrInvalidArgument, "content %q", content)
	}

	_, err := f.svc.Send(context.Background(), nil, SendMessageInput{ProjectID: uuid.New(), Content: "hi"})
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestChatService_SendStorageFailureSkipsPublish(t *testing.T) {
	f := newChatFixture(t)
	projectID := uuid.New()
	client := newUser(domain.UserRoleClient)

	f.projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(participants(projectID, client, nil), nil)
	f.chatRepo.EXPECT().Append(gomock.Any(), gomock.Any()).Return(fmt.Errorf("append: %w", apperrors.ErrStorageUnavailable))
	f.broadcastRepo.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	_, err := f.svc.Send(context.Background(), client, SendMessageInput{ProjectID: projectID, Content: "hi"})
	require.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
}

func TestChatService_SendPublishFailureKeepsMessage(t *testing.T) {
	f := newChatFixture(t)
	projectID := uuid.New()
	client := newUser(domain.UserRoleClient)

	f.projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(participants(projectID, client, nil), nil)
	f.chatRepo.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m *domain.ChatMessage) error {
		m.ID = 7
		return nil
	})
	f.broadcastRepo.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(fmt.Errorf("publish: %w", apperrors.ErrPublishFailed))

	var audited *domain.AuditLog
	f.auditRepo.EXPECT().CreateLog(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, l *domain.AuditLog) error {
		audited = l
		return nil
	})

	result, err := f.svc.Send(context.Background(), client, SendMessageInput{ProjectID: projectID, Content: "hi"})
	require.NoError(t, err)
	assert.False(t, result.Broadcast)
	assert.Equal(t, int64(7), result.Message.ID)

	require.NotNil(t, audited)
	assert.Equal(t, domain.EventTypeChatPublishFailed, audited.EventType)
	assert.Equal(t, domain.ParticipantRoleClient, audited.ActorRole)
	require.NotNil(t, audited.ProjectID)
	assert.Equal(t, projectID, *audited.ProjectID)
	assert.Equal(t, int64(7), audited.Payload["message_id"])
}

func TestChatService_HistoryFollowsSendOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	projectRepo := mocks.NewMockProjectRepository(ctrl)
	broadcastRepo := mocks.NewMockBroadcastRepository(ctrl)
	chatRepo := newMemoryChatRepository()

	svc := newChatServiceWith(chatRepo, projectRepo, broadcastRepo, mocks.NewMockAuditRepository(ctrl))

	client := newUser(domain.UserRoleClient)
	freelancer := newUser(domain.UserRoleFreelancer)
	projectID := uuid.New()
	otherProjectID := uuid.New()
	chatRepo.names[client.ID] = client.DisplayName

	projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(participants(projectID, client, freelancer), nil).AnyTimes()
	projectRepo.EXPECT().GetParticipants(gomock.Any(), otherProjectID).Return(participants(otherProjectID, client, nil), nil).AnyTimes()
	broadcastRepo.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	ctx := context.Background()
	var sent []int64
	for i, sender := range []*domain.User{client, freelancer, client, freelancer} {
		result, err := svc.Send(ctx, sender, SendMessageInput{ProjectID: projectID, Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
		sent = append(sent, result.Message.ID)
	}
	_, err := svc.Send(ctx, client, SendMessageInput{ProjectID: otherProjectID, Content: "elsewhere"})
	require.NoError(t, err)

	history, err := svc.History(ctx, freelancer, projectID)
	require.NoError(t, err)
	require.Len(t, history, len(sent))
	for i, m := range history {
		assert.Equal(t, sent[i], m.ID)
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Content)
	}
	assert.Equal(t, client.DisplayName, history[0].SenderName)
	assert.Equal(t, domain.DefaultSenderName, history[1].SenderName)

	_, err = svc.History(ctx, freelancer, otherProjectID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestChatService_NotifyTypingIsBestEffort(t *testing.T) {
	f := newChatFixture(t)
	projectID := uuid.New()
	client := newUser(domain.UserRoleClient)

	f.projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(participants(projectID, client, nil), nil).Times(2)

	var envelope *domain.Envelope
	f.broadcastRepo.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *domain.Envelope) error {
		envelope = e
		return nil
	})
	require.NoError(t, f.svc.NotifyTyping(context.Background(), client, projectID, true))

	require.NotNil(t, envelope)
	assert.Equal(t, domain.EventUserTyping, envelope.Event)
	var event domain.TypingEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &event))
	assert.Equal(t, domain.TypingEvent{UserID: client.ID, IsTyping: true}, event)

	f.broadcastRepo.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(apperrors.ErrPublishFailed)
	require.NoError(t, f.svc.NotifyTyping(context.Background(), client, projectID, false))
}

func TestChatService_NotifyTypingRequiresParticipancy(t *testing.T) {
	f := newChatFixture(t)
	projectID := uuid.New()

	f.projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(participants(projectID, newUser(domain.UserRoleClient), nil), nil)
	f.broadcastRepo.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	err := f.svc.NotifyTyping(context.Background(), newUser(domain.UserRoleClient), projectID, true)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestChatService_ListRooms(t *testing.T) {
	f := newChatFixture(t)
	client := newUser(domain.UserRoleClient)
	rooms := []*domain.ChatRoom{{ProjectID: uuid.New(), Role: domain.ParticipantRoleClient}}

	f.projectRepo.EXPECT().ListChatRooms(gomock.Any(), client.ID).Return(rooms, nil)

	got, err := f.svc.ListRooms(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, rooms, got)

	_, err = f.svc.ListRooms(context.Background(), nil)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}
