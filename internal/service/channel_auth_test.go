package service

import (
	"context"
	"encoding/json"
	"testing"

	"freelance_hub/internal/domain"
	"freelance_hub/internal/repository/mocks"
	apperrors "freelance_hub/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newChannelAuthFixture(t *testing.T) (*mocks.MockProjectRepository, *mocks.MockAuditRepository, ChannelAuthService) {
	ctrl := gomock.NewController(t)
	projectRepo := mocks.NewMockProjectRepository(ctrl)
	auditRepo := mocks.NewMockAuditRepository(ctrl)

	svc := NewChannelAuthService(
		NewAccessGuard(projectRepo, testLog),
		NewAuditService(auditRepo, testLog),
		testBroadcastConfig(),
		testLog,
	)
	return projectRepo, auditRepo, svc
}

func TestChannelAuth_GrantForParticipant(t *testing.T) {
	projectRepo, auditRepo, svc := newChannelAuthFixture(t)

	client := newUser(domain.UserRoleClient)
	freelancer := newUser(domain.UserRoleFreelancer)
	projectID := uuid.New()
	channel := domain.ChannelName(projectID)

	projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(participants(projectID, client, freelancer), nil)
	auditRepo.EXPECT().CreateLog(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, l *domain.AuditLog) error {
		assert.Equal(t, domain.EventTypeChannelSubscriptionGranted, l.EventType)
		assert.Equal(t, domain.ParticipantRoleFreelancer, l.ActorRole)
		return nil
	})

	grant, err := svc.AuthorizeSubscription(context.Background(), freelancer, "123.456", channel)
	require.NoError(t, err)
	require.NotEmpty(t, grant.Auth)

	var data struct {
		UserID   string `json:"user_id"`
		UserInfo struct {
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"user_info"`
	}
	require.NoError(t, json.Unmarshal(grant.ChannelData, &data))
	assert.Equal(t, freelancer.ID.String(), data.UserID)
	assert.Equal(t, freelancer.DisplayName, data.UserInfo.Name)
	assert.Equal(t, domain.ParticipantRoleFreelancer, data.UserInfo.Role)

	claims, err := svc.VerifyGrant(grant.Auth, "123.456", channel)
	require.NoError(t, err)
	assert.Equal(t, freelancer.ID, claims.UserID)

	_, err = svc.VerifyGrant(grant.Auth, "other-socket", channel)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.VerifyGrant(grant.Auth, "123.456", domain.ChannelName(uuid.New()))
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestChannelAuth_DeniedIsAudited(t *testing.T) {
	projectRepo, auditRepo, svc := newChannelAuthFixture(t)

	projectID := uuid.New()
	outsider := newUser(domain.UserRoleFreelancer)

	projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(participants(projectID, newUser(domain.UserRoleClient), nil), nil)
	auditRepo.EXPECT().CreateLog(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, l *domain.AuditLog) error {
		assert.Equal(t, domain.EventTypeChannelSubscriptionDenied, l.EventType)
		require.NotNil(t, l.ActorUserID)
		assert.Equal(t, outsider.ID, *l.ActorUserID)
		return nil
	})

	grant, err := svc.AuthorizeSubscription(context.Background(), outsider, "1.1", domain.ChannelName(projectID))
	require.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Nil(t, grant)
}

func TestChannelAuth_RejectsBeforeStorage(t *testing.T) {
	projectRepo, _, svc := newChannelAuthFixture(t)
	projectRepo.EXPECT().GetParticipants(gomock.Any(), gomock.Any()).Times(0)

	user := newUser(domain.UserRoleClient)
	ctx := context.Background()

	_, err := svc.AuthorizeSubscription(ctx, nil, "1.1", domain.ChannelName(uuid.New()))
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	for _, channel := range []string{"", "project-xyz", "presence-" + uuid.NewString()} {
		_, err = svc.AuthorizeSubscription(ctx, user, "1.1", channel)
		require.ErrorIs(t, err, apperrors.ErrInvalidChannel, "channel %q", channel)
	}

	_, err = svc.AuthorizeSubscription(ctx, user, "  ", domain.ChannelName(uuid.New()))
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestChannelAuth_VerifyRejectsForeignSignature(t *testing.T) {
	cfg := testBroadcastConfig()
	cfg.AppSecret = "another-secret"
	foreign := NewChannelAuthService(nil, nil, cfg, testLog)

	projectRepo, auditRepo, svc := newChannelAuthFixture(t)
	client := newUser(domain.UserRoleClient)
	projectID := uuid.New()
	projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(participants(projectID, client, nil), nil)
	auditRepo.EXPECT().CreateLog(gomock.Any(), gomock.Any()).Return(nil)

	grant, err := svc.AuthorizeSubscription(context.Background(), client, "9.9", domain.ChannelName(projectID))
	require.NoError(t, err)

	_, err = svc.VerifyGrant(grant.Auth, "9.9", domain.ChannelName(projectID))
	require.NoError(t, err)

	_, err = foreign.VerifyGrant(grant.Auth, "9.9", domain.ChannelName(projectID))
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	_, err = svc.VerifyGrant("not-a-token", "9.9", domain.ChannelName(projectID))
	require.Error(t, err)
}
