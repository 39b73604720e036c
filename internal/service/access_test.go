package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"freelance_hub/internal/domain"
	"freelance_hub/internal/repository/mocks"
	apperrors "freelance_hub/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAccessGuard_AuthorizeSend(t *testing.T) {
	ctrl := gomock.NewController(t)
	projectRepo := mocks.NewMockProjectRepository(ctrl)
	guard := NewAccessGuard(projectRepo, testLog)

	ctx := context.Background()
	client := newUser(domain.UserRoleClient)
	freelancer := newUser(domain.UserRoleFreelancer)
	projectID := uuid.New()

	t.Run("client of the project", func(t *testing.T) {
		projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(participants(projectID, client, freelancer), nil)

		role, err := guard.AuthorizeSend(ctx, client, projectID)
		require.NoError(t, err)
		require.Equal(t, domain.ParticipantRoleClient, role)
	})

	t.Run("assigned freelancer", func(t *testing.T) {
		projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(participants(projectID, client, freelancer), nil)

		role, err := guard.AuthorizeSend(ctx, freelancer, projectID)
		require.NoError(t, err)
		require.Equal(t, domain.ParticipantRoleFreelancer, role)
	})

	t.Run("outsider is forbidden", func(t *testing.T) {
		projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(participants(projectID, client, freelancer), nil)

		_, err := guard.AuthorizeSend(ctx, newUser(domain.UserRoleFreelancer), projectID)
		require.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("freelancer of a project without assignment is forbidden", func(t *testing.T) {
		projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(participants(projectID, client, nil), nil)

		_, err := guard.AuthorizeSend(ctx, freelancer, projectID)
		require.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("unknown project", func(t *testing.T) {
		projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(nil, fmt.Errorf("project: %w", apperrors.ErrNotFound))

		_, err := guard.AuthorizeSend(ctx, client, projectID)
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("no identity never reaches storage", func(t *testing.T) {
		projectRepo.EXPECT().GetParticipants(gomock.Any(), gomock.Any()).Times(0)

		_, err := guard.AuthorizeSend(ctx, nil, projectID)
		require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})

	t.Run("storage failure is passed through", func(t *testing.T) {
		storageErr := fmt.Errorf("get project participants: %w", apperrors.ErrStorageUnavailable)
		projectRepo.EXPECT().GetParticipants(gomock.Any(), projectID).Return(nil, storageErr)

		_, err := guard.AuthorizeSend(ctx, client, projectID)
		require.True(t, errors.Is(err, apperrors.ErrStorageUnavailable))
	})
}
