package service

import (
	"context"
	"strings"
	"testing"

	"freelance_hub/internal/domain"
	"freelance_hub/internal/repository/mocks"
	apperrors "freelance_hub/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestUserService_UpdateMe(t *testing.T) {
	ctrl := gomock.NewController(t)
	userRepo := mocks.NewMockUserRepository(ctrl)
	svc := NewUserService(userRepo, testLog)
	ctx := context.Background()

	avatar := "https://cdn.example.com/a.png"
	user := newUser(domain.UserRoleFreelancer)
	user.AvatarURL = &avatar
	user.PasswordHash = "hash"

	userRepo.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)
	userRepo.EXPECT().Update(gomock.Any(), user).Return(nil)

	empty := " "
	updated, err := svc.UpdateMe(ctx, user.ID, "  New Name ", &empty)
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.DisplayName)
	assert.Nil(t, updated.AvatarURL)
	assert.Empty(t, updated.PasswordHash)

	_, err = svc.UpdateMe(ctx, user.ID, strings.Repeat("x", 101), nil)
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}
