package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"freelance_hub/internal/domain"
	"freelance_hub/internal/repository"
	apperrors "freelance_hub/pkg/errors"
	"freelance_hub/pkg/logger"

	"github.com/google/uuid"
)

type UserService interface {
	GetMe(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	UpdateMe(ctx context.Context, userID uuid.UUID, displayName string, avatarURL *string) (*domain.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	log      logger.Logger
}

func NewUserService(userRepo repository.UserRepository, log logger.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		log:      log,
	}
}

func (s *userService) GetMe(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) UpdateMe(ctx context.Context, userID uuid.UUID, displayName string, avatarURL *string) (*domain.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" || utf8.RuneCountInString(displayName) > 100 {
		return nil, fmt.Errorf("display name must be 1-100 characters: %w", apperrors.ErrInvalidArgument)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.DisplayName = displayName
	if avatarURL != nil {
		// пустая строка убирает аватар
		if strings.TrimSpace(*avatarURL) == "" {
			user.AvatarURL = nil
		} else {
			user.AvatarURL = avatarURL
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}
