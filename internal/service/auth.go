package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"freelance_hub/internal/config"
	"freelance_hub/internal/domain"
	"freelance_hub/internal/repository"
	apperrors "freelance_hub/pkg/errors"
	"freelance_hub/pkg/jwt"
	"freelance_hub/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*domain.User, error)
	Logout(ctx context.Context, refreshToken string) error
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

type LoginResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type authService struct {
	userRepo repository.UserRepository
	jwtCfg   config.JWTConfig
	log      logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		jwtCfg:   jwtCfg,
		log:      log,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	displayName := strings.TrimSpace(input.DisplayName)
	password := strings.TrimSpace(input.Password)
	role := strings.ToUpper(strings.TrimSpace(input.Role))

	switch {
	case email == "" || !strings.Contains(email, "@"):
		return nil, fmt.Errorf("invalid email: %w", apperrors.ErrInvalidArgument)
	case len(email) > 255:
		return nil, fmt.Errorf("email is too long: %w", apperrors.ErrInvalidArgument)
	case utf8.RuneCountInString(password) < 8:
		return nil, fmt.Errorf("password must be at least 8 characters: %w", apperrors.ErrInvalidArgument)
	case displayName == "":
		return nil, fmt.Errorf("display name is required: %w", apperrors.ErrInvalidArgument)
	case utf8.RuneCountInString(displayName) > 100:
		return nil, fmt.Errorf("display name is too long (max 100 characters): %w", apperrors.ErrInvalidArgument)
	}

	// ADMIN назначается только вручную
	if role != domain.UserRoleClient && role != domain.UserRoleFreelancer {
		return nil, fmt.Errorf("role must be CLIENT or FREELANCER: %w", apperrors.ErrInvalidArgument)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("Failed to hash password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(passwordHash),
		DisplayName:  displayName,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Дубликат email ловит уникальный индекс
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("User registered", "user_id", user.ID, "role", user.Role)

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	password = strings.TrimSpace(password)

	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		// Не раскрываем, существует ли пользователь
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, fmt.Errorf("user account is disabled: %w", apperrors.ErrForbidden)
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.log.Warn("Failed to update last login", "error", err)
	}

	user.PasswordHash = ""
	return &LoginResponse{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, err := jwt.ValidateRefreshToken(refreshToken, s.jwtCfg.RefreshSecret)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid token subject: %w", apperrors.ErrInvalidToken)
	}

	session, err := s.userRepo.GetSessionByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("session not found or expired: %w", apperrors.ErrInvalidToken)
		}
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUnauthenticated
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, fmt.Errorf("user account is disabled: %w", apperrors.ErrForbidden)
	}

	// Отзыв старой сессии и создание новой
	if err := s.userRepo.RevokeSession(ctx, session.ID, "refreshed"); err != nil {
		s.log.Warn("Failed to revoke old session", "error", err)
	}

	return s.issueTokens(ctx, user)
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*domain.User, error) {
	claims, err := jwt.ValidateToken(tokenString, s.jwtCfg.AccessSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUnauthenticated
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, fmt.Errorf("user account is disabled: %w", apperrors.ErrUnauthenticated)
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.userRepo.GetSessionByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		return err
	}

	return s.userRepo.RevokeSession(ctx, session.ID, "logout")
}

func (s *authService) issueTokens(ctx context.Context, user *domain.User) (*TokenResponse, error) {
	accessToken, err := jwt.GenerateAccessToken(user.ID, user.Email, user.Role, s.jwtCfg.AccessSecret, s.jwtCfg.AccessTTL)
	if err != nil {
		s.log.Error("Failed to generate access token", "error", err)
		return nil, err
	}

	refreshToken, err := jwt.GenerateRefreshToken(user.ID, s.jwtCfg.RefreshSecret, s.jwtCfg.RefreshTTL)
	if err != nil {
		s.log.Error("Failed to generate refresh token", "error", err)
		return nil, err
	}

	now := time.Now()
	session := &domain.UserSession{
		ID:               uuid.New(),
		UserID:           user.ID,
		RefreshTokenHash: hashToken(refreshToken),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.jwtCfg.RefreshTTL),
	}

	if err := s.userRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// В БД хранится только хеш refresh токена
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
