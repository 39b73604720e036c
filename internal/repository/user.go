//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=mocks/mock_user.go -package=mocks
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"freelance_hub/internal/domain"
	apperrors "freelance_hub/pkg/errors"
	"freelance_hub/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	CreateSession(ctx context.Context, session *domain.UserSession) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.UserSession, error)
	RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) error
}

type userRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewUserRepository(db *pgxpool.Pool, log logger.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

const userColumns = `id, email, password_hash, display_name, avatar_url, role, is_active, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.AvatarURL,
		&user.Role, &user.IsActive, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, display_name, avatar_url, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	var avatarURL *string
	if user.AvatarURL != nil && *user.AvatarURL != "" {
		avatarURL = user.AvatarURL
	}

	err := r.db.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.DisplayName, avatarURL,
		user.Role, user.IsActive, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		// Код 23505 = unique_violation
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.log.Warn("User already exists (unique violation)", "email", user.Email, "constraint", pgErr.ConstraintName)
			return apperrors.ErrUserAlreadyExists
		}
		r.log.Error("Failed to create user", "error", err, "email", user.Email)
		return storageError("create user", err)
	}

	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, apperrors.ErrNotFound)
		}
		r.log.Error("Failed to get user by ID", "error", err)
		return nil, storageError("get user", err)
	}

	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	// Нормализация email (lowercase, trim)
	email = strings.ToLower(strings.TrimSpace(email))

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user with email: %w", apperrors.ErrNotFound)
		}
		r.log.Error("Failed to get user by email", "error", err, "email", email)
		return nil, storageError("get user by email", err)
	}

	return user, nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET display_name = $2, avatar_url = $3, is_active = $4, last_login_at = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		user.ID, user.DisplayName, user.AvatarURL, user.IsActive, user.LastLoginAt,
	).Scan(&user.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("user %s: %w", user.ID, apperrors.ErrNotFound)
		}
		r.log.Error("Failed to update user", "error", err)
		return storageError("update user", err)
	}

	return nil
}

func (r *userRepository) CreateSession(ctx context.Context, session *domain.UserSession) error {
	query := `
		INSERT INTO user_sessions (id, user_id, refresh_token_hash, created_at, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		session.ID, session.UserID, session.RefreshTokenHash,
		session.CreatedAt, session.ExpiresAt, session.IPAddress, session.UserAgent,
	)

	if err != nil {
		r.log.Error("Failed to create session", "error", err)
		return storageError("create session", err)
	}

	return nil
}

func (r *userRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.UserSession, error) {
	query := `
		SELECT id, user_id, refresh_token_hash, created_at, expires_at, revoked_at, revoked_reason, ip_address, user_agent
		FROM user_sessions
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`

	session := &domain.UserSession{}
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(
		&session.ID, &session.UserID, &session.RefreshTokenHash,
		&session.CreatedAt, &session.ExpiresAt, &session.RevokedAt,
		&session.RevokedReason, &session.IPAddress, &session.UserAgent,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", apperrors.ErrNotFound)
		}
		r.log.Error("Failed to get session", "error", err)
		return nil, storageError("get session", err)
	}

	return session, nil
}

func (r *userRepository) RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) error {
	query := `
		UPDATE user_sessions
		SET revoked_at = NOW(), revoked_reason = $2
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, sessionID, reason)
	if err != nil {
		r.log.Error("Failed to revoke session", "error", err)
		return storageError("revoke session", err)
	}

	return nil
}
