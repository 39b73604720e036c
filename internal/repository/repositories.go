package repository

import (
	"fmt"

	apperrors "freelance_hub/pkg/errors"
	"freelance_hub/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Repositories struct {
	User      UserRepository
	Project   ProjectRepository
	Chat      ChatRepository
	Broadcast BroadcastRepository
	Audit     AuditRepository
	RateLimit RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	repos := &Repositories{
		User:      NewUserRepository(db, log),
		Project:   NewProjectRepository(db, log),
		Chat:      NewChatRepository(db, log),
		Broadcast: NewBroadcastRepository(redis, log),
		Audit:     NewAuditRepository(db, log),
		RateLimit: NewRateLimitRepository(redis, log),
	}

	log.Info("Repositories initialized")

	return repos
}

// storageError помечает ошибку БД как ErrStorageUnavailable, сохраняя исходный текст
func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, apperrors.ErrStorageUnavailable, err)
}
