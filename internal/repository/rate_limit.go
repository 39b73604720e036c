//go:generate go run go.uber.org/mock/mockgen -source=rate_limit.go -destination=mocks/mock_rate_limit.go -package=mocks
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"freelance_hub/pkg/logger"

	"github.com/redis/go-redis/v9"
)

type RateLimitRepository interface {
	// Hit учитывает запрос в окне и возвращает счетчик и остаток окна.
	// Окно открывается первым запросом и не продлевается последующими.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type rateLimitRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewRateLimitRepository(redis *redis.Client, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, log: log}
}

func (r *rateLimitRepository) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)

	// SET NX EX и INCR в одной транзакции: ключ без срока жизни не появляется
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, window)
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		r.log.Error("Failed to count rate limit hit", "error", err, "key", key)
		return 0, 0, fmt.Errorf("rate limit hit: %w", err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = 0
	}
	return incr.Val(), remaining, nil
}
