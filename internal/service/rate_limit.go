package service

import (
	"context"
	"time"

	"freelance_hub/internal/config"
	"freelance_hub/internal/domain"
	"freelance_hub/internal/repository"
	"freelance_hub/pkg/logger"
)

type RateLimitService interface {
	// Allow учитывает запрос и сообщает, укладывается ли он в лимит окна
	Allow(ctx context.Context, scope, subject string) (bool, time.Duration, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	cfg           config.RateLimitConfig
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, cfg config.RateLimitConfig, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		cfg:           cfg,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, scope, subject string) (bool, time.Duration, error) {
	key := domain.RateLimitKey(scope, subject)

	count, ttl, err := s.rateLimitRepo.Hit(ctx, key, s.cfg.Window)
	if err != nil {
		return false, 0, err
	}
	if count > int64(s.cfg.Requests) {
		retryAfter := ttl
		if retryAfter <= 0 {
			retryAfter = s.cfg.Window
		}
		s.log.Debug("Rate limit exceeded", "scope", scope, "subject", subject)
		return false, retryAfter, nil
	}

	return true, 0, nil
}
