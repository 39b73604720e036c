package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"freelance_hub/internal/config"
	"freelance_hub/internal/domain"
	"freelance_hub/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRateLimitService_Allow(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRateLimitRepository(ctrl)
	cfg := config.RateLimitConfig{Requests: 5, Window: time.Minute}
	svc := NewRateLimitService(repo, cfg, testLog)
	ctx := context.Background()
	key := domain.RateLimitKey(domain.RateLimitScopeUser, "u1")

	repo.EXPECT().Hit(gomock.Any(), key, time.Minute).Return(int64(1), time.Minute, nil)
	allowed, retryAfter, err := svc.Allow(ctx, domain.RateLimitScopeUser, "u1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, retryAfter)

	// последний запрос в лимите
	repo.EXPECT().Hit(gomock.Any(), key, time.Minute).Return(int64(5), 30*time.Second, nil)
	allowed, _, err = svc.Allow(ctx, domain.RateLimitScopeUser, "u1")
	require.NoError(t, err)
	assert.True(t, allowed)

	repo.EXPECT().Hit(gomock.Any(), key, time.Minute).Return(int64(6), 12*time.Second, nil)
	allowed, retryAfter, err = svc.Allow(ctx, domain.RateLimitScopeUser, "u1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 12*time.Second, retryAfter)

	// остаток окна неизвестен
	repo.EXPECT().Hit(gomock.Any(), key, time.Minute).Return(int64(7), time.Duration(0), nil)
	_, retryAfter, err = svc.Allow(ctx, domain.RateLimitScopeUser, "u1")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, retryAfter)

	repo.EXPECT().Hit(gomock.Any(), key, time.Minute).Return(int64(0), time.Duration(0), errors.New("redis down"))
	_, _, err = svc.Allow(ctx, domain.RateLimitScopeUser, "u1")
	require.Error(t, err)
}
