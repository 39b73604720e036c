package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BROADCAST_GRANT_TTL", "")
	t.Setenv("CHAT_MAX_CONTENT_LENGTH", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, cfg.Broadcast.GrantTTL)
	require.Equal(t, 4000, cfg.Chat.MaxContentLength)
	require.NotEmpty(t, cfg.Database.DSN)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BROADCAST_GRANT_TTL", "30s")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 30*time.Second, cfg.Broadcast.GrantTTL)
	require.Equal(t, 100, cfg.RateLimit.Requests)
}

func TestLoadRejectsNonPositiveContentLength(t *testing.T) {
	t.Setenv("CHAT_MAX_CONTENT_LENGTH", "0")

	_, err := Load()
	require.Error(t, err)
}
