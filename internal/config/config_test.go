package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SEND_QUEUE_SIZE", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, 64, cfg.SendQueueSize)
	assert.Equal(t, 15*time.Second, cfg.PingInterval)
	assert.Equal(t, 24*time.Hour, cfg.JournalTTL)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("SEND_QUEUE_SIZE", "128")
	t.Setenv("PING_INTERVAL_SEC", "notanumber")
	t.Setenv("DISPLAY_NAME_LIMIT", "-3")
	t.Setenv("JOURNAL_TTL_SEC", "60")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 128, cfg.SendQueueSize)
	assert.Equal(t, 15*time.Second, cfg.PingInterval)
	assert.Equal(t, 24, cfg.DisplayNameLimit)
	assert.Equal(t, time.Minute, cfg.JournalTTL)
}

func TestLoadRejectsEmptyAddr(t *testing.T) {
	t.Setenv("RELAY_ADDR", "  ")
	_, err := Load()
	require.Error(t, err)
}
