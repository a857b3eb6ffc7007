package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Sync.Interval)
	assert.Equal(t, ":8080", cfg.Service.AdminAddr)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	content := `
backend:
  base_url: "https://bots.example.com"
sync:
  interval: 3s
telegram:
  chat_id: 42
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("TELEGRAM_TOKEN", "tg-token")
	t.Setenv("VAULT_PASSPHRASE", "pass")
	t.Setenv("FLEET_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://bots.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Sync.Interval)
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)
	assert.Equal(t, "tg-token", cfg.Telegram.Token)
	assert.Equal(t, "pass", cfg.Vault.Passphrase)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoadRejectsTelegramWithoutChat(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "tg-token")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat_id")
}

func TestLoadRejectsStreamWithoutURL(t *testing.T) {
	t.Setenv("FLEET_STREAM_ENABLED", "true")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream.url")
}
