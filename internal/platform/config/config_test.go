package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/direqt/direqt-go/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/webhook", cfg.Server.WebhookPath)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "echo", cfg.Bot.Mode)
	assert.False(t, cfg.Direqt.StrictVersion)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DIREQT_SERVER_PORT", "9090")
	t.Setenv("DIREQT_ACCESS_TOKEN", "bot-token")
	t.Setenv("DIREQT_SIGNING_SECRET", "signing-secret")
	t.Setenv("DIREQT_MESSAGING_APIROOT", "http://localhost:4000/v3")
	t.Setenv("DIREQT_SERVER_WEBHOOK_PATH", "/hooks/direqt")
	t.Setenv("DIREQT_BOT_MODE", "richmedia")
	t.Setenv("DIREQT_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "bot-token", cfg.Direqt.AccessToken)
	assert.Equal(t, "signing-secret", cfg.Direqt.SigningSecret)
	assert.Equal(t, "http://localhost:4000/v3", cfg.Direqt.MessagingAPIRoot)
	assert.Equal(t, "/hooks/direqt", cfg.Server.WebhookPath)
	assert.Equal(t, "richmedia", cfg.Bot.Mode)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8081
  static_dir: ./public
bot:
  mode: richmedia
  media_base_url: https://cdn.example.com
direqt:
  signing_secret: from-file
`), 0o600))

	t.Setenv("DIREQT_SIGNING_SECRET", "from-env")

	cfg, err := config.Load(path, filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "./public", cfg.Server.StaticDir)
	assert.Equal(t, "richmedia", cfg.Bot.Mode)
	assert.Equal(t, "https://cdn.example.com", cfg.Bot.MediaBaseURL)
	assert.Equal(t, "from-env", cfg.Direqt.SigningSecret)
}
