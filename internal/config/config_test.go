package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "CORS_ALLOWED_ORIGINS", "BACKEND_BASE_URL", "BACKEND_HEALTH_TIMEOUT",
		"BACKEND_CHAT_TIMEOUT", "BOT_NAME", "BOT_TITLE", "BOT_GREETING", "SESSION_IDLE_TTL",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:5000/api", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.HealthTimeout)
	assert.Equal(t, 30*time.Second, cfg.Backend.ChatTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTTL)
	assert.Equal(t, "EURO-Bot", cfg.Bot.Profile().Name)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("BACKEND_BASE_URL", "https://bot.example.eu/api")
	t.Setenv("BACKEND_HEALTH_TIMEOUT", "2")
	t.Setenv("BACKEND_CHAT_TIMEOUT", "45s")
	t.Setenv("BOT_GREETING", "Bonjour!")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, https://euro.example.eu")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "https://bot.example.eu/api", cfg.Backend.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Backend.HealthTimeout)
	assert.Equal(t, 45*time.Second, cfg.Backend.ChatTimeout)
	assert.Equal(t, "Bonjour!", cfg.Bot.Profile().Greeting)
	assert.Equal(t, "EURO-Bot", cfg.Bot.Profile().Name)
	assert.Equal(t, []string{"http://localhost:3000", "https://euro.example.eu"}, cfg.Server.AllowedOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                 "80 80",
		"BACKEND_CHAT_TIMEOUT": "soon",
		"BACKEND_BASE_URL":     "localhost:5000",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadKeepsParseCause(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid PORT value "eighty"`)

	var numErr *strconv.NumError
	require.True(t, errors.As(errors.Cause(err), &numErr))
	assert.Equal(t, "eighty", numErr.Num)
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKEND_HEALTH_TIMEOUT", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "eurobot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: "127.0.0.1:7070"
backend:
  baseURL: http://backend:5000/api
  chatTimeout: 1m
bot:
  title: Europe, explained
log:
  level: debug
`), 0o600))
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7070", cfg.Server.Addr)
	assert.Equal(t, "http://backend:5000/api", cfg.Backend.BaseURL)
	assert.Equal(t, time.Minute, cfg.Backend.ChatTimeout)
	assert.Equal(t, 5*time.Second, cfg.Backend.HealthTimeout)
	assert.Equal(t, "Europe, explained", cfg.Bot.Profile().Title)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFileMissing(t *testing.T) {
	clearEnv(t)
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
