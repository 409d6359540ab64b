package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/eurobot/webchat/internal/model/profile"
	"github.com/eurobot/webchat/internal/service/backend"
)

// Config aggregates every setting of the chat client.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Bot     BotConfig     `yaml:"bot"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig describes the HTTP surface.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// BackendConfig describes how to reach the conversational backend.
type BackendConfig struct {
	BaseURL       string        `yaml:"baseURL"`
	HealthTimeout time.Duration `yaml:"healthTimeout"`
	ChatTimeout   time.Duration `yaml:"chatTimeout"`
}

// BotConfig overrides the branding of the default profile.
type BotConfig struct {
	Name     string `yaml:"name"`
	Title    string `yaml:"title"`
	Greeting string `yaml:"greeting"`
}

// Profile returns the default profile with the configured overrides applied.
func (c BotConfig) Profile() profile.Profile {
	return profile.Default().WithOverrides(c.Name, c.Title, c.Greeting)
}

// SessionConfig controls the lifetime of abandoned sessions.
type SessionConfig struct {
	IdleTTL time.Duration `yaml:"idleTTL"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Backend: BackendConfig{
			BaseURL:       backend.DefaultBaseURL,
			HealthTimeout: backend.DefaultHealthTimeout,
			ChatTimeout:   backend.DefaultChatTimeout,
		},
		Session: SessionConfig{IdleTTL: 30 * time.Minute},
		Log:     LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads configuration from the environment on top of the defaults.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile decodes the YAML file at path (if any) over the defaults and then
// applies environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	if c.Backend.HealthTimeout <= 0 {
		return errors.Errorf("backend health timeout must be positive, got %s", c.Backend.HealthTimeout)
	}
	if c.Backend.ChatTimeout <= 0 {
		return errors.Errorf("backend chat timeout must be positive, got %s", c.Backend.ChatTimeout)
	}
	if c.Session.IdleTTL < 0 {
		return errors.Errorf("session idle ttl must not be negative, got %s", c.Session.IdleTTL)
	}
	if _, err := backend.New(backend.Options{BaseURL: c.Backend.BaseURL}); err != nil {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) error {
	addr, err := parseAddrEnv("PORT", cfg.Server.Addr)
	if err != nil {
		return err
	}
	cfg.Server.Addr = addr

	if origins := parseListEnv("CORS_ALLOWED_ORIGINS"); origins != nil {
		cfg.Server.AllowedOrigins = origins
	}

	cfg.Backend.BaseURL = getEnvOrDefault("BACKEND_BASE_URL", cfg.Backend.BaseURL)
	if cfg.Backend.HealthTimeout, err = parseDurationEnv("BACKEND_HEALTH_TIMEOUT", cfg.Backend.HealthTimeout); err != nil {
		return err
	}
	if cfg.Backend.ChatTimeout, err = parseDurationEnv("BACKEND_CHAT_TIMEOUT", cfg.Backend.ChatTimeout); err != nil {
		return err
	}

	cfg.Bot.Name = getEnvOrDefault("BOT_NAME", cfg.Bot.Name)
	cfg.Bot.Title = getEnvOrDefault("BOT_TITLE", cfg.Bot.Title)
	cfg.Bot.Greeting = getEnvOrDefault("BOT_GREETING", cfg.Bot.Greeting)

	if cfg.Session.IdleTTL, err = parseDurationEnv("SESSION_IDLE_TTL", cfg.Session.IdleTTL); err != nil {
		return err
	}

	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvOrDefault("LOG_FORMAT", cfg.Log.Format)
	return nil
}

// parseAddrEnv accepts "8080", ":8080" or "127.0.0.1:8080".
func parseAddrEnv(key, defaultValue string) (string, error) {
	port := strings.TrimSpace(os.Getenv(key))
	if port == "" {
		return defaultValue, nil
	}

	if strings.Contains(port, ":") {
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", errors.Errorf("invalid %s value: %q", key, port)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", errors.Wrapf(err, "invalid %s value %q", key, port)
	}

	return ":" + port, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseDurationEnv accepts Go durations ("5s") or a bare number of seconds.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s value %q", key, raw)
	}
	return val, nil
}

func parseListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
