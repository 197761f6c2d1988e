// Package config loads and validates client configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	envConfigFile         = "WIREBRIDGE_CONFIG_FILE"
	defaultConfigFileName = "config.toml"
	defaultConfigDirName  = ".wirebridge"

	defaultHeartbeatInterval  = 30 * time.Second
	defaultReconnectBaseDelay = time.Second
	defaultReconnectMaxDelay  = 30 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
)

// Config is the validated runtime configuration.
type Config struct {
	// ServerURL is the websocket feed endpoint.
	ServerURL string
	// AccessToken is the bearer token presented at dial time.
	AccessToken string

	LogLevel slog.Level

	HeartbeatInterval    time.Duration
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int
	ShutdownTimeout      time.Duration
}

type fileConfig struct {
	ServerURL   string         `toml:"server_url"`
	AccessToken string         `toml:"access_token"`
	LogLevel    string         `toml:"log_level"`
	Connection  fileConnection `toml:"connection"`
}

type fileConnection struct {
	HeartbeatInterval    string `toml:"heartbeat_interval"`
	ReconnectBaseDelay   string `toml:"reconnect_base_delay"`
	ReconnectMaxDelay    string `toml:"reconnect_max_delay"`
	MaxReconnectAttempts *int   `toml:"max_reconnect_attempts"`
	ShutdownTimeout      string `toml:"shutdown_timeout"`
}

// Load reads configuration from path, or from the default location when path
// is empty.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := defaults()
	if err := applyFile(&cfg, resolved); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config file %s: %w", resolved, err)
	}

	return cfg, nil
}

// DefaultPath returns the conventional config location under the user's home
// directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, defaultConfigDirName, defaultConfigFileName), nil
}

func resolvePath(path string) (string, error) {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed, nil
	}
	if fromEnv := strings.TrimSpace(os.Getenv(envConfigFile)); fromEnv != "" {
		return fromEnv, nil
	}

	candidate, err := DefaultPath()
	if err != nil {
		return "", err
	}
	info, err := os.Stat(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("config file not found; create %s or set %s", candidate, envConfigFile)
		}

		return "", fmt.Errorf("stat config file %s: %w", candidate, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("config file %s is a directory", candidate)
	}

	return candidate, nil
}

func defaults() Config {
	return Config{
		LogLevel:           slog.LevelInfo,
		HeartbeatInterval:  defaultHeartbeatInterval,
		ReconnectBaseDelay: defaultReconnectBaseDelay,
		ReconnectMaxDelay:  defaultReconnectMaxDelay,
		ShutdownTimeout:    defaultShutdownTimeout,
	}
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.ServerURL = strings.TrimSpace(parsed.ServerURL)
	cfg.AccessToken = strings.TrimSpace(parsed.AccessToken)

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := ParseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = level
	}

	if err := applyDuration(&cfg.HeartbeatInterval, parsed.Connection.HeartbeatInterval, "connection.heartbeat_interval"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.ReconnectBaseDelay, parsed.Connection.ReconnectBaseDelay, "connection.reconnect_base_delay"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.ReconnectMaxDelay, parsed.Connection.ReconnectMaxDelay, "connection.reconnect_max_delay"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.ShutdownTimeout, parsed.Connection.ShutdownTimeout, "connection.shutdown_timeout"); err != nil {
		return err
	}
	if parsed.Connection.MaxReconnectAttempts != nil {
		if *parsed.Connection.MaxReconnectAttempts < 0 {
			return fmt.Errorf("parse connection.max_reconnect_attempts: must be >= 0")
		}
		cfg.MaxReconnectAttempts = *parsed.Connection.MaxReconnectAttempts
	}

	return nil
}

func applyDuration(target *time.Duration, raw, scope string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	parsed, err := time.ParseDuration(trimmed)
	if err != nil {
		return fmt.Errorf("parse %s: %w", scope, err)
	}
	if parsed <= 0 {
		return fmt.Errorf("parse %s: must be > 0", scope)
	}
	*target = parsed

	return nil
}

// Validate checks config coherence.
func (cfg Config) Validate() error {
	if cfg.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	parsed, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server_url: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return fmt.Errorf("invalid server_url: scheme must be ws or wss")
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid server_url: missing host")
	}

	if cfg.AccessToken == "" {
		return fmt.Errorf("access_token is required")
	}
	if cfg.ReconnectBaseDelay > cfg.ReconnectMaxDelay {
		return fmt.Errorf("connection.reconnect_base_delay must be <= connection.reconnect_max_delay")
	}

	return nil
}

// ParseLogLevel maps a config string to a slog level.
func ParseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}
