package config

import (
	"log/slog"
	"time"
)

// Config is the root configuration for a trading API client.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Orders    OrdersConfig    `yaml:"orders"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// APIConfig holds endpoint settings.
type APIConfig struct {
	RestURL string        `yaml:"rest_url"`
	WSURL   string        `yaml:"ws_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AuthConfig holds credentials. UserKeyFile takes precedence over UserKey.
type AuthConfig struct {
	APIKey      string `yaml:"api_key"`
	UserKey     string `yaml:"user_key"`
	UserKeyFile string `yaml:"user_key_file"`
}

// RateLimitConfig holds client-side rate limiter settings.
type RateLimitConfig struct {
	Disabled    bool          `yaml:"disabled"`
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// RetryConfig holds REST retry settings.
type RetryConfig struct {
	Attempts      int           `yaml:"attempts"`
	Delay         time.Duration `yaml:"delay"`
	DisableJitter bool          `yaml:"disable_jitter"`
}

// WebSocketConfig holds session settings.
type WebSocketConfig struct {
	AuthTimeout          time.Duration `yaml:"auth_timeout"`
	DisableHeartbeat     bool          `yaml:"disable_heartbeat"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PongTimeout          time.Duration `yaml:"pong_timeout"`
	DisableReconnect     bool          `yaml:"disable_reconnect"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
}

// OrdersConfig holds order tracker settings.
type OrdersConfig struct {
	FallbackDelay  time.Duration `yaml:"fallback_delay"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	UnknownStatus  string        `yaml:"unknown_status"` // "wait" or "fail"
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// SlogLevel converts Level to a slog.Level, defaulting to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}
