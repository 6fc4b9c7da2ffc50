package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := validateURL("api.rest_url", c.API.RestURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("api.ws_url", c.API.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if c.API.Timeout < 0 {
		return errors.New("api.timeout must be >= 0")
	}

	if c.Auth.APIKey == "" {
		return errors.New("auth.api_key is required")
	}
	if c.Auth.UserKey == "" && c.Auth.UserKeyFile == "" {
		return errors.New("auth.user_key or auth.user_key_file is required")
	}

	if !c.RateLimit.Disabled {
		if c.RateLimit.MaxRequests < 1 {
			return errors.New("rate_limit.max_requests must be >= 1")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("rate_limit.window must be > 0")
		}
	}

	if c.Retry.Attempts < 1 {
		return errors.New("retry.attempts must be >= 1")
	}
	if c.Retry.Delay < 0 {
		return errors.New("retry.delay must be >= 0")
	}

	if c.WebSocket.AuthTimeout <= 0 {
		return errors.New("websocket.auth_timeout must be > 0")
	}
	if c.WebSocket.PingInterval < 0 || c.WebSocket.PongTimeout < 0 {
		return errors.New("websocket heartbeat durations must be >= 0")
	}
	if c.WebSocket.HeartbeatInterval() > 0 && c.WebSocket.PongTimeout == 0 {
		return errors.New("websocket.pong_timeout must be > 0 when the heartbeat is enabled")
	}
	if c.WebSocket.MaxReconnectAttempts < 0 {
		return errors.New("websocket.max_reconnect_attempts must be >= 0")
	}

	if c.Orders.FallbackDelay < 0 || c.Orders.PollInterval < 0 || c.Orders.DefaultTimeout < 0 {
		return errors.New("orders durations must be >= 0")
	}
	switch c.Orders.UnknownStatus {
	case "wait", "fail":
	default:
		return fmt.Errorf("orders.unknown_status must be wait or fail, got %q", c.Orders.UnknownStatus)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be 1-65535, got %d", c.Metrics.Port)
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be an absolute %v URL, got %q", field, schemes, raw)
}
