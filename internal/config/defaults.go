package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout           = 30 * time.Second
	DefaultRateLimitMax         = 20
	DefaultRateLimitWindow      = time.Second
	DefaultRetryAttempts        = 3
	DefaultRetryDelay           = 1 * time.Second
	DefaultAuthTimeout          = 10 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultPongTimeout          = 10 * time.Second
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultFallbackDelay        = 3 * time.Second
	DefaultOrderPollInterval    = 1 * time.Second
	DefaultOrderTimeout         = 30 * time.Second
	DefaultUnknownStatus        = "wait"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}

	// Rate limit defaults
	if c.RateLimit.MaxRequests == 0 {
		c.RateLimit.MaxRequests = DefaultRateLimitMax
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = DefaultRateLimitWindow
	}

	// Retry defaults
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = DefaultRetryAttempts
	}
	if c.Retry.Delay == 0 {
		c.Retry.Delay = DefaultRetryDelay
	}

	// WebSocket defaults
	if c.WebSocket.AuthTimeout == 0 {
		c.WebSocket.AuthTimeout = DefaultAuthTimeout
	}
	if c.WebSocket.PingInterval == 0 && !c.WebSocket.DisableHeartbeat {
		c.WebSocket.PingInterval = DefaultPingInterval
	}
	if c.WebSocket.PongTimeout == 0 {
		c.WebSocket.PongTimeout = DefaultPongTimeout
	}
	if c.WebSocket.ReconnectBaseDelay == 0 {
		c.WebSocket.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.WebSocket.MaxReconnectAttempts == 0 && !c.WebSocket.DisableReconnect {
		c.WebSocket.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}

	// Orders defaults
	if c.Orders.FallbackDelay == 0 {
		c.Orders.FallbackDelay = DefaultFallbackDelay
	}
	if c.Orders.PollInterval == 0 {
		c.Orders.PollInterval = DefaultOrderPollInterval
	}
	if c.Orders.DefaultTimeout == 0 {
		c.Orders.DefaultTimeout = DefaultOrderTimeout
	}
	if c.Orders.UnknownStatus == "" {
		c.Orders.UnknownStatus = DefaultUnknownStatus
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// HeartbeatInterval returns the ping interval, or 0 when the heartbeat is
// disabled.
func (w WebSocketConfig) HeartbeatInterval() time.Duration {
	if w.DisableHeartbeat {
		return 0
	}
	return w.PingInterval
}

// ReconnectAttempts returns the reconnect budget, or 0 when reconnection is
// disabled.
func (w WebSocketConfig) ReconnectAttempts() int {
	if w.DisableReconnect {
		return 0
	}
	return w.MaxReconnectAttempts
}

// WithDefaults returns a copy of c with defaults applied to unset fields.
func (c Config) WithDefaults() Config {
	c.applyDefaults()
	return c
}
