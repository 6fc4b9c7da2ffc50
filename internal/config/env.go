package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// LookupFunc reports the value of an environment variable.
type LookupFunc func(key string) (string, bool)

// Environment variables read by ApplyEnv.
const (
	EnvRestURL            = "TRADEAPI_REST_URL"
	EnvWSURL              = "TRADEAPI_WS_URL"
	EnvTimeout            = "TRADEAPI_TIMEOUT"
	EnvAPIKey             = "TRADEAPI_API_KEY"
	EnvUserKey            = "TRADEAPI_USER_KEY"
	EnvUserKeyFile        = "TRADEAPI_USER_KEY_FILE"
	EnvRateLimitDisabled  = "TRADEAPI_RATE_LIMIT_DISABLED"
	EnvRateLimitMax       = "TRADEAPI_RATE_LIMIT_MAX_REQUESTS"
	EnvRateLimitWindow    = "TRADEAPI_RATE_LIMIT_WINDOW"
	EnvRetryAttempts      = "TRADEAPI_RETRY_ATTEMPTS"
	EnvRetryDelay         = "TRADEAPI_RETRY_DELAY"
	EnvRetryNoJitter      = "TRADEAPI_RETRY_DISABLE_JITTER"
	EnvWSAuthTimeout      = "TRADEAPI_WS_AUTH_TIMEOUT"
	EnvWSPingInterval     = "TRADEAPI_WS_PING_INTERVAL"
	EnvWSPongTimeout      = "TRADEAPI_WS_PONG_TIMEOUT"
	EnvWSReconnectDelay   = "TRADEAPI_WS_RECONNECT_DELAY"
	EnvWSMaxReconnects    = "TRADEAPI_WS_MAX_RECONNECTS"
	EnvOrderFallbackDelay = "TRADEAPI_ORDER_FALLBACK_DELAY"
	EnvOrderPollInterval  = "TRADEAPI_ORDER_POLL_INTERVAL"
	EnvOrderTimeout       = "TRADEAPI_ORDER_TIMEOUT"
	EnvOrderUnknownStatus = "TRADEAPI_ORDER_UNKNOWN_STATUS"
	EnvLogLevel           = "TRADEAPI_LOG_LEVEL"
	EnvLogFormat          = "TRADEAPI_LOG_FORMAT"
	EnvMetricsEnabled     = "TRADEAPI_METRICS_ENABLED"
	EnvMetricsPort        = "TRADEAPI_METRICS_PORT"
)

// FromEnv builds a validated Config from environment variables alone.
// lookup is usually os.LookupEnv; tests pass a map-backed function.
func FromEnv(lookup LookupFunc) (Config, error) {
	var cfg Config
	if err := ApplyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// FromOSEnv is FromEnv over the process environment.
func FromOSEnv() (Config, error) {
	return FromEnv(os.LookupEnv)
}

// ApplyEnv overrides fields of cfg with any variables that are set. Every
// malformed value is reported.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.str(EnvRestURL, &cfg.API.RestURL)
	e.str(EnvWSURL, &cfg.API.WSURL)
	e.duration(EnvTimeout, &cfg.API.Timeout)

	e.str(EnvAPIKey, &cfg.Auth.APIKey)
	e.str(EnvUserKey, &cfg.Auth.UserKey)
	e.str(EnvUserKeyFile, &cfg.Auth.UserKeyFile)

	e.boolean(EnvRateLimitDisabled, &cfg.RateLimit.Disabled)
	e.integer(EnvRateLimitMax, &cfg.RateLimit.MaxRequests)
	e.duration(EnvRateLimitWindow, &cfg.RateLimit.Window)

	e.integer(EnvRetryAttempts, &cfg.Retry.Attempts)
	e.duration(EnvRetryDelay, &cfg.Retry.Delay)
	e.boolean(EnvRetryNoJitter, &cfg.Retry.DisableJitter)

	e.duration(EnvWSAuthTimeout, &cfg.WebSocket.AuthTimeout)
	if e.duration(EnvWSPingInterval, &cfg.WebSocket.PingInterval) && cfg.WebSocket.PingInterval == 0 {
		cfg.WebSocket.DisableHeartbeat = true
	}
	e.duration(EnvWSPongTimeout, &cfg.WebSocket.PongTimeout)
	e.duration(EnvWSReconnectDelay, &cfg.WebSocket.ReconnectBaseDelay)
	if e.integer(EnvWSMaxReconnects, &cfg.WebSocket.MaxReconnectAttempts) && cfg.WebSocket.MaxReconnectAttempts == 0 {
		cfg.WebSocket.DisableReconnect = true
	}

	e.duration(EnvOrderFallbackDelay, &cfg.Orders.FallbackDelay)
	e.duration(EnvOrderPollInterval, &cfg.Orders.PollInterval)
	e.duration(EnvOrderTimeout, &cfg.Orders.DefaultTimeout)
	e.str(EnvOrderUnknownStatus, &cfg.Orders.UnknownStatus)

	e.str(EnvLogLevel, &cfg.Logging.Level)
	e.str(EnvLogFormat, &cfg.Logging.Format)

	e.boolean(EnvMetricsEnabled, &cfg.Metrics.Enabled)
	e.integer(EnvMetricsPort, &cfg.Metrics.Port)

	return errors.Join(e.errs...)
}

type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) bool {
	v, ok := e.get(key)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return false
	}
	*dst = n
	return true
}

func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

// duration accepts Go duration strings or a bare integer of milliseconds. It
// reports whether dst was set.
func (e *envReader) duration(key string, dst *time.Duration) bool {
	v, ok := e.get(key)
	if !ok {
		return false
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return true
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return false
	}
	*dst = d
	return true
}
