package connection

import (
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rickgao/tradeapi/internal/events"
	"github.com/rickgao/tradeapi/internal/model"
)

// Errors
var (
	ErrNotConnected     = errors.New("websocket not connected")
	ErrMaxReconnects    = errors.New("maximum reconnection attempts exceeded")
	ErrHeartbeatTimeout = errors.New("heartbeat timeout (no pong)")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrConnectPending   = errors.New("connect already in progress")
)

// AuthError reports a rejected or unanswered Authenticate operation.
type AuthError struct {
	Code    int
	Message string
	Timeout bool
}

func (e *AuthError) Error() string {
	if e.Timeout {
		return "websocket authentication timed out: " + e.Message
	}
	if e.Code != 0 {
		return fmt.Sprintf("websocket authentication failed (%d): %s", e.Code, e.Message)
	}
	return "websocket authentication failed: " + e.Message
}

// State is the lifecycle state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateAuthenticated
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateAuthenticated:
		return "authenticated"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Operations understood by the server.
const (
	OpAuthenticate = "Authenticate"
	OpSubscribe    = "Subscribe"
	OpUnsubscribe  = "Unsubscribe"
)

// Frame is an outbound operation.
type Frame struct {
	ID        string `json:"id"`
	Operation string `json:"operation"`
	Data      any    `json:"data"`
}

// SubscribeData is the payload of a Subscribe operation.
type SubscribeData struct {
	Topics   []string `json:"topics"`
	Snapshot bool     `json:"snapshot"`
}

// UnsubscribeData is the payload of an Unsubscribe operation.
type UnsubscribeData struct {
	Topics []string `json:"topics"`
}

// inboundFrame covers both inbound shapes: an authentication response or a
// data envelope.
type inboundFrame struct {
	ID           string          `json:"id"`
	Operation    string          `json:"operation"`
	Type         string          `json:"type"`
	Success      *bool           `json:"success"`
	ErrorCode    *int            `json:"errorCode"`
	ErrorMessage string          `json:"errorMessage"`
	Messages     json.RawMessage `json:"messages"`
}

func (f *inboundFrame) isAuthResponse() bool {
	return f.Operation == OpAuthenticate || f.Type == OpAuthenticate
}

func (f *inboundFrame) authFailure() *AuthError {
	if f.ErrorCode != nil && *f.ErrorCode != 0 {
		return &AuthError{Code: *f.ErrorCode, Message: f.ErrorMessage}
	}
	if f.Success != nil && !*f.Success {
		msg := f.ErrorMessage
		if msg == "" {
			msg = "rejected by server"
		}
		return &AuthError{Message: msg}
	}
	return nil
}

// CloseEvent describes a closed socket.
type CloseEvent struct {
	Code   int
	Reason string
}

// ReconnectEvent is emitted before each reconnection wait.
type ReconnectEvent struct {
	Attempt int
	Delay   time.Duration
}

// Event names
const (
	EventOpen          events.Name = "open"
	EventClose         events.Name = "close"
	EventError         events.Name = "error"
	EventAuthenticated events.Name = "authenticated"
	EventRate          events.Name = "rate"
	EventPrivate       events.Name = "private"
	EventMessage       events.Name = "message"
	EventReconnecting  events.Name = "reconnecting"
	EventReconnected   events.Name = "reconnected"
)

// Events are the emitters a Session publishes to. Handlers run on the
// session's read goroutine in frame arrival order and must not block.
type Events struct {
	Open          *events.Emitter[struct{}]
	Close         *events.Emitter[CloseEvent]
	Error         *events.Emitter[error]
	Authenticated *events.Emitter[struct{}]
	Rate          *events.Emitter[model.Rate]
	Private       *events.Emitter[model.PrivateEvent]
	Message       *events.Emitter[json.RawMessage]
	Reconnecting  *events.Emitter[ReconnectEvent]
	Reconnected   *events.Emitter[struct{}]
}

func newEvents() *Events {
	return &Events{
		Open:          events.NewEmitter[struct{}](EventOpen),
		Close:         events.NewEmitter[CloseEvent](EventClose),
		Error:         events.NewEmitter[error](EventError),
		Authenticated: events.NewEmitter[struct{}](EventAuthenticated),
		Rate:          events.NewEmitter[model.Rate](EventRate),
		Private:       events.NewEmitter[model.PrivateEvent](EventPrivate),
		Message:       events.NewEmitter[json.RawMessage](EventMessage),
		Reconnecting:  events.NewEmitter[ReconnectEvent](EventReconnecting),
		Reconnected:   events.NewEmitter[struct{}](EventReconnected),
	}
}

// ClientConfig configures a single WebSocket connection.
type ClientConfig struct {
	URL              string        // WebSocket URL
	HandshakeTimeout time.Duration // Dial and upgrade deadline
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Inbound frame buffer
}

// Config configures a Session.
type Config struct {
	URL                  string
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration
	AuthTimeout          time.Duration // Max wait for the Authenticate response
	PingInterval         time.Duration // 0 disables the heartbeat
	PongTimeout          time.Duration // Max wait for a pong after each ping
	ReconnectBaseDelay   time.Duration // Wait before the first reconnect, doubled per attempt
	MaxReconnectAttempts int           // 0 disables reconnection
	BufferSize           int           // Inbound frame buffer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         5 * time.Second,
		AuthTimeout:          10 * time.Second,
		PingInterval:         30 * time.Second,
		PongTimeout:          10 * time.Second,
		ReconnectBaseDelay:   time.Second,
		MaxReconnectAttempts: 10,
		BufferSize:           1024,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = def.AuthTimeout
	}
	if c.PingInterval < 0 {
		c.PingInterval = 0
	}
	if c.PingInterval > 0 && c.PongTimeout <= 0 {
		c.PongTimeout = def.PongTimeout
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 0
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	return c
}

func (c Config) clientConfig() ClientConfig {
	return ClientConfig{
		URL:              c.URL,
		HandshakeTimeout: c.HandshakeTimeout,
		WriteTimeout:     c.WriteTimeout,
		BufferSize:       c.BufferSize,
	}
}
