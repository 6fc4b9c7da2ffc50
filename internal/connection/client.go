package connection

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/tradeapi/internal/metrics"
	"github.com/rickgao/tradeapi/internal/version"
)

// client is a single WebSocket connection. Inbound text frames are delivered
// in arrival order on Messages, which is closed when the connection ends;
// Err then reports why.
type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *websocket.Conn

	messages chan []byte
	pong     chan struct{}
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu     sync.Mutex
	closed bool
	err    error
}

// dial establishes the WebSocket connection and starts reading.
func dial(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("User-Agent", version.UserAgent())

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, err
	}

	c := &client{
		cfg:      cfg,
		logger:   logger,
		conn:     conn,
		messages: make(chan []byte, cfg.BufferSize),
		pong:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(cfg.WriteTimeout),
		)
	})

	// Server responds to our ping
	conn.SetPongHandler(func(string) error {
		select {
		case c.pong <- struct{}{}:
		default:
		}
		return nil
	})

	go c.readLoop()

	c.logger.Debug("websocket connected", "url", cfg.URL)

	return c, nil
}

// Messages returns the inbound frame channel.
func (c *client) Messages() <-chan []byte {
	return c.messages
}

// Err returns the reason the connection ended, or nil while it is alive.
func (c *client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Send writes a text frame.
func (c *client) Send(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close gracefully closes the connection.
func (c *client) Close() error {
	if !c.markClosed(ErrAlreadyClosed) {
		return nil
	}

	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}

// terminate drops the connection without a close handshake.
func (c *client) terminate(cause error) {
	if c.markClosed(cause) {
		c.conn.Close()
	}
}

// markClosed records cause and reports whether this call closed the client.
func (c *client) markClosed(cause error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	if c.err == nil {
		c.err = cause
	}
	close(c.done)
	return true
}

// readLoop reads frames until the connection fails or is closed.
func (c *client) readLoop() {
	defer close(c.messages)

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.terminate(err)
			return
		}

		if msgType != websocket.TextMessage {
			metrics.WSFrames.WithLabelValues("binary").Inc()
			continue
		}

		select {
		case c.messages <- data:
		case <-c.done:
			return
		}
	}
}

// heartbeat pings every interval and terminates the connection when a pong
// does not arrive within timeout. It returns when the connection ends.
func (c *client) heartbeat(interval, timeout time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pongTimer := time.NewTimer(timeout)
	pongTimer.Stop()
	defer pongTimer.Stop()

	awaiting := false
	for {
		select {
		case <-c.done:
			return

		case <-c.pong:
			if awaiting {
				awaiting = false
				pongTimer.Stop()
			}

		case <-ticker.C:
			if awaiting {
				continue
			}
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				continue
			}
			awaiting = true
			pongTimer.Reset(timeout)

		case <-pongTimer.C:
			if !awaiting {
				continue
			}
			c.logger.Warn("no pong received, terminating connection", "timeout", timeout)
			metrics.WSHeartbeatTimeouts.Inc()
			c.terminate(ErrHeartbeatTimeout)
			return
		}
	}
}
