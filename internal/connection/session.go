package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/rickgao/tradeapi/internal/auth"
	"github.com/rickgao/tradeapi/internal/metrics"
	"github.com/rickgao/tradeapi/internal/model"
	"github.com/rickgao/tradeapi/internal/router"
)

// Session is an authenticated WebSocket session with automatic reconnection.
type Session struct {
	cfg    Config
	creds  *auth.Credentials
	logger *slog.Logger
	events *Events

	wg conc.WaitGroup

	// Malformed frame logging is sampled; the metric counts every drop.
	malformed rate.Sometimes

	mu                sync.Mutex
	state             State
	client            *client
	topics            map[string]struct{}
	authenticated     bool
	everAuthenticated bool
	intentional       bool
	authCh            chan error
	reconnectAttempt  int
	reconnectTimer    *time.Timer
	reconnectCancel   context.CancelFunc
}

// NewSession creates a disconnected session.
func NewSession(cfg Config, creds *auth.Credentials, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		cfg:       cfg.withDefaults(),
		creds:     creds,
		logger:    logger.With("component", "session"),
		events:    newEvents(),
		malformed: rate.Sometimes{First: 3, Interval: 10 * time.Second},
		topics:    make(map[string]struct{}),
	}
}

// Events returns the session's event emitters.
func (s *Session) Events() *Events {
	return s.events
}

// OnPrivate registers fn for private order events.
func (s *Session) OnPrivate(fn func(model.PrivateEvent)) (off func()) {
	return s.events.Private.On(fn)
}

// Connect dials and authenticates. It does not retry: a failed attempt
// leaves the session disconnected and returns the cause, an *AuthError when
// the server rejected or ignored the Authenticate operation.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateAuthenticated:
		s.mu.Unlock()
		return nil
	case StateConnecting, StateOpen, StateReconnecting:
		s.mu.Unlock()
		return ErrConnectPending
	}
	s.state = StateConnecting
	s.intentional = false
	s.reconnectAttempt = 0
	s.mu.Unlock()

	if err := s.connectOnce(ctx); err != nil {
		s.mu.Lock()
		if s.state != StateAuthenticated {
			s.state = StateDisconnected
		}
		s.mu.Unlock()
		return err
	}

	s.logger.Info("websocket session authenticated", "url", s.cfg.URL)
	return nil
}

// connectOnce dials, authenticates and starts the heartbeat.
func (s *Session) connectOnce(ctx context.Context) error {
	cl, err := dial(ctx, s.cfg.clientConfig(), s.logger)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}

	authCh := make(chan error, 1)

	s.mu.Lock()
	if s.intentional {
		s.mu.Unlock()
		cl.Close()
		return ErrAlreadyClosed
	}
	s.client = cl
	s.state = StateOpen
	s.authCh = authCh
	s.mu.Unlock()

	s.events.Open.Emit(struct{}{})
	s.wg.Go(func() { s.readLoop(cl) })

	frame := Frame{ID: uuid.NewString(), Operation: OpAuthenticate, Data: s.creds.WebSocketData()}
	if err := s.send(cl, frame); err != nil {
		s.abort(cl)
		return fmt.Errorf("send authenticate: %w", err)
	}

	timer := time.NewTimer(s.cfg.AuthTimeout)
	defer timer.Stop()

	select {
	case err := <-authCh:
		if err != nil {
			s.abort(cl)
			return err
		}
	case <-timer.C:
		s.abort(cl)
		return &AuthError{Timeout: true, Message: fmt.Sprintf("no response within %s", s.cfg.AuthTimeout)}
	case <-ctx.Done():
		s.abort(cl)
		return ctx.Err()
	}

	// A socket that drops right after authenticating is already on the
	// reconnect path, so the attempt still counts as a success.
	metrics.WSConnected.Set(1)
	s.wg.Go(func() { cl.heartbeat(s.cfg.PingInterval, s.cfg.PongTimeout) })

	return nil
}

// abort drops a connection that never finished authenticating.
func (s *Session) abort(cl *client) {
	s.mu.Lock()
	if s.client == cl {
		s.client = nil
		s.authenticated = false
		s.authCh = nil
	}
	s.mu.Unlock()
	cl.Close()
}

// Disconnect closes the session. Any scheduled reconnect is cancelled, the
// subscription set is cleared and the session must be connected again
// before use.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	s.intentional = true
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	if s.reconnectCancel != nil {
		s.reconnectCancel()
		s.reconnectCancel = nil
	}
	cl := s.client
	s.client = nil
	s.topics = make(map[string]struct{})
	s.authenticated = false
	s.state = StateDisconnected
	if s.authCh != nil {
		s.authCh <- ErrAlreadyClosed
		s.authCh = nil
	}
	s.mu.Unlock()

	metrics.WSConnected.Set(0)

	if cl == nil {
		return nil
	}

	err := cl.Close()
	s.events.Close.Emit(CloseEvent{Code: websocket.CloseNormalClosure, Reason: "client disconnect"})
	s.logger.Info("websocket session disconnected")
	return err
}

// Wait blocks until the session's goroutines have exited. Call it after
// Disconnect, never from an event handler.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Subscribe adds topics to the subscription set and sends a Subscribe
// operation. It fails with ErrNotConnected when no socket is open.
func (s *Session) Subscribe(topics []string, snapshot bool) error {
	if len(topics) == 0 {
		return nil
	}

	s.mu.Lock()
	cl := s.client
	if cl == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	for _, t := range topics {
		s.topics[t] = struct{}{}
	}
	s.mu.Unlock()

	frame := Frame{
		ID:        uuid.NewString(),
		Operation: OpSubscribe,
		Data:      SubscribeData{Topics: topics, Snapshot: snapshot},
	}
	if err := s.send(cl, frame); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	s.logger.Debug("subscribed", "topics", topics, "snapshot", snapshot)
	return nil
}

// Unsubscribe removes topics from the subscription set and sends an
// Unsubscribe operation. It fails with ErrNotConnected when no socket is
// open.
func (s *Session) Unsubscribe(topics []string) error {
	if len(topics) == 0 {
		return nil
	}

	s.mu.Lock()
	cl := s.client
	if cl == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	for _, t := range topics {
		delete(s.topics, t)
	}
	s.mu.Unlock()

	frame := Frame{
		ID:        uuid.NewString(),
		Operation: OpUnsubscribe,
		Data:      UnsubscribeData{Topics: topics},
	}
	if err := s.send(cl, frame); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}

	s.logger.Debug("unsubscribed", "topics", topics)
	return nil
}

// IsConnected reports whether a socket is open.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// IsAuthenticated reports whether the open socket has authenticated.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Topics returns the subscription set in sorted order.
func (s *Session) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topicsLocked()
}

// HasTopic reports whether topic is in the subscription set.
func (s *Session) HasTopic(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.topics[topic]
	return ok
}

func (s *Session) topicsLocked() []string {
	topics := make([]string, 0, len(s.topics))
	for t := range s.topics {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

func (s *Session) send(cl *client, frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", frame.Operation, err)
	}
	return cl.Send(data)
}

// readLoop processes frames from cl strictly in arrival order.
func (s *Session) readLoop(cl *client) {
	for data := range cl.Messages() {
		s.handleFrame(cl, data)
	}
	s.handleClosed(cl, cl.Err())
}

func (s *Session) handleFrame(cl *client, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.dropFrame(data, err)
		return
	}

	switch {
	case frame.isAuthResponse():
		metrics.WSFrames.WithLabelValues("auth").Inc()
		s.handleAuth(cl, &frame)

	case len(frame.Messages) > 0 && string(frame.Messages) != "null":
		env, err := router.ParseFrame(data)
		if err != nil {
			s.dropFrame(data, err)
			return
		}
		metrics.WSFrames.WithLabelValues("envelope").Inc()
		s.events.Message.Emit(json.RawMessage(data))
		s.dispatch(env)

	default:
		metrics.WSFrames.WithLabelValues("other").Inc()
		s.logger.Debug("ignoring frame", "operation", frame.Operation, "type", frame.Type)
	}
}

func (s *Session) dropFrame(data []byte, err error) {
	metrics.WSFrames.WithLabelValues("malformed").Inc()
	s.malformed.Do(func() {
		s.logger.Warn("dropping malformed frame", "error", err, "size", len(data))
	})
}

func (s *Session) handleAuth(cl *client, frame *inboundFrame) {
	failure := frame.authFailure()

	s.mu.Lock()
	if s.client != cl {
		s.mu.Unlock()
		return
	}
	ch := s.authCh
	s.authCh = nil
	s.authenticated = failure == nil
	if failure == nil {
		s.state = StateAuthenticated
		s.everAuthenticated = true
	}
	s.mu.Unlock()

	if failure != nil {
		s.logger.Warn("websocket authentication rejected", "code", failure.Code, "message", failure.Message)
		s.events.Error.Emit(failure)
	} else {
		s.events.Authenticated.Emit(struct{}{})
	}

	if ch != nil {
		if failure != nil {
			ch <- failure
		} else {
			ch <- nil
		}
	}
}

// dispatch fans an envelope out into typed events. Bad entries are logged
// and skipped.
func (s *Session) dispatch(env router.Envelope) {
	evs, err := router.Parse(env)
	if err != nil {
		metrics.WSFrames.WithLabelValues("invalid_entry").Inc()
		s.malformed.Do(func() {
			s.logger.Warn("skipping invalid envelope entries", "error", err)
		})
	}

	for _, ev := range evs {
		switch ev.Kind {
		case router.KindRate:
			s.events.Rate.Emit(ev.Rate)
		case router.KindPrivate:
			s.events.Private.Emit(ev.Private)
		default:
			s.logger.Debug("unhandled topic", "topic", ev.Topic)
		}
	}
}

// handleClosed runs once per connection after its last frame.
func (s *Session) handleClosed(cl *client, cause error) {
	s.mu.Lock()
	if s.client != cl {
		// Disconnected or aborted; whoever dropped it owns the cleanup.
		s.mu.Unlock()
		return
	}
	s.client = nil
	s.authenticated = false
	if s.authCh != nil {
		s.authCh <- fmt.Errorf("connection closed before authentication: %w", cause)
		s.authCh = nil
	}
	reconnect := !s.intentional && s.everAuthenticated && s.state == StateAuthenticated
	if !reconnect {
		s.state = StateClosed
	}
	s.mu.Unlock()

	metrics.WSConnected.Set(0)

	code, reason := closeInfo(cause)
	s.logger.Warn("websocket closed unexpectedly", "code", code, "reason", reason)
	s.events.Close.Emit(CloseEvent{Code: code, Reason: reason})

	if reconnect {
		s.scheduleReconnect()
	}
}

// scheduleReconnect arms the timer for the next attempt, or gives up once
// MaxReconnectAttempts have been made.
func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	if s.intentional {
		s.mu.Unlock()
		return
	}

	attempt := s.reconnectAttempt
	if attempt >= s.cfg.MaxReconnectAttempts {
		s.state = StateClosed
		s.mu.Unlock()

		metrics.WSReconnects.WithLabelValues("exhausted").Inc()
		s.logger.Error("giving up reconnecting", "attempts", attempt)
		s.events.Error.Emit(fmt.Errorf("%w after %d attempts", ErrMaxReconnects, attempt))
		return
	}

	delay := backoffDelay(s.cfg.ReconnectBaseDelay, attempt)
	s.reconnectAttempt++
	s.state = StateReconnecting
	s.reconnectTimer = time.AfterFunc(delay, s.reconnect)
	s.mu.Unlock()

	s.logger.Info("scheduling reconnection", "attempt", attempt+1, "delay", delay)
	s.events.Reconnecting.Emit(ReconnectEvent{Attempt: attempt + 1, Delay: delay})
}

// reconnect runs on the reconnect timer.
func (s *Session) reconnect() {
	s.mu.Lock()
	if s.intentional || s.state != StateReconnecting {
		s.mu.Unlock()
		return
	}
	s.reconnectTimer = nil
	s.state = StateConnecting
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HandshakeTimeout+s.cfg.AuthTimeout)
	s.reconnectCancel = cancel
	s.mu.Unlock()

	err := s.connectOnce(ctx)

	s.mu.Lock()
	s.reconnectCancel = nil
	s.mu.Unlock()
	cancel()

	if err != nil {
		metrics.WSReconnects.WithLabelValues("failure").Inc()
		s.logger.Warn("reconnection failed", "error", err)

		s.mu.Lock()
		retry := !s.intentional
		if retry {
			s.state = StateReconnecting
		}
		s.mu.Unlock()
		if retry {
			s.scheduleReconnect()
		}
		return
	}

	s.mu.Lock()
	s.reconnectAttempt = 0
	topics := s.topicsLocked()
	s.mu.Unlock()

	if len(topics) > 0 {
		if err := s.Subscribe(topics, false); err != nil {
			s.logger.Warn("resubscribe failed", "topics", len(topics), "error", err)
			s.events.Error.Emit(err)
		}
	}

	metrics.WSReconnects.WithLabelValues("success").Inc()
	s.logger.Info("reconnected", "topics", len(topics))
	s.events.Reconnected.Emit(struct{}{})
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	return base * time.Duration(1<<attempt)
}

func closeInfo(err error) (int, string) {
	var ce *websocket.CloseError
	switch {
	case errors.As(err, &ce):
		return ce.Code, ce.Text
	case errors.Is(err, ErrHeartbeatTimeout):
		return websocket.CloseAbnormalClosure, ErrHeartbeatTimeout.Error()
	case err != nil:
		return websocket.CloseAbnormalClosure, err.Error()
	}
	return websocket.CloseAbnormalClosure, ""
}
