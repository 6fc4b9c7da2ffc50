package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/tradeapi/internal/api"
	"github.com/rickgao/tradeapi/internal/auth"
	"github.com/rickgao/tradeapi/internal/config"
	"github.com/rickgao/tradeapi/internal/connection"
	"github.com/rickgao/tradeapi/internal/metrics"
	"github.com/rickgao/tradeapi/internal/model"
	"github.com/rickgao/tradeapi/internal/orders"
	"github.com/rickgao/tradeapi/internal/ratelimit"
	"github.com/rickgao/tradeapi/internal/router"
)

// Client is a trading API client: REST calls, the streaming session and
// order tracking share one set of credentials and one rate limiter.
type Client struct {
	cfg    config.Config
	logger *slog.Logger

	limiter *ratelimit.Limiter
	api     *api.Client
	session *connection.Session
	tracker *orders.Tracker
}

// Option configures a Client.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	httpClient *http.Client
}

// WithLogger sets the logger shared by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHTTPClient replaces the REST HTTP client. Its Timeout is used as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// New builds a Client from cfg. Unset fields take their defaults; the
// result must pass config validation. New does not connect.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	creds, err := auth.LoadCredentials(cfg.Auth.APIKey, cfg.Auth.UserKey, cfg.Auth.UserKeyFile)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		logger: o.logger,
	}

	apiOpts := []api.ClientOption{
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.Retry.Attempts, cfg.Retry.Delay),
		api.WithJitter(!cfg.Retry.DisableJitter),
		api.WithLogger(o.logger),
	}
	if o.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(o.httpClient))
	}
	if !cfg.RateLimit.Disabled {
		c.limiter = ratelimit.New(
			ratelimit.Config{MaxRequests: cfg.RateLimit.MaxRequests, Window: cfg.RateLimit.Window},
			ratelimit.WithObserver(func(queued int) {
				metrics.RateLimiterQueue.Set(float64(queued))
			}),
		)
		apiOpts = append(apiOpts, api.WithRateLimiter(c.limiter))
	}
	c.api = api.NewClient(cfg.API.RestURL, creds, apiOpts...)

	c.session = connection.NewSession(sessionConfig(cfg), creds, o.logger)
	c.tracker = orders.NewTracker(c.session, c.api, trackerConfig(cfg), o.logger)

	return c, nil
}

func sessionConfig(cfg config.Config) connection.Config {
	sc := connection.DefaultConfig()
	sc.URL = cfg.API.WSURL
	sc.AuthTimeout = cfg.WebSocket.AuthTimeout
	sc.PingInterval = cfg.WebSocket.HeartbeatInterval()
	sc.PongTimeout = cfg.WebSocket.PongTimeout
	sc.ReconnectBaseDelay = cfg.WebSocket.ReconnectBaseDelay
	sc.MaxReconnectAttempts = cfg.WebSocket.ReconnectAttempts()
	return sc
}

func trackerConfig(cfg config.Config) orders.Config {
	tc := orders.DefaultConfig()
	tc.FallbackDelay = cfg.Orders.FallbackDelay
	tc.PollInterval = cfg.Orders.PollInterval
	tc.DefaultTimeout = cfg.Orders.DefaultTimeout
	if cfg.Orders.UnknownStatus == "fail" {
		tc.UnknownStatus = orders.FailOnUnknown
	}
	return tc
}

// Connect opens and authenticates the streaming session.
func (c *Client) Connect(ctx context.Context) error {
	return c.session.Connect(ctx)
}

// Close disconnects the session, releases requests queued on the rate
// limiter and waits for background goroutines to exit.
func (c *Client) Close() error {
	err := c.session.Disconnect()
	if c.limiter != nil {
		c.limiter.Dispose()
	}
	c.session.Wait()
	return err
}

// Events returns the session's event emitters.
func (c *Client) Events() *Events {
	return c.session.Events()
}

// IsConnected reports whether the session is authenticated.
func (c *Client) IsConnected() bool {
	return c.session.IsConnected()
}

// State returns the session state.
func (c *Client) State() State {
	return c.session.State()
}

// SubscribeInstruments subscribes to live rates for the given instruments.
func (c *Client) SubscribeInstruments(instrumentIDs []int64, snapshot bool) error {
	topics, err := instrumentTopics(instrumentIDs)
	if err != nil {
		return err
	}
	return c.session.Subscribe(topics, snapshot)
}

// UnsubscribeInstruments stops rate updates for the given instruments.
func (c *Client) UnsubscribeInstruments(instrumentIDs []int64) error {
	topics, err := instrumentTopics(instrumentIDs)
	if err != nil {
		return err
	}
	return c.session.Unsubscribe(topics)
}

func instrumentTopics(ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, &ValidationError{Field: "instrumentIDs", Message: "at least one instrument is required"}
	}
	topics := make([]string, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, &ValidationError{Field: "instrumentIDs", Message: fmt.Sprintf("invalid instrument id %d", id)}
		}
		topics = append(topics, router.InstrumentTopic(id))
	}
	return topics, nil
}

// GetRates fetches current rates over REST.
func (c *Client) GetRates(ctx context.Context, instrumentIDs []int64) ([]Rate, error) {
	return c.api.GetRates(ctx, instrumentIDs)
}

// GetOrderStatus fetches an order's status over REST.
func (c *Client) GetOrderStatus(ctx context.Context, orderID int64) (*OrderStatusResponse, error) {
	return c.api.GetOrderStatus(ctx, orderID)
}

// PlaceMarketOrder submits a market order without waiting for execution.
func (c *Client) PlaceMarketOrder(ctx context.Context, order MarketOrderRequest) (*OrderResponse, error) {
	return c.api.PlaceMarketOrder(ctx, order)
}

// CancelOrder cancels a pending order.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	return c.api.CancelOrder(ctx, orderID)
}

// WaitForOrder blocks until orderID executes, fails, is cancelled or the
// timeout elapses. A zero timeout uses the configured default.
func (c *Client) WaitForOrder(ctx context.Context, orderID int64, timeout time.Duration) (PrivateEvent, error) {
	return c.tracker.WaitForOrder(ctx, orderID, timeout)
}

// PlaceMarketOrderAndWait submits a market order and waits for it to settle.
// The session must be connected; otherwise no order is sent.
func (c *Client) PlaceMarketOrderAndWait(ctx context.Context, order MarketOrderRequest, timeout time.Duration) (PrivateEvent, error) {
	if !c.session.IsConnected() {
		return model.PrivateEvent{}, ErrNotConnected
	}
	if !c.session.HasTopic(router.TopicPrivate) {
		if err := c.session.Subscribe([]string{router.TopicPrivate}, false); err != nil {
			return model.PrivateEvent{}, fmt.Errorf("subscribe private: %w", err)
		}
	}

	resp, err := c.api.PlaceMarketOrder(ctx, order)
	if err != nil {
		return model.PrivateEvent{}, err
	}
	if resp.OrderID == 0 {
		return model.PrivateEvent{}, errors.New("order response carried no order id")
	}

	c.logger.Debug("market order placed", "order_id", resp.OrderID, "instrument_id", order.InstrumentID)
	return c.tracker.WaitForOrder(ctx, resp.OrderID, timeout)
}
