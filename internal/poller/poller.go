package poller

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rickgao/tradeapi/internal/api"
	"github.com/rickgao/tradeapi/internal/model"
)

// StatusSource fetches an order's current status.
type StatusSource interface {
	GetOrderStatus(ctx context.Context, orderID int64) (*api.OrderStatusResponse, error)
}

// StatusHandler receives fetched statuses.
type StatusHandler interface {
	// HandleStatus returns true once no further polls are needed.
	HandleStatus(ev model.PrivateEvent) bool
}

// StatusHandlerFunc is a function adapter for StatusHandler.
type StatusHandlerFunc func(model.PrivateEvent) bool

func (f StatusHandlerFunc) HandleStatus(ev model.PrivateEvent) bool {
	return f(ev)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 1s)
	Timeout  time.Duration // Per-request timeout (default: 5s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
		Timeout:  5 * time.Second,
	}
}

// Poller polls the status of a single order.
type Poller struct {
	cfg     Config
	source  StatusSource
	orderID int64
	handler StatusHandler
	logger  *slog.Logger

	polls  atomic.Int64
	errors atomic.Int64
}

// New creates a new Poller.
func New(cfg Config, source StatusSource, orderID int64, handler StatusHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		orderID: orderID,
		handler: handler,
		logger:  logger.With("order_id", orderID),
	}
}

// Run polls immediately and then every Interval until the handler reports
// completion (nil) or ctx is done (ctx.Err()).
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if p.pollOnce(ctx) {
			return nil
		}

		select {
		case <-ctx.Done():
			p.logger.Debug("order poll stopped",
				"polls", p.polls.Load(),
				"errors", p.errors.Load(),
			)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Polls returns the number of fetches made and how many failed.
func (p *Poller) Polls() (total, failed int64) {
	return p.polls.Load(), p.errors.Load()
}

// pollOnce fetches and handles the order status.
func (p *Poller) pollOnce(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	p.polls.Add(1)
	resp, err := p.source.GetOrderStatus(reqCtx, p.orderID)
	if err != nil {
		if ctx.Err() == nil {
			p.errors.Add(1)
			p.logger.Warn("failed to poll order status", "err", err)
		}
		return false
	}

	return p.handler.HandleStatus(resp.Event())
}
