package orders

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/tradeapi/internal/connection"
	"github.com/rickgao/tradeapi/internal/metrics"
	"github.com/rickgao/tradeapi/internal/model"
	"github.com/rickgao/tradeapi/internal/poller"
	"github.com/rickgao/tradeapi/internal/router"
)

// Feed is the WebSocket side of order tracking.
type Feed interface {
	IsConnected() bool
	HasTopic(topic string) bool
	Subscribe(topics []string, snapshot bool) error
	OnPrivate(fn func(model.PrivateEvent)) (off func())
}

// StatusFetcher is the REST side of order tracking.
type StatusFetcher = poller.StatusSource

// UnknownStatusPolicy decides what a status outside the known set means.
type UnknownStatusPolicy int

const (
	// KeepWaiting treats unknown statuses as in progress and logs a warning.
	KeepWaiting UnknownStatusPolicy = iota
	// FailOnUnknown settles the wait with an *OrderError.
	FailOnUnknown
)

// Config holds tracker configuration.
type Config struct {
	FallbackDelay  time.Duration // REST poll starts after min(FallbackDelay, timeout/2)
	PollInterval   time.Duration // Interval between REST polls
	RequestTimeout time.Duration // Per-request timeout for REST polls
	DefaultTimeout time.Duration // Used when WaitForOrder gets a zero timeout
	UnknownStatus  UnknownStatusPolicy
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FallbackDelay:  3 * time.Second,
		PollInterval:   time.Second,
		RequestTimeout: 5 * time.Second,
		DefaultTimeout: 30 * time.Second,
		UnknownStatus:  KeepWaiting,
	}
}

// Tracker waits for orders to complete.
type Tracker struct {
	cfg     Config
	feed    Feed
	fetcher StatusFetcher
	logger  *slog.Logger
}

// NewTracker creates a new Tracker. fetcher may be nil to disable the REST
// fallback.
func NewTracker(feed Feed, fetcher StatusFetcher, cfg Config, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = def.FallbackDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = def.DefaultTimeout
	}

	return &Tracker{
		cfg:     cfg,
		feed:    feed,
		fetcher: fetcher,
		logger:  logger.With("component", "orders"),
	}
}

// settlement is the single-assignment result of one wait. The first settle
// call wins; later calls are no-ops.
type settlement struct {
	once   sync.Once
	done   chan struct{}
	event  model.PrivateEvent
	err    error
	source string
}

func newSettlement() *settlement {
	return &settlement{done: make(chan struct{})}
}

func (s *settlement) settle(ev model.PrivateEvent, err error, source string) bool {
	won := false
	s.once.Do(func() {
		s.event, s.err, s.source = ev, err, source
		close(s.done)
		won = true
	})
	return won
}

// WaitForOrder blocks until orderID reaches a terminal status, the timeout
// elapses or ctx is done. It fails immediately with
// connection.ErrNotConnected when the feed is down.
//
// Executed resolves with the event. Failed and Cancelled return an
// *OrderError carrying the server's reason. Running out of time returns a
// *TimeoutError.
func (t *Tracker) WaitForOrder(ctx context.Context, orderID int64, timeout time.Duration) (model.PrivateEvent, error) {
	if !t.feed.IsConnected() {
		return model.PrivateEvent{}, connection.ErrNotConnected
	}
	if timeout <= 0 {
		timeout = t.cfg.DefaultTimeout
	}

	if !t.feed.HasTopic(router.TopicPrivate) {
		if err := t.feed.Subscribe([]string{router.TopicPrivate}, false); err != nil {
			return model.PrivateEvent{}, err
		}
	}

	start := time.Now()
	cell := newSettlement()
	logger := t.logger.With("order_id", orderID)

	off := t.feed.OnPrivate(func(ev model.PrivateEvent) {
		if ev.OrderID != orderID {
			return
		}
		t.evaluate(cell, ev, "ws", logger)
	})
	defer off()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if t.fetcher != nil {
		delay := min(t.cfg.FallbackDelay, timeout/2)
		fallback := time.AfterFunc(delay, func() {
			logger.Debug("starting REST fallback", "after", delay)
			p := poller.New(
				poller.Config{Interval: t.cfg.PollInterval, Timeout: t.cfg.RequestTimeout},
				t.fetcher,
				orderID,
				poller.StatusHandlerFunc(func(ev model.PrivateEvent) bool {
					return t.evaluate(cell, ev, "rest", logger)
				}),
				logger,
			)
			p.Run(waitCtx)
		})
		defer fallback.Stop()
	}

	select {
	case <-cell.done:
	case <-waitCtx.Done():
		if err := ctx.Err(); err != nil {
			cell.settle(model.PrivateEvent{}, err, "context")
		} else {
			cell.settle(model.PrivateEvent{}, &TimeoutError{
				OrderID: orderID,
				Budget:  timeout,
				Elapsed: time.Since(start),
			}, "timeout")
		}
	}

	elapsed := time.Since(start)
	metrics.OrderWaits.WithLabelValues(outcome(cell), cell.source).Inc()
	metrics.OrderWaitDuration.Observe(elapsed.Seconds())

	if cell.err != nil {
		logger.Info("order wait failed", "source", cell.source, "elapsed", elapsed, "error", cell.err)
	} else {
		logger.Info("order executed", "source", cell.source, "elapsed", elapsed)
	}

	return cell.event, cell.err
}

// evaluate settles cell if ev is terminal and reports whether the wait is
// over.
func (t *Tracker) evaluate(cell *settlement, ev model.PrivateEvent, source string, logger *slog.Logger) bool {
	switch {
	case ev.StatusID == model.StatusExecuted:
		cell.settle(ev, nil, source)
		return true

	case ev.StatusID == model.StatusFailed, ev.StatusID == model.StatusCancelled:
		cell.settle(ev, orderError(ev), source)
		return true

	case ev.StatusID.IsInProgress():
		logger.Debug("order in progress", "status", ev.StatusID, "source", source)
		return false
	}

	if t.cfg.UnknownStatus == FailOnUnknown {
		cell.settle(ev, orderError(ev), source)
		return true
	}

	logger.Warn("unknown order status, still waiting", "status", int(ev.StatusID), "source", source)
	return false
}

func orderError(ev model.PrivateEvent) *OrderError {
	return &OrderError{
		OrderID: ev.OrderID,
		Status:  ev.StatusID,
		Code:    ev.ErrorCode,
		Reason:  ev.Reason(),
	}
}

func outcome(cell *settlement) string {
	switch cell.err.(type) {
	case nil:
		return "executed"
	case *OrderError:
		return "rejected"
	case *TimeoutError:
		return "timeout"
	}
	return "cancelled"
}
