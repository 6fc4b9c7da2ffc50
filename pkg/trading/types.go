package trading

import (
	"github.com/rickgao/tradeapi/internal/api"
	"github.com/rickgao/tradeapi/internal/config"
	"github.com/rickgao/tradeapi/internal/connection"
	"github.com/rickgao/tradeapi/internal/model"
	"github.com/rickgao/tradeapi/internal/orders"
)

// Domain types.
type (
	Config              = config.Config
	Rate                = model.Rate
	PrivateEvent        = model.PrivateEvent
	OrderStatus         = model.OrderStatus
	Events              = connection.Events
	CloseEvent          = connection.CloseEvent
	ReconnectEvent      = connection.ReconnectEvent
	State               = connection.State
	Position            = api.Position
	OrderResponse       = api.OrderResponse
	OrderStatusResponse = api.OrderStatusResponse
	MarketOrderRequest  = api.MarketOrderRequest
)

// Errors.
type (
	AuthError        = api.AuthError
	RateLimitError   = api.RateLimitError
	APIError         = api.APIError
	NetworkError     = api.NetworkError
	ValidationError  = api.ValidationError
	SessionAuthError = connection.AuthError
	OrderError       = orders.OrderError
	TimeoutError     = orders.TimeoutError
)

// Order statuses.
const (
	StatusPending   = model.StatusPending
	StatusExecuted  = model.StatusExecuted
	StatusFailed    = model.StatusFailed
	StatusCancelled = model.StatusCancelled
	StatusFilling   = model.StatusFilling
)

var (
	ErrNotConnected  = connection.ErrNotConnected
	ErrMaxReconnects = connection.ErrMaxReconnects
)
