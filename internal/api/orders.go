package api

import (
	"context"
	"net/http"
	"strconv"
)

// GetOrderStatus fetches the current status of an order.
func (c *Client) GetOrderStatus(ctx context.Context, orderID int64) (*OrderStatusResponse, error) {
	if orderID <= 0 {
		return nil, &ValidationError{Field: "orderID", Message: "must be positive"}
	}

	var resp OrderStatusResponse
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/trading/orders/" + strconv.FormatInt(orderID, 10),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.OrderID == 0 {
		resp.OrderID = orderID
	}
	return &resp, nil
}

// PlaceMarketOrder opens a market order. The correlation id is reused across
// retries so the server can discard duplicates.
func (c *Client) PlaceMarketOrder(ctx context.Context, order MarketOrderRequest) (*OrderResponse, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if order.Leverage == 0 {
		order.Leverage = 1
	}

	var resp OrderResponse
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/trading/orders/market",
		Body:   order,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelOrder cancels an order that has not executed yet.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	if orderID <= 0 {
		return &ValidationError{Field: "orderID", Message: "must be positive"}
	}

	return c.Do(ctx, Request{
		Method: http.MethodDelete,
		Path:   "/trading/orders/" + strconv.FormatInt(orderID, 10),
	}, nil)
}
