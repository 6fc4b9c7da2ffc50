package api

import (
	"github.com/shopspring/decimal"

	"github.com/rickgao/tradeapi/internal/model"
)

// MaxRatesBatch is the largest number of instruments GetRates accepts.
const MaxRatesBatch = 100

// OrderStatusResponse from GET /trading/orders/{id}
type OrderStatusResponse struct {
	OrderID      int64             `json:"orderID"`
	StatusID     model.OrderStatus `json:"statusID"`
	InstrumentID int64             `json:"instrumentID"`
	ErrorCode    *int              `json:"errorCode,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Positions    []Position        `json:"positions"`
}

// Position is a position opened by an executed order.
type Position struct {
	PositionID   int64           `json:"positionID"`
	OrderID      int64           `json:"orderID"`
	InstrumentID int64           `json:"instrumentID"`
	IsBuy        bool            `json:"isBuy"`
	Units        decimal.Decimal `json:"units"`
	Rate         decimal.Decimal `json:"rate"`
	Amount       decimal.Decimal `json:"amount"`
}

// Event converts the REST status into the shape delivered on the private
// WebSocket topic, so both paths settle an order wait with the same value.
func (r *OrderStatusResponse) Event() model.PrivateEvent {
	ev := model.PrivateEvent{
		OrderID:      r.OrderID,
		StatusID:     r.StatusID,
		InstrumentID: r.InstrumentID,
		ErrorCode:    r.ErrorCode,
		ErrorMessage: r.ErrorMessage,
	}
	if len(r.Positions) > 0 {
		p := r.Positions[0]
		id := p.PositionID
		ev.PositionID = &id
		ev.ExecutedUnits = p.Units
		ev.Rate = decimal.NewNullDecimal(p.Rate)
		ev.Amount = decimal.NewNullDecimal(p.Amount)
		if ev.InstrumentID == 0 {
			ev.InstrumentID = p.InstrumentID
		}
	}
	return ev
}

// MarketOrderRequest opens a position at the current market rate. Exactly one
// of Amount or Units must be set.
type MarketOrderRequest struct {
	InstrumentID   int64               `json:"instrumentID"`
	IsBuy          bool                `json:"isBuy"`
	Leverage       int                 `json:"leverage"`
	Amount         decimal.NullDecimal `json:"amount"`
	Units          decimal.NullDecimal `json:"units"`
	StopLossRate   decimal.NullDecimal `json:"stopLossRate"`
	TakeProfitRate decimal.NullDecimal `json:"takeProfitRate"`
}

// Validate checks the request before it is sent.
func (r *MarketOrderRequest) Validate() error {
	if r.InstrumentID <= 0 {
		return &ValidationError{Field: "instrumentID", Message: "must be positive"}
	}
	if r.Leverage < 0 {
		return &ValidationError{Field: "leverage", Message: "must not be negative"}
	}
	hasAmount := r.Amount.Valid
	hasUnits := r.Units.Valid
	if hasAmount == hasUnits {
		return &ValidationError{Field: "amount", Message: "exactly one of amount or units is required"}
	}
	if hasAmount && !r.Amount.Decimal.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be positive"}
	}
	if hasUnits && !r.Units.Decimal.IsPositive() {
		return &ValidationError{Field: "units", Message: "must be positive"}
	}
	return nil
}

// OrderResponse from POST /trading/orders/market
type OrderResponse struct {
	OrderID int64  `json:"orderID"`
	Token   string `json:"token,omitempty"`
}

// RatesResponse from GET /market-data/rates
type RatesResponse struct {
	Rates []RateQuote `json:"rates"`
}

// RateQuote is one instrument's current rate.
type RateQuote struct {
	InstrumentID  int64           `json:"instrumentID"`
	Ask           decimal.Decimal `json:"ask"`
	Bid           decimal.Decimal `json:"bid"`
	LastExecution decimal.Decimal `json:"lastExecution"`
	Date          model.Timestamp `json:"date"`
	PriceRateID   string          `json:"priceRateID"`
}

// Rate converts the quote to the model type used by the streaming feed.
func (q RateQuote) Rate() model.Rate {
	return model.Rate{
		InstrumentID:  q.InstrumentID,
		Ask:           q.Ask,
		Bid:           q.Bid,
		LastExecution: q.LastExecution,
		Date:          q.Date,
		PriceRateID:   q.PriceRateID,
	}
}
