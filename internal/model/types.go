package model

import (
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Market Data
// -----------------------------------------------------------------------------

// Rate is a live price update for one instrument.
type Rate struct {
	InstrumentID  int64           `json:"-"`
	Ask           decimal.Decimal `json:"Ask"`
	Bid           decimal.Decimal `json:"Bid"`
	LastExecution decimal.Decimal `json:"LastExecution"`
	Date          Timestamp       `json:"Date"`
	PriceRateID   string          `json:"PriceRateID"`
}

// Spread returns Ask - Bid.
func (r Rate) Spread() decimal.Decimal {
	return r.Ask.Sub(r.Bid)
}

// -----------------------------------------------------------------------------
// Trading Events
// -----------------------------------------------------------------------------

// PrivateEvent is an order or portfolio update delivered on the private topic.
type PrivateEvent struct {
	OrderID         int64           `json:"OrderID"`
	OrderType       int             `json:"OrderType"`
	StatusID        OrderStatus     `json:"StatusID"`
	InstrumentID    int64           `json:"InstrumentID"`
	CID             int64           `json:"CID,omitempty"`
	RequestedUnits  decimal.Decimal `json:"RequestedUnits"`
	ExecutedUnits   decimal.Decimal `json:"ExecutedUnits"`
	NetProfit       decimal.Decimal `json:"NetProfit"`
	CloseReason     string          `json:"CloseReason,omitempty"`
	OpenDateTime    Timestamp       `json:"OpenDateTime"`
	RequestOccurred Timestamp       `json:"RequestOccurred"`

	ErrorCode    *int   `json:"ErrorCode,omitempty"`
	ErrorMessage string `json:"ErrorMessage,omitempty"`

	PositionID *int64              `json:"PositionID,omitempty"`
	Rate       decimal.NullDecimal `json:"Rate"`
	Amount     decimal.NullDecimal `json:"Amount"`
}

// Reason returns the most specific server-supplied explanation for the
// event's status, or "" when none was sent.
func (e PrivateEvent) Reason() string {
	if e.ErrorMessage != "" {
		return e.ErrorMessage
	}
	return e.CloseReason
}
