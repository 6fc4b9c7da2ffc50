package orders

import (
	"fmt"
	"time"

	"github.com/rickgao/tradeapi/internal/model"
)

// OrderError reports an order that ended Failed or Cancelled, or reached a
// status the tracker was configured not to accept.
type OrderError struct {
	OrderID int64
	Status  model.OrderStatus
	Code    *int
	Reason  string
}

func (e *OrderError) Error() string {
	msg := fmt.Sprintf("order %d %s", e.OrderID, verb(e.Status))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Code != nil {
		msg += fmt.Sprintf(" (code %d)", *e.Code)
	}
	return msg
}

func verb(s model.OrderStatus) string {
	switch s {
	case model.StatusFailed:
		return "failed"
	case model.StatusCancelled:
		return "was cancelled"
	}
	return "ended in status " + s.String()
}

// TimeoutError is returned when no terminal status arrived within the wait
// budget.
type TimeoutError struct {
	OrderID int64
	Budget  time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Timeout waiting for order %d after %s", e.OrderID, e.Budget)
}

// Timeout reports true so callers can treat it like a net.Error timeout.
func (e *TimeoutError) Timeout() bool {
	return true
}
