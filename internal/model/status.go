package model

import "strconv"

// OrderStatus is the server's order status identifier.
type OrderStatus int

const (
	StatusUnknown   OrderStatus = 0
	StatusPending   OrderStatus = 1
	StatusExecuted  OrderStatus = 2
	StatusFailed    OrderStatus = 3
	StatusCancelled OrderStatus = 4
	StatusFilling   OrderStatus = 11
)

var statusNames = map[OrderStatus]string{
	StatusUnknown:   "Unknown",
	StatusPending:   "Pending",
	StatusExecuted:  "Executed",
	StatusFailed:    "Failed",
	StatusCancelled: "Cancelled",
	StatusFilling:   "Filling",
}

func (s OrderStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "OrderStatus(" + strconv.Itoa(int(s)) + ")"
}

// IsKnown reports whether s is one of the enumerated statuses.
func (s OrderStatus) IsKnown() bool {
	_, ok := statusNames[s]
	return ok && s != StatusUnknown
}

// IsTerminal reports whether an order in status s can no longer change.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusExecuted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsInProgress reports whether s is an enumerated non-terminal status.
func (s OrderStatus) IsInProgress() bool {
	return s == StatusPending || s == StatusFilling
}
