package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced         = "ORDER_PLACED"
	EventTypeOrderStateChanged   = "ORDER_STATE_CHANGED"
	EventTypeOrderPaymentChanged = "ORDER_PAYMENT_CHANGED"
	EventTypeOrderDeleted        = "ORDER_DELETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published after an order and its stock decrements commit
type OrderPlacedEvent struct {
	BaseEvent
	OrderID    int64           `json:"order_id"`
	UserID     int64           `json:"user_id"`
	PaymentID  *int64          `json:"payment_id"`
	Total      decimal.Decimal `json:"total"`
	TotalItems int             `json:"total_items"`
	Items      []OrderItemData `json:"items"`
}

// OrderStateChangedEvent published when an order moves to another state
type OrderStateChangedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	StateID   int64  `json:"state_id"`
	StateName string `json:"state_name"`
}

// OrderPaymentChangedEvent published when an order's payment method changes
type OrderPaymentChangedEvent struct {
	BaseEvent
	OrderID   int64 `json:"order_id"`
	PaymentID int64 `json:"payment_id"`
}

// OrderDeletedEvent published when an order is removed
type OrderDeletedEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Amount    int             `json:"amount"`
	Price     decimal.Decimal `json:"price"`
}
