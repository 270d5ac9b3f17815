package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced        = "ORDER_PLACED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeOrdersPurged       = "ORDERS_PURGED"
	EventTypeLowStock           = "INVENTORY_LOW_STOCK"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published after an order commits
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published when an admin moves an order
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID int64       `json:"order_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
}

// OrdersPurgedEvent published after the admin reset
type OrdersPurgedEvent struct {
	BaseEvent
	OrdersDeleted int64 `json:"orders_deleted"`
}

// LowStockEvent published when a reservation leaves stock at or under the threshold
type LowStockEvent struct {
	BaseEvent
	ProductID int64           `json:"product_id"`
	Remaining decimal.Decimal `json:"remaining"`
	Threshold decimal.Decimal `json:"threshold"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID       int64           `json:"product_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}
