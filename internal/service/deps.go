package service

import (
	"context"
	"time"

	"seafood-order-service/internal/models"
	"seafood-order-service/internal/store"
)

// TxManager opens the transaction scope order writes run in
type TxManager interface {
	WithinTx(ctx context.Context, fn func(tx store.Tx) error) error
}

// Catalog reads product records
type Catalog interface {
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
}

// OrderRepository covers the read side and the admin reset
type OrderRepository interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	ListOrders(ctx context.Context, limit int) ([]models.OrderSummary, error)
	GetOrderItemDetails(ctx context.Context, orderID int64) ([]models.OrderItemDetail, error)
	DeleteAllOrders(ctx context.Context) (int64, error)
	RevenueByDay(ctx context.Context, since time.Time) ([]models.DailyRevenue, error)
}

// EventPublisher emits order domain events after commit
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrdersPurged(ctx context.Context, event *models.OrdersPurgedEvent) error
	PublishLowStock(ctx context.Context, event *models.LowStockEvent) error
}

// IdempotencyStore remembers which order a client retry key produced
type IdempotencyStore interface {
	// ClaimIdempotencyKey marks key as in flight. When the key is already
	// taken, claimed is false and orderID is the committed order (0 while
	// the first attempt is still running).
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (claimed bool, orderID int64, err error)
	CompleteIdempotencyKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// RevenueCache caches the revenue series per window and day
type RevenueCache interface {
	GetRevenue(ctx context.Context, key string) ([]models.DailyRevenue, bool, error)
	SetRevenue(ctx context.Context, key string, series []models.DailyRevenue, ttl time.Duration) error
}
