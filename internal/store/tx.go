package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"seafood-order-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Tx is the set of writes that must share one transaction scope.
type Tx interface {
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertOrderItem(ctx context.Context, item *models.OrderItem) error
	ReserveStock(ctx context.Context, productID int64, quantity decimal.Decimal) (StockLevel, bool, error)
	ReleaseStock(ctx context.Context, productID int64, quantity decimal.Decimal) error
	GetOrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error
}

// StockLevel is the stock left on a product after a reservation
type StockLevel struct {
	Remaining         decimal.Decimal `db:"stock_quantity"`
	LowStockThreshold decimal.Decimal `db:"low_stock_threshold"`
}

type sqlTx struct {
	tx *sqlx.Tx
}

// InsertOrder creates the order header and fills in id and created_at
func (t *sqlTx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, total_amount, status, delivery_address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	row := t.tx.QueryRowxContext(ctx, query,
		order.UserID, order.TotalAmount, order.Status, order.DeliveryAddress)
	if err := row.Scan(&order.ID, &order.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// InsertOrderItem creates an order item
func (t *sqlTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, price_at_purchase)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	if err := t.tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.PriceAtPurchase); err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	return nil
}

// ReserveStock decrements stock only when enough is available. The UPDATE
// takes the row lock, so concurrent reservations on one product serialize and
// each re-checks the predicate against the committed value. ok is false when
// the stock is insufficient; nothing is changed in that case.
func (t *sqlTx) ReserveStock(ctx context.Context, productID int64, quantity decimal.Decimal) (StockLevel, bool, error) {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity - $1
		WHERE id = $2 AND stock_quantity >= $1
		RETURNING stock_quantity, low_stock_threshold`

	var level StockLevel
	err := t.tx.GetContext(ctx, &level, query, quantity, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return StockLevel{}, false, nil
	}
	if err != nil {
		return StockLevel{}, false, fmt.Errorf("failed to reserve stock for product %d: %w", productID, err)
	}
	return level, true, nil
}

// ReleaseStock returns quantity to a product's stock
func (t *sqlTx) ReleaseStock(ctx context.Context, productID int64, quantity decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE products SET stock_quantity = stock_quantity + $1 WHERE id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to release stock for product %d: %w", productID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return nil
}

// GetOrderForUpdate loads an order header and locks it for the rest of the tx
func (t *sqlTx) GetOrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order %d: %w", orderID, err)
	}
	return &order, nil
}

// GetOrderItems retrieves all items for an order
func (t *sqlTx) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := t.tx.SelectContext(ctx, &items,
		"SELECT "+orderItemColumns+" FROM order_items WHERE order_id = $1 ORDER BY product_id", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get items of order %d: %w", orderID, err)
	}
	return items, nil
}

// UpdateOrderStatus updates order status
func (t *sqlTx) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2", status, orderID)
	if err != nil {
		return fmt.Errorf("failed to update status of order %d: %w", orderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	return nil
}
