package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"seafood-order-service/internal/models"
)

const (
	orderColumns     = "id, user_id, total_amount, status, delivery_address, created_at"
	orderItemColumns = "id, order_id, product_id, quantity, price_at_purchase"
)

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders of user %d: %w", userID, err)
	}
	return orders, nil
}

// ListOrders retrieves all orders joined with the buyer name, newest first.
// A limit of zero or less means no limit.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]models.OrderSummary, error) {
	query := `
		SELECT o.id, o.user_id, o.total_amount, o.status, o.delivery_address, o.created_at,
			COALESCE(u.name, '') AS user_name
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC, o.id DESC`

	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	orders := []models.OrderSummary{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// GetOrderItemDetails retrieves an order's items with product display fields
func (s *Store) GetOrderItemDetails(ctx context.Context, orderID int64) ([]models.OrderItemDetail, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price_at_purchase,
			COALESCE(p.name, '') AS product_name,
			COALESCE(p.image_url, '') AS product_image
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`

	items := []models.OrderItemDetail{}
	if err := s.db.SelectContext(ctx, &items, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to get items of order %d: %w", orderID, err)
	}
	return items, nil
}

// DeleteAllOrders removes every order and line item and returns how many
// orders were deleted. Items go first so the reset does not depend on the
// cascade being present.
func (s *Store) DeleteAllOrders(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.inTx(ctx, func(st *sqlTx) error {
		if _, err := st.tx.ExecContext(ctx, "DELETE FROM order_items"); err != nil {
			return fmt.Errorf("failed to delete order items: %w", err)
		}
		res, err := st.tx.ExecContext(ctx, "DELETE FROM orders")
		if err != nil {
			return fmt.Errorf("failed to delete orders: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

// RevenueByDay sums non-cancelled order totals per UTC day since the given time.
// Days without orders are absent.
func (s *Store) RevenueByDay(ctx context.Context, since time.Time) ([]models.DailyRevenue, error) {
	query := `
		SELECT to_char(date_trunc('day', created_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS date,
			SUM(total_amount) AS revenue
		FROM orders
		WHERE created_at >= $1 AND status <> $2
		GROUP BY 1
		ORDER BY 1`

	rows := []models.DailyRevenue{}
	if err := s.db.SelectContext(ctx, &rows, query, since, models.OrderStatusCancelled); err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue: %w", err)
	}
	return rows, nil
}
