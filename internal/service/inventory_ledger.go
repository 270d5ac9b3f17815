package service

import (
	"context"
	"fmt"
	"strconv"

	"seafood-order-service/internal/store"
	"seafood-order-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InventoryLedger is the only writer of product stock. Every call runs inside
// a transaction owned by the OrderCoordinator, so a reservation is undone by
// rolling that transaction back rather than by compensation.
type InventoryLedger struct {
	logger *zap.Logger
}

// NewInventoryLedger creates a new inventory ledger
func NewInventoryLedger() *InventoryLedger {
	return &InventoryLedger{
		logger: util.GetLogger(),
	}
}

// Reserve decrements stock for productID by quantity. On shortage it returns an
// *InsufficientStockError and leaves stock untouched.
func (l *InventoryLedger) Reserve(ctx context.Context, tx store.Tx, productID int64, quantity decimal.Decimal) (store.StockLevel, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Reserve")
	defer span.End()

	level, ok, err := tx.ReserveStock(ctx, productID, quantity)
	if err != nil {
		util.InventoryReservationsFailed.WithLabelValues("error").Inc()
		util.RecordError(span, err)
		return store.StockLevel{}, err
	}

	if !ok {
		util.InventoryReservationsFailed.WithLabelValues("insufficient_stock").Inc()
		l.logger.Info("Insufficient stock",
			zap.Int64("product_id", productID),
			zap.String("requested", quantity.String()))
		return store.StockLevel{}, &InsufficientStockError{ProductID: productID, Requested: quantity}
	}

	return level, nil
}

// Release returns quantity to productID. Used when a committed order is cancelled.
func (l *InventoryLedger) Release(ctx context.Context, tx store.Tx, productID int64, quantity decimal.Decimal) error {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Release")
	defer span.End()

	if err := tx.ReleaseStock(ctx, productID, quantity); err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("release product %d: %w", productID, err)
	}
	return nil
}

// isLowStock reports whether a reservation left the product at or under its threshold
func isLowStock(level store.StockLevel) bool {
	return level.LowStockThreshold.IsPositive() && level.Remaining.LessThanOrEqual(level.LowStockThreshold)
}

func productLabel(id int64) string {
	return strconv.FormatInt(id, 10)
}
