package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"seafood-order-service/internal/models"
	"seafood-order-service/internal/store"
	"seafood-order-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome is the terminal state of one placement attempt
type Outcome string

const (
	OutcomeCommitted                   Outcome = "committed"
	OutcomeRolledBackInsufficientStock Outcome = "rolled_back_insufficient_stock"
	OutcomeRolledBackInfrastructure    Outcome = "rolled_back_infrastructure"
)

// OutcomeOf classifies the error returned by OrderCoordinator.Place
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeCommitted
	case errors.Is(err, ErrInsufficientStock):
		return OutcomeRolledBackInsufficientStock
	default:
		return OutcomeRolledBackInfrastructure
	}
}

// PlacedOrder is a committed order with its items
type PlacedOrder struct {
	Order models.Order
	Items []models.OrderItem
}

type lowStock struct {
	productID int64
	level     store.StockLevel
}

// OrderCoordinator owns every transaction that writes an order together with stock.
type OrderCoordinator struct {
	tx        TxManager
	ledger    *InventoryLedger
	publisher EventPublisher
	timeout   time.Duration
	logger    *zap.Logger
}

// NewOrderCoordinator creates a new order coordinator. timeout bounds each
// transaction; zero means the caller's context alone decides.
func NewOrderCoordinator(
	tx TxManager,
	ledger *InventoryLedger,
	publisher EventPublisher,
	timeout time.Duration,
) *OrderCoordinator {
	return &OrderCoordinator{
		tx:        tx,
		ledger:    ledger,
		publisher: publisher,
		timeout:   timeout,
		logger:    util.GetLogger(),
	}
}

// Place persists draft in one transaction: header insert, then per line (in
// ascending product id order) a stock reservation followed by the item insert.
// Any failure rolls back everything, so readers see either no order or the
// complete one. Errors are *InsufficientStockError or *InfrastructureError,
// or a *ValidationError for a draft without lines.
func (c *OrderCoordinator) Place(ctx context.Context, draft *OrderDraft) (*PlacedOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderCoordinator.Place")
	defer span.End()

	// an order without line items must never be committed
	if len(draft.Lines) == 0 {
		return nil, &ValidationError{Err: ErrEmptyCart}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	lines := append(draft.Lines[:0:0], draft.Lines...)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	start := time.Now()
	var placed *PlacedOrder
	var low []lowStock

	err := c.tx.WithinTx(ctx, func(tx store.Tx) error {
		placed = nil
		low = nil

		order := models.Order{
			UserID:          draft.UserID,
			TotalAmount:     draft.TotalAmount,
			Status:          models.OrderStatusPending,
			DeliveryAddress: draft.DeliveryAddress,
		}
		if err := tx.InsertOrder(ctx, &order); err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			level, err := c.ledger.Reserve(ctx, tx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			if isLowStock(level) {
				low = append(low, lowStock{productID: line.ProductID, level: level})
			}

			item := models.OrderItem{
				OrderID:         order.ID,
				ProductID:       line.ProductID,
				Quantity:        line.Quantity,
				PriceAtPurchase: line.UnitPrice,
			}
			if err := tx.InsertOrderItem(ctx, &item); err != nil {
				return err
			}
			items = append(items, item)
		}

		placed = &PlacedOrder{Order: order, Items: items}
		return nil
	})
	util.OrderPlacementLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		util.RecordError(span, err)

		var short *InsufficientStockError
		if errors.As(err, &short) {
			util.OrdersRejectedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, short
		}

		util.OrdersRejectedTotal.WithLabelValues("infrastructure").Inc()
		c.logger.Error("Order placement rolled back",
			zap.Int64("user_id", draft.UserID),
			zap.Int("lines", len(lines)),
			zap.String("outcome", string(OutcomeOf(err))),
			zap.Error(err))
		return nil, infra("place order", err)
	}

	util.OrdersPlacedTotal.Inc()
	util.OrderValueTotal.Add(placed.Order.TotalAmount.InexactFloat64())
	c.logger.Info("Order placed",
		zap.Int64("order_id", placed.Order.ID),
		zap.Int64("user_id", placed.Order.UserID),
		zap.String("total_amount", placed.Order.TotalAmount.StringFixed(2)))

	c.publishPlaced(ctx, placed, low)
	return placed, nil
}

// publishPlaced emits the post-commit events. The order is already durable, so
// failures here are only logged.
func (c *OrderCoordinator) publishPlaced(ctx context.Context, placed *PlacedOrder, low []lowStock) {
	items := make([]models.OrderItemData, 0, len(placed.Items))
	for _, it := range placed.Items {
		items = append(items, models.OrderItemData{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:     placed.Order.ID,
		UserID:      placed.Order.UserID,
		TotalAmount: placed.Order.TotalAmount,
		Items:       items,
	}
	if err := c.publisher.PublishOrderPlaced(ctx, event); err != nil {
		c.logger.Error("Failed to publish OrderPlaced event",
			zap.Int64("order_id", placed.Order.ID),
			zap.Error(err))
	}

	for _, l := range low {
		util.InventoryLowStockTotal.WithLabelValues(productLabel(l.productID)).Inc()
		lowEvent := &models.LowStockEvent{
			BaseEvent: newBaseEvent(models.EventTypeLowStock),
			ProductID: l.productID,
			Remaining: l.level.Remaining,
			Threshold: l.level.LowStockThreshold,
		}
		if err := c.publisher.PublishLowStock(ctx, lowEvent); err != nil {
			c.logger.Error("Failed to publish LowStock event",
				zap.Int64("product_id", l.productID),
				zap.Error(err))
		}
	}
}

// Transition moves an order to status `to` under a row lock on the order.
// Entering cancelled releases every line's quantity back to stock; leaving
// cancelled (open transition model only) reserves it again. With strict set,
// only the lifecycle graph in CanTransition is allowed.
func (c *OrderCoordinator) Transition(ctx context.Context, orderID int64, to models.OrderStatus, strict bool) (models.OrderStatus, error) {
	ctx, span := util.StartSpan(ctx, "OrderCoordinator.Transition")
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var from models.OrderStatus
	err := c.tx.WithinTx(ctx, func(tx store.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		from = order.Status

		if from == to {
			return nil
		}
		if strict && !CanTransition(from, to) {
			return ErrInvalidTransition
		}

		if to == models.OrderStatusCancelled || from == models.OrderStatusCancelled {
			items, err := tx.GetOrderItems(ctx, orderID)
			if err != nil {
				return err
			}
			for _, it := range items {
				if to == models.OrderStatusCancelled {
					err = c.ledger.Release(ctx, tx, it.ProductID, it.Quantity)
				} else {
					_, err = c.ledger.Reserve(ctx, tx, it.ProductID, it.Quantity)
				}
				if err != nil {
					return err
				}
			}
		}

		return tx.UpdateOrderStatus(ctx, orderID, to)
	})

	switch {
	case err == nil:
		return from, nil
	case errors.Is(err, store.ErrNotFound):
		return "", ErrOrderNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInsufficientStock):
		return from, err
	default:
		util.RecordError(span, err)
		c.logger.Error("Order status update rolled back",
			zap.Int64("order_id", orderID),
			zap.String("to", string(to)),
			zap.Error(err))
		return "", infra("update order status", err)
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}
