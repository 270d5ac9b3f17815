package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"seafood-order-service/internal/models"
	"seafood-order-service/internal/store"
	"seafood-order-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds the order service knobs. PendingTTL bounds how long an
// unfinished attempt blocks its idempotency key; zero derives it from TxTimeout.
type Config struct {
	TxTimeout         time.Duration
	IdempotencyTTL    time.Duration
	PendingTTL        time.Duration
	AnalyticsTTL      time.Duration
	StrictTransitions bool
}

const (
	pendingMargin     = 20 * time.Second
	defaultPendingTTL = time.Minute
)

// Dependencies are the collaborators of OrderService
type Dependencies struct {
	Tx          TxManager
	Catalog     Catalog
	Orders      OrderRepository
	Publisher   EventPublisher
	Idempotency IdempotencyStore
	Cache       RevenueCache
}

// OrderService exposes order placement and the order read/admin paths
type OrderService struct {
	orders      OrderRepository
	assembler   *OrderAssembler
	coordinator *OrderCoordinator
	publisher   EventPublisher
	idempotency IdempotencyStore
	cache       RevenueCache
	cfg         Config
	logger      *zap.Logger
	now         func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(deps Dependencies, cfg Config) *OrderService {
	ledger := NewInventoryLedger()
	return &OrderService{
		orders:      deps.Orders,
		assembler:   NewOrderAssembler(deps.Catalog),
		coordinator: NewOrderCoordinator(deps.Tx, ledger, deps.Publisher, cfg.TxTimeout),
		publisher:   deps.Publisher,
		idempotency: deps.Idempotency,
		cache:       deps.Cache,
		cfg:         cfg,
		logger:      util.GetLogger(),
		now:         time.Now,
	}
}

// pendingTTL is how long an in-flight claim lives. A crashed attempt frees
// its key once this passes, so it must outlast one placement.
func (s *OrderService) pendingTTL() time.Duration {
	if s.cfg.PendingTTL > 0 {
		return s.cfg.PendingTTL
	}
	if s.cfg.TxTimeout > 0 {
		return s.cfg.TxTimeout + pendingMargin
	}
	return defaultPendingTTL
}

// PlaceOrderRequest represents a checkout request. A client-computed total is
// never read; the total is derived from resolved unit prices.
type PlaceOrderRequest struct {
	Items           []models.CartLine `json:"items"`
	DeliveryAddress string            `json:"delivery_address"`
	IdempotencyKey  string            `json:"-"`
}

// PlaceOrderResponse represents the response after placing an order
type PlaceOrderResponse struct {
	OrderID     int64              `json:"order_id"`
	Status      models.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Replayed    bool               `json:"replayed,omitempty"`
}

// PlaceOrder validates and prices the cart, then commits the order and its
// stock reservations atomically.
func (s *OrderService) PlaceOrder(ctx context.Context, p models.Principal, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	if p.UserID <= 0 {
		return nil, ErrForbidden
	}

	draft, err := s.assembler.Assemble(ctx, p.UserID, req.Items, p.BuyerClass(), req.DeliveryAddress)
	if err != nil {
		if IsValidation(err) {
			util.OrdersRejectedTotal.WithLabelValues("validation").Inc()
		} else {
			util.OrdersRejectedTotal.WithLabelValues("infrastructure").Inc()
			s.logger.Error("Failed to assemble order", zap.Int64("user_id", p.UserID), zap.Error(err))
		}
		return nil, err
	}

	key := s.scopedKey(p.UserID, req.IdempotencyKey)
	if key != "" {
		claimed, existing, err := s.idempotency.ClaimIdempotencyKey(ctx, key, s.pendingTTL())
		switch {
		case err != nil:
			s.logger.Warn("Idempotency store unavailable, placing without key",
				zap.Int64("user_id", p.UserID),
				zap.Error(err))
			key = ""
		case !claimed && existing > 0:
			return s.replay(ctx, p, existing)
		case !claimed:
			return nil, ErrDuplicateRequest
		}
	}

	placed, err := s.coordinator.Place(ctx, draft)
	if err != nil {
		if key != "" {
			if relErr := s.idempotency.ReleaseIdempotencyKey(ctx, key); relErr != nil {
				s.logger.Warn("Failed to release idempotency key", zap.Error(relErr))
			}
		}
		return nil, err
	}

	if key != "" {
		if err := s.idempotency.CompleteIdempotencyKey(ctx, key, placed.Order.ID, s.cfg.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to record idempotency key",
				zap.Int64("order_id", placed.Order.ID),
				zap.Error(err))
		}
	}

	return &PlaceOrderResponse{
		OrderID:     placed.Order.ID,
		Status:      placed.Order.Status,
		TotalAmount: placed.Order.TotalAmount,
	}, nil
}

func (s *OrderService) scopedKey(userID int64, key string) string {
	key = strings.TrimSpace(key)
	if key == "" || s.idempotency == nil {
		return ""
	}
	return fmt.Sprintf("%d:%s", userID, key)
}

func (s *OrderService) replay(ctx context.Context, p models.Principal, orderID int64) (*PlaceOrderResponse, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		s.logger.Error("Failed to load replayed order", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, infra("load replayed order", err)
	}
	if order.UserID != p.UserID {
		return nil, ErrForbidden
	}

	util.IdempotentReplaysTotal.Inc()
	s.logger.Info("Duplicate order request detected",
		zap.Int64("user_id", p.UserID),
		zap.Int64("order_id", orderID))
	return &PlaceOrderResponse{
		OrderID:     order.ID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Replayed:    true,
	}, nil
}

// ListMyOrders returns the caller's orders, newest first
func (s *OrderService) ListMyOrders(ctx context.Context, p models.Principal) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListMyOrders")
	defer span.End()

	if p.UserID <= 0 {
		return nil, ErrForbidden
	}

	orders, err := s.orders.GetOrdersByUserID(ctx, p.UserID)
	if err != nil {
		s.logger.Error("Failed to list user orders", zap.Int64("user_id", p.UserID), zap.Error(err))
		return nil, infra("list user orders", err)
	}
	return orders, nil
}

// ListAllOrders returns every order with the buyer name (admin). limit <= 0 means all.
func (s *OrderService) ListAllOrders(ctx context.Context, p models.Principal, limit int) ([]models.OrderSummary, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListAllOrders")
	defer span.End()

	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if limit < 0 {
		return nil, ErrInvalidRange
	}

	orders, err := s.orders.ListOrders(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		return nil, infra("list orders", err)
	}
	return orders, nil
}

// GetOrderDetail returns an order with its items. Non-admins only see their own orders.
func (s *OrderService) GetOrderDetail(ctx context.Context, p models.Principal, orderID int64) (*models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrderDetail")
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		s.logger.Error("Failed to get order", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, infra("get order", err)
	}
	if !p.IsAdmin() && order.UserID != p.UserID {
		return nil, ErrOrderNotFound
	}

	items, err := s.orders.GetOrderItemDetails(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to get order items", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, infra("get order items", err)
	}

	return &models.OrderDetail{Order: *order, Items: items}, nil
}

// UpdateOrderStatus moves an order to status (admin)
func (s *OrderService) UpdateOrderStatus(ctx context.Context, p models.Principal, orderID int64, status models.OrderStatus) error {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	if !p.IsAdmin() {
		return ErrForbidden
	}
	if !status.Valid() {
		return ErrInvalidStatus
	}

	from, err := s.coordinator.Transition(ctx, orderID, status, s.cfg.StrictTransitions)
	if err != nil {
		return err
	}
	if from == status {
		return nil
	}

	util.OrderStatusChangesTotal.WithLabelValues(string(status)).Inc()
	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
		zap.Int64("actor_id", p.UserID))

	event := &models.OrderStatusChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   orderID,
		From:      from,
		To:        status,
	}
	if err := s.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Int64("order_id", orderID), zap.Error(err))
	}
	return nil
}

// DeleteAllOrders removes every order and line item (admin). Irreversible.
func (s *OrderService) DeleteAllOrders(ctx context.Context, p models.Principal) (int64, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteAllOrders")
	defer span.End()

	if !p.IsAdmin() {
		return 0, ErrForbidden
	}

	deleted, err := s.orders.DeleteAllOrders(ctx)
	if err != nil {
		s.logger.Error("Failed to delete orders", zap.Error(err))
		return 0, infra("delete orders", err)
	}

	util.OrdersPurgedTotal.Add(float64(deleted))
	s.logger.Warn("All orders deleted",
		zap.Int64("orders_deleted", deleted),
		zap.Int64("actor_id", p.UserID))

	event := &models.OrdersPurgedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrdersPurged),
		OrdersDeleted: deleted,
	}
	if err := s.publisher.PublishOrdersPurged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrdersPurged event", zap.Error(err))
	}
	return deleted, nil
}
