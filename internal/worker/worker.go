package worker

import (
	"context"

	"seafood-order-service/internal/broker"
	"seafood-order-service/internal/models"
	"seafood-order-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// RevenueInvalidator drops cached revenue series
type RevenueInvalidator interface {
	InvalidateRevenue(ctx context.Context) (int, error)
}

// ProjectionWorker keeps read-side projections in step with order events:
// it drops the cached revenue series whenever revenue changes and raises
// low-stock alerts.
type ProjectionWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	cache        RevenueInvalidator
	logger       *zap.Logger
}

// NewProjectionWorker creates a new projection worker
func NewProjectionWorker(consumer *broker.Consumer, cache RevenueInvalidator) *ProjectionWorker {
	w := &ProjectionWorker{
		consumer: consumer,
		cache:    cache,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	eventHandler.OnOrderStatusChanged(w.handleStatusChanged)
	eventHandler.OnOrdersPurged(w.handleOrdersPurged)
	eventHandler.OnLowStock(w.handleLowStock)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *ProjectionWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting projection worker")
	return w.consumer.StartConsuming(ctx, w.HandleMessage)
}

// Stop stops the worker
func (w *ProjectionWorker) Stop() error {
	w.logger.Info("Stopping projection worker")
	return w.consumer.Close()
}

// HandleMessage routes one raw event
func (w *ProjectionWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

func (w *ProjectionWorker) handleOrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error {
	util.EventsConsumedTotal.WithLabelValues(e.EventType).Inc()
	return w.invalidate(ctx, e.EventType)
}

func (w *ProjectionWorker) handleStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	util.EventsConsumedTotal.WithLabelValues(e.EventType).Inc()
	// only cancellation moves an order in or out of revenue
	if e.From != models.OrderStatusCancelled && e.To != models.OrderStatusCancelled {
		return nil
	}
	return w.invalidate(ctx, e.EventType)
}

func (w *ProjectionWorker) handleOrdersPurged(ctx context.Context, e *models.OrdersPurgedEvent) error {
	util.EventsConsumedTotal.WithLabelValues(e.EventType).Inc()
	return w.invalidate(ctx, e.EventType)
}

func (w *ProjectionWorker) handleLowStock(ctx context.Context, e *models.LowStockEvent) error {
	util.EventsConsumedTotal.WithLabelValues(e.EventType).Inc()
	w.logger.Warn("Product stock low",
		zap.Int64("product_id", e.ProductID),
		zap.String("remaining", e.Remaining.String()),
		zap.String("threshold", e.Threshold.String()))
	return nil
}

func (w *ProjectionWorker) invalidate(ctx context.Context, cause string) error {
	removed, err := w.cache.InvalidateRevenue(ctx)
	if err != nil {
		w.logger.Error("Failed to invalidate revenue cache", zap.String("cause", cause), zap.Error(err))
		return err
	}
	w.logger.Debug("Revenue cache invalidated", zap.String("cause", cause), zap.Int("removed", removed))
	return nil
}
