package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"seafood-order-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestEventPublisher_Keys(t *testing.T) {
	w := &recordingWriter{}
	ep := NewEventPublisher(newProducer(w))
	ctx := context.Background()

	require.NoError(t, ep.PublishOrderPlaced(ctx, &models.OrderPlacedEvent{
		BaseEvent:   models.BaseEvent{EventType: models.EventTypeOrderPlaced},
		OrderID:     12,
		TotalAmount: decimal.RequireFromString("18.00"),
	}))
	require.NoError(t, ep.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{OrderID: 12}))
	require.NoError(t, ep.PublishLowStock(ctx, &models.LowStockEvent{ProductID: 3}))
	require.NoError(t, ep.PublishOrdersPurged(ctx, &models.OrdersPurgedEvent{OrdersDeleted: 4}))

	require.Len(t, w.msgs, 4)
	assert.Equal(t, "order-12", string(w.msgs[0].Key))
	assert.Equal(t, "order-12", string(w.msgs[1].Key))
	assert.Equal(t, "product-3", string(w.msgs[2].Key))
	assert.Equal(t, "orders", string(w.msgs[3].Key))

	var decoded models.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, models.EventTypeOrderPlaced, decoded.EventType)
	assert.True(t, decoded.TotalAmount.Equal(decimal.RequireFromString("18")))
}

func TestProducer_WriteError(t *testing.T) {
	p := newProducer(&recordingWriter{err: errors.New("leader not available")})
	err := p.PublishEvent(context.Background(), "order-1", map[string]string{"a": "b"})
	assert.ErrorContains(t, err, "leader not available")
}

func encode(t *testing.T, v interface{}) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return kafka.Message{Value: raw}
}

func TestEventHandler_Routing(t *testing.T) {
	eh := NewEventHandler()
	var placed, changed, purged, low int

	eh.OnOrderPlaced(func(ctx context.Context, e *models.OrderPlacedEvent) error {
		placed++
		assert.Equal(t, int64(5), e.OrderID)
		return nil
	})
	eh.OnOrderStatusChanged(func(ctx context.Context, e *models.OrderStatusChangedEvent) error {
		changed++
		assert.Equal(t, models.OrderStatusCancelled, e.To)
		return nil
	})
	eh.OnOrdersPurged(func(ctx context.Context, e *models.OrdersPurgedEvent) error {
		purged++
		return nil
	})
	eh.OnLowStock(func(ctx context.Context, e *models.LowStockEvent) error {
		low++
		return nil
	})

	ctx := context.Background()
	require.NoError(t, eh.HandleMessage(ctx, encode(t, models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeOrderPlaced}, OrderID: 5,
	})))
	require.NoError(t, eh.HandleMessage(ctx, encode(t, models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeOrderStatusChanged}, To: models.OrderStatusCancelled,
	})))
	require.NoError(t, eh.HandleMessage(ctx, encode(t, models.OrdersPurgedEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeOrdersPurged},
	})))
	require.NoError(t, eh.HandleMessage(ctx, encode(t, models.LowStockEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeLowStock},
	})))
	require.NoError(t, eh.HandleMessage(ctx, encode(t, models.BaseEvent{EventType: "SOMETHING_ELSE"})))

	assert.Equal(t, []int{1, 1, 1, 1}, []int{placed, changed, purged, low})

	assert.Error(t, eh.HandleMessage(ctx, kafka.Message{Value: []byte("{not json")}))
}

type scriptedReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, context.Canceled
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *scriptedReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func TestConsumer_RetriesFailedMessage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := &scriptedReader{
		msgs:   []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}},
		cancel: cancel,
	}
	c := newConsumer(r, "order-events")
	c.backoff = time.Millisecond

	var mu sync.Mutex
	calls := map[int64]int{}
	err := c.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls[msg.Offset]++
		if msg.Offset == 2 && calls[2] < 3 {
			return errors.New("redis: connection refused")
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int64{1, 2, 3}, r.committed)
	assert.Equal(t, 3, calls[2])
	assert.Equal(t, 1, calls[3])
}

func TestConsumer_SkipsMessageAfterMaxAttempts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := &scriptedReader{
		msgs:   []kafka.Message{{Offset: 1}, {Offset: 2}},
		cancel: cancel,
	}
	c := newConsumer(r, "order-events")
	c.backoff = time.Millisecond
	c.maxAttempts = 3

	var mu sync.Mutex
	calls := map[int64]int{}
	err := c.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls[msg.Offset]++
		if msg.Offset == 1 {
			return errors.New("boom")
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, calls[1])
	assert.Equal(t, 1, calls[2])
	assert.Equal(t, []int64{1, 2}, r.committed)
}

func TestConsumer_StopsRetryingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	r := &scriptedReader{msgs: []kafka.Message{{Offset: 1}}, cancel: cancel}
	c := newConsumer(r, "order-events")
	c.backoff = time.Hour

	err := c.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		cancel()
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.committed)
}
