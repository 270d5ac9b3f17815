package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"seafood-order-service/internal/models"
	"seafood-order-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memState is the committed content of memStore
type memState struct {
	products    map[int64]models.Product
	orders      map[int64]models.Order
	items       []models.OrderItem
	nextOrderID int64
	nextItemID  int64
}

func (s *memState) clone() *memState {
	c := &memState{
		products:    make(map[int64]models.Product, len(s.products)),
		orders:      make(map[int64]models.Order, len(s.orders)),
		items:       append([]models.OrderItem(nil), s.items...),
		nextOrderID: s.nextOrderID,
		nextItemID:  s.nextItemID,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	return c
}

// memStore is an in-memory stand-in for the Postgres store. Transactions run
// one at a time on a private copy that replaces the committed state only when
// fn succeeds, which gives the same all-or-nothing visibility as the database.
type memStore struct {
	mu    sync.Mutex
	state *memState
	users map[int64]string
	clock time.Time

	failInsertItemFor int64
	failRevenue       error
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			products: map[int64]models.Product{},
			orders:   map[int64]models.Order{},
		},
		users: map[int64]string{},
		clock: time.Date(2026, 10, 10, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) addProduct(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.products[p.ID] = p
}

func (m *memStore) product(id int64) models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.products[id]
}

func (m *memStore) setPrice(id int64, price decimal.Decimal, discount decimal.NullDecimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.state.products[id]
	p.Price = price
	p.DiscountPercent = discount
	m.state.products[id] = p
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders)
}

func (m *memStore) itemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.items)
}

func (m *memStore) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := m.state.clone()
	if err := fn(&memTx{store: m, state: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := m.state.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (m *memStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.state.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *memStore) ListOrders(ctx context.Context, limit int) ([]models.OrderSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := make([]models.Order, 0, len(m.state.orders))
	for _, o := range m.state.orders {
		orders = append(orders, o)
	}
	sortNewestFirst(orders)
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	out := make([]models.OrderSummary, 0, len(orders))
	for _, o := range orders {
		out = append(out, models.OrderSummary{Order: o, UserName: m.users[o.UserID]})
	}
	return out, nil
}

func (m *memStore) GetOrderItemDetails(ctx context.Context, orderID int64) ([]models.OrderItemDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.OrderItemDetail{}
	for _, it := range m.state.items {
		if it.OrderID == orderID {
			p := m.state.products[it.ProductID]
			out = append(out, models.OrderItemDetail{OrderItem: it, ProductName: p.Name, ProductImage: p.ImageURL})
		}
	}
	return out, nil
}

func (m *memStore) DeleteAllOrders(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.state.orders))
	m.state.items = nil
	m.state.orders = map[int64]models.Order{}
	return n, nil
}

func (m *memStore) RevenueByDay(ctx context.Context, since time.Time) ([]models.DailyRevenue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRevenue != nil {
		return nil, m.failRevenue
	}
	sums := map[string]decimal.Decimal{}
	for _, o := range m.state.orders {
		if o.CreatedAt.Before(since) || o.Status == models.OrderStatusCancelled {
			continue
		}
		day := o.CreatedAt.UTC().Format("2006-01-02")
		sums[day] = sums[day].Add(o.TotalAmount)
	}
	out := []models.DailyRevenue{}
	for day, v := range sums {
		out = append(out, models.DailyRevenue{Date: day, Revenue: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func sortNewestFirst(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

type memTx struct {
	store *memStore
	state *memState
}

func (t *memTx) InsertOrder(ctx context.Context, order *models.Order) error {
	t.state.nextOrderID++
	order.ID = t.state.nextOrderID
	order.CreatedAt = t.store.clock.Add(time.Duration(order.ID) * time.Minute)
	t.state.orders[order.ID] = *order
	return nil
}

func (t *memTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	if t.store.failInsertItemFor != 0 && item.ProductID == t.store.failInsertItemFor {
		return errConnReset
	}
	t.state.nextItemID++
	item.ID = t.state.nextItemID
	t.state.items = append(t.state.items, *item)
	return nil
}

func (t *memTx) ReserveStock(ctx context.Context, productID int64, quantity decimal.Decimal) (store.StockLevel, bool, error) {
	p, ok := t.state.products[productID]
	if !ok || p.StockQuantity.LessThan(quantity) {
		return store.StockLevel{}, false, nil
	}
	p.StockQuantity = p.StockQuantity.Sub(quantity)
	t.state.products[productID] = p
	return store.StockLevel{Remaining: p.StockQuantity, LowStockThreshold: p.LowStockThreshold}, true, nil
}

func (t *memTx) ReleaseStock(ctx context.Context, productID int64, quantity decimal.Decimal) error {
	p, ok := t.state.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	p.StockQuantity = p.StockQuantity.Add(quantity)
	t.state.products[productID] = p
	return nil
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error) {
	o, ok := t.state.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (t *memTx) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	out := []models.OrderItem{}
	for _, it := range t.state.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	o, ok := t.state.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	t.state.orders[orderID] = o
	return nil
}

// publisherMock records published events
type publisherMock struct{ mock.Mock }

func (m *publisherMock) PublishOrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error {
	return m.Called(ctx, e).Error(0)
}

func (m *publisherMock) PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	return m.Called(ctx, e).Error(0)
}

func (m *publisherMock) PublishOrdersPurged(ctx context.Context, e *models.OrdersPurgedEvent) error {
	return m.Called(ctx, e).Error(0)
}

func (m *publisherMock) PublishLowStock(ctx context.Context, e *models.LowStockEvent) error {
	return m.Called(ctx, e).Error(0)
}

func newPublisherMock() *publisherMock {
	p := &publisherMock{}
	p.On("PublishOrderPlaced", mock.Anything, mock.Anything).Return(nil).Maybe()
	p.On("PublishOrderStatusChanged", mock.Anything, mock.Anything).Return(nil).Maybe()
	p.On("PublishOrdersPurged", mock.Anything, mock.Anything).Return(nil).Maybe()
	p.On("PublishLowStock", mock.Anything, mock.Anything).Return(nil).Maybe()
	return p
}

// idempotencyMock stands in for the redis-backed key store
type idempotencyMock struct{ mock.Mock }

func (m *idempotencyMock) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, int64, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Get(1).(int64), args.Error(2)
}

func (m *idempotencyMock) CompleteIdempotencyKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error {
	return m.Called(ctx, key, orderID, ttl).Error(0)
}

func (m *idempotencyMock) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// memCache is a map-backed RevenueCache
type memCache struct {
	mu      sync.Mutex
	entries map[string][]models.DailyRevenue
	gets    int
}

func (c *memCache) GetRevenue(ctx context.Context, key string) ([]models.DailyRevenue, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) SetRevenue(ctx context.Context, key string, series []models.DailyRevenue, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string][]models.DailyRevenue{}
	}
	c.entries[key] = series
	return nil
}
