package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"seafood-order-service/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/release_pending.lua
var releasePendingScript string

const (
	idempotencyPrefix = "idempotency:"
	revenuePrefix     = "revenue:"

	// pendingMarker is stored while the first attempt for a key is running
	pendingMarker = "pending"
)

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewClientFromRedis(rdb), nil
}

// NewClientFromRedis wraps an existing connection
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releasePendingScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// ClaimIdempotencyKey marks key as in flight with SETNX. If the key exists,
// claimed is false and orderID is the order it produced, or 0 while the
// first attempt is still running.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, int64, error) {
	k := idempotencyPrefix + key

	ok, err := c.rdb.SetNX(ctx, k, pendingMarker, ttl).Result()
	if err != nil {
		return false, 0, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	val, err := c.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return c.ClaimIdempotencyKey(ctx, key, ttl)
	}
	if err != nil {
		return false, 0, fmt.Errorf("read idempotency key: %w", err)
	}
	if val == pendingMarker {
		return false, 0, nil
	}

	orderID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, 0, fmt.Errorf("corrupt idempotency key %q: %w", key, err)
	}
	return false, orderID, nil
}

// CompleteIdempotencyKey records the order a claimed key produced
func (c *Client) CompleteIdempotencyKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyPrefix+key, strconv.FormatInt(orderID, 10), ttl).Err()
}

// ReleaseIdempotencyKey drops a claim that did not produce an order. A key
// that already points at an order is left alone.
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	err := c.releaseScript.Run(ctx, c.rdb, []string{idempotencyPrefix + key}, pendingMarker).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// GetRevenue loads a cached revenue series
func (c *Client) GetRevenue(ctx context.Context, key string) ([]models.DailyRevenue, bool, error) {
	raw, err := c.rdb.Get(ctx, revenuePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var series []models.DailyRevenue
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, false, fmt.Errorf("decode cached revenue: %w", err)
	}
	return series, true, nil
}

// SetRevenue caches a revenue series
func (c *Client) SetRevenue(ctx context.Context, key string, series []models.DailyRevenue, ttl time.Duration) error {
	raw, err := json.Marshal(series)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, revenuePrefix+key, raw, ttl).Err()
}

// InvalidateRevenue drops every cached revenue series and returns how many were removed
func (c *Client) InvalidateRevenue(ctx context.Context) (int, error) {
	var removed int
	iter := c.rdb.Scan(ctx, 0, revenuePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, nil
}
