package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-service/internal/cart"
	"storefront-service/internal/models"

	"github.com/go-redis/redis/v8"
)

// Client persists the cart document in Redis under the fixed cart storage
// key. It satisfies cart.Persister.
type Client struct {
	rdb *redis.Client
}

var _ cart.Persister = (*Client)(nil)

// NewClient connects to Redis and verifies the connection.
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

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Save writes the full cart collection, replacing any previous document.
func (c *Client) Save(ctx context.Context, items []models.CartItem) error {
	if items == nil {
		items = []models.CartItem{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}

	if err := c.rdb.Set(ctx, cart.StorageKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save cart to redis: %w", err)
	}
	return nil
}

// Load reads the stored cart. A missing key yields an empty cart.
func (c *Client) Load(ctx context.Context) ([]models.CartItem, error) {
	data, err := c.rdb.Get(ctx, cart.StorageKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart from redis: %w", err)
	}

	var items []models.CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode stored cart: %w", err)
	}
	return items, nil
}

// Delete erases the stored cart.
func (c *Client) Delete(ctx context.Context) error {
	return c.rdb.Del(ctx, cart.StorageKey).Err()
}
