package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides typed caching utilities
// ⭐ SSOT: cache key layout and JSON encoding live here only
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Get retrieves a cached value
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	data, err := c.client.Redis().Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Set(ctx, fullKey, data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Del(ctx, fullKey).Err()
}

// GetOrSet retrieves from cache or calls fn to populate it
func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, fn func() (interface{}, error)) error {
	// Try cache first
	found, err := c.Get(ctx, key, dest)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	// Cache miss - call function
	value, err := fn()
	if err != nil {
		return err
	}

	// a failed write only costs the next caller a miss
	_ = c.Set(ctx, key, value, ttl)

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	return json.Unmarshal(data, dest)
}

// Incr bumps a counter and returns its new value; 0 when disabled
func (c *Cache) Incr(ctx context.Context, key string) (int64, error) {
	if !c.client.Enabled() {
		return 0, nil
	}
	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Incr(ctx, fullKey).Result()
}

// Counter reads a counter set by Incr; 0 when unset or disabled
func (c *Cache) Counter(ctx context.Context, key string) (int64, error) {
	if !c.client.Enabled() {
		return 0, nil
	}
	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	n, err := c.client.Redis().Get(ctx, fullKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Predefined TTLs
const (
	TTLShort = 1 * time.Minute
	TTLLong  = 1 * time.Hour
	TTLDaily = 24 * time.Hour // prices change once per trading day
)

// GenerationKey holds the store write counter embedded in every data key
const GenerationKey = "generation"

// ListedKey caches one issue master row
func ListedKey(gen int64, code string) string {
	return fmt.Sprintf("g%d:listed:%s", gen, code)
}

// PriceHistoryKey caches one code's bars over a date range
func PriceHistoryKey(gen int64, code, from, to string) string {
	return fmt.Sprintf("g%d:prices:%s:%s:%s", gen, code, from, to)
}

// CalendarKey caches the trading dates over a range
func CalendarKey(gen int64, from, to string) string {
	return fmt.Sprintf("g%d:calendar:%s:%s", gen, from, to)
}
