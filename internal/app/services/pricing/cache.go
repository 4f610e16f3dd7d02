package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/zakatwise/zakat-engine/internal/app/domain/nisab"
)

// Cache stores the latest good price pair per currency so a short provider
// outage does not immediately force static fallback prices.
type Cache interface {
	GetPrices(ctx context.Context, currency string) ([]nisab.MetalPrice, error)
	SetPrices(ctx context.Context, currency string, prices []nisab.MetalPrice) error
}

// RedisCache is a Cache backed by Redis with a TTL per currency key.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a price cache. A non-positive TTL defaults to one
// hour.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

func priceKey(currency string) string { return "zakat:prices:" + currency }

func (c *RedisCache) GetPrices(ctx context.Context, currency string) ([]nisab.MetalPrice, error) {
	raw, err := c.client.Get(ctx, priceKey(currency)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("price cache get: %w", err)
	}
	var prices []nisab.MetalPrice
	if err := json.Unmarshal(raw, &prices); err != nil {
		return nil, fmt.Errorf("price cache decode: %w", err)
	}
	return prices, nil
}

func (c *RedisCache) SetPrices(ctx context.Context, currency string, prices []nisab.MetalPrice) error {
	raw, err := json.Marshal(prices)
	if err != nil {
		return fmt.Errorf("price cache encode: %w", err)
	}
	if err := c.client.Set(ctx, priceKey(currency), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("price cache set: %w", err)
	}
	return nil
}
