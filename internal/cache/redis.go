package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	baseTTL   = 15 * time.Minute
	maxJitter = 5
)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, sessionID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	return &cart, nil
}

func (r *RedisCache) Set(ctx context.Context, sessionID string, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// jitter spreads expiry so carts cached together do not all miss together
	jitter := time.Duration(rand.Intn(maxJitter)) * time.Minute
	if err := r.client.Set(ctx, cacheKey(sessionID), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, cacheKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}
