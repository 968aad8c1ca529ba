package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"coinstock/backend/internal/domain"
)

type RedisFilterCache struct {
	client *redis.Client
}

func NewRedisFilterCache(addr string, password string, db int) *RedisFilterCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisFilterCache{client: client}
}

func (c *RedisFilterCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisFilterCache) Close() error {
	return c.client.Close()
}

func (c *RedisFilterCache) Get(ctx context.Context, key string) (*domain.ReportFilterOptions, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var opts domain.ReportFilterOptions
	if err := json.Unmarshal(val, &opts); err != nil {
		return nil, false, err
	}
	return &opts, true, nil
}

func (c *RedisFilterCache) Set(ctx context.Context, key string, value *domain.ReportFilterOptions, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisFilterCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
