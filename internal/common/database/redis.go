package database

import (
	"context"
	"fmt"
	"time"

	"eligibility-service/internal/common/config"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisClient{Client: rdb}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// IsMember reports whether member belongs to the set at key.
func (c *RedisClient) IsMember(ctx context.Context, key, member string) (bool, error) {
	return c.Client.SIsMember(ctx, key, member).Result()
}

// AddMembers seeds the set at key.
func (c *RedisClient) AddMembers(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return c.Client.SAdd(ctx, key, args...).Err()
}

// RemoveMembers deletes members from the set at key and returns how many
// were present.
func (c *RedisClient) RemoveMembers(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return c.Client.SRem(ctx, key, args...).Result()
}

// Members lists the set at key.
func (c *RedisClient) Members(ctx context.Context, key string) ([]string, error) {
	return c.Client.SMembers(ctx, key).Result()
}
