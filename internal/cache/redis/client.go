package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sentience/backend/internal/metrics"
	"github.com/sentience/backend/pkg/logger"
	"github.com/sentience/backend/pkg/utils"
)

const keyPrefix = "sentience:"

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Key builds a cache key for a dashboard result. Results computed from a
// different working-set version never share a key.
func Key(kind string, version uint64, params ...string) string {
	return keyPrefix + kind + ":v" + strconv.FormatUint(version, 10) + ":" + utils.HashParts(params...)
}

// Get decodes the cached value at key into dst. It reports false on a miss.
func (c *Client) Get(ctx context.Context, kind, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues(kind).Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cached %s: %w", kind, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached %s: %w", kind, err)
	}

	metrics.CacheHits.WithLabelValues(kind).Inc()
	logger.Debug("Cache hit", zap.String("kind", kind), zap.String("key", key))
	return true, nil
}

func (c *Client) Set(ctx context.Context, kind, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache %s: %w", kind, err)
	}

	logger.Debug("Result cached", zap.String("kind", kind), zap.Duration("ttl", ttl))
	return nil
}

// InvalidateAll drops every dashboard result.
func (c *Client) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Result cache invalidated", zap.Int("keys", deleted))
	return nil
}
