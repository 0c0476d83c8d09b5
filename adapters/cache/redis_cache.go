package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/webnote/core"
	"github.com/layer-3/webnote/ports"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the distributed cache client
type RedisConfig struct {
	Nodes            []string
	Username         string
	Password         string
	Cluster          bool // Forces cluster mode, implied when more than one node is configured
	ConnTimeout      time.Duration
	ResponseTimeout  time.Duration
	Retries          int
	ReadFromReplicas bool
}

// NewRedisClient builds a cluster client for multi-node or cluster deployments and a single-node client otherwise
func NewRedisClient(cfg RedisConfig) (redis.UniversalClient, error) {
	if len(cfg.Nodes) == 0 {
		return nil, errors.New("at least one redis node is required")
	}

	if cfg.Cluster || len(cfg.Nodes) > 1 {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Nodes,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DialTimeout:  cfg.ConnTimeout,
			ReadTimeout:  cfg.ResponseTimeout,
			WriteTimeout: cfg.ResponseTimeout,
			MaxRetries:   cfg.Retries,
			ReadOnly:     cfg.ReadFromReplicas,
		}), nil
	}

	return redis.NewClient(&redis.Options{
		Addr:         cfg.Nodes[0],
		Username:     cfg.Username,
		Password:     cfg.Password,
		DialTimeout:  cfg.ConnTimeout,
		ReadTimeout:  cfg.ResponseTimeout,
		WriteTimeout: cfg.ResponseTimeout,
		MaxRetries:   cfg.Retries,
	}), nil
}

// RedisCache is a Redis implementation of the Cache interface
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache creates a new Redis cache namespacing every key with prefix
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
	}
}

var _ ports.Cache = (*RedisCache)(nil)

// Get returns the value stored under key
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get key: %w: %w", core.ErrCacheUnavailable, err)
	}

	return val, true, nil
}

// Set stores value under key with expiration
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key: %w: %w", core.ErrCacheUnavailable, err)
	}

	return nil
}

// SetNX stores value under key only when the key does not exist
func (c *RedisCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	ok, err := c.client.SetNX(ctx, c.prefix+key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set key: %w: %w", core.ErrCacheUnavailable, err)
	}

	return ok, nil
}

// Delete removes key
func (c *RedisCache) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Del(ctx, c.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete key: %w: %w", core.ErrCacheUnavailable, err)
	}

	return n > 0, nil
}

// Ping checks connectivity
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
