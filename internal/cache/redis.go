// Package cache provides shared version caches backed by Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "docrev:version:"
	defaultTTL       = 10 * time.Minute
	pingTimeout      = 5 * time.Second
)

var _ docs.VersionCache = (*RedisVersionCache)(nil)

// RedisVersionCache stores immutable versions as JSON under a key prefix.
type RedisVersionCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisVersionCache connects to redisURL and verifies the connection.
func NewRedisVersionCache(redisURL string, ttl time.Duration) (*RedisVersionCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisVersionCacheWithClient(client, ttl), nil
}

// NewRedisVersionCacheWithClient wraps an existing Redis client.
func NewRedisVersionCacheWithClient(client *redis.Client, ttl time.Duration) *RedisVersionCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisVersionCache{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    ttl,
	}
}

func (c *RedisVersionCache) key(versionID docs.VersionID) string {
	return c.prefix + versionID.String()
}

// GetVersion returns the cached version, or found=false on a miss.
func (c *RedisVersionCache) GetVersion(ctx context.Context, versionID docs.VersionID) (docs.Version, bool, error) {
	payload, err := c.client.Get(ctx, c.key(versionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return docs.Version{}, false, nil
	}
	if err != nil {
		return docs.Version{}, false, fmt.Errorf("lookup version: %w", err)
	}

	var version docs.Version
	if err := json.Unmarshal(payload, &version); err != nil {
		return docs.Version{}, false, fmt.Errorf("unmarshal version: %w", err)
	}
	return version, true, nil
}

// StoreVersion caches version with the configured TTL.
func (c *RedisVersionCache) StoreVersion(ctx context.Context, version docs.Version) error {
	payload, err := json.Marshal(version)
	if err != nil {
		return fmt.Errorf("marshal version: %w", err)
	}
	if err := c.client.Set(ctx, c.key(docs.VersionID(version.ID)), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("store version: %w", err)
	}
	return nil
}

// EvictVersions drops the given versions. Missing keys are not an error.
func (c *RedisVersionCache) EvictVersions(ctx context.Context, versionIDs ...docs.VersionID) error {
	if len(versionIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(versionIDs))
	for _, id := range versionIDs {
		keys = append(keys, c.key(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("evict versions: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *RedisVersionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisVersionCache) Close() error {
	return c.client.Close()
}
