// Package cache provides the fast-path lookup in front of the revoked token table.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/allisson/identity/internal/errors"
)

// RedisRevocationCache stores revoked access token hashes as keys that expire
// together with the token they describe.
type RedisRevocationCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRevocationCache creates a cache writing keys under prefix.
func NewRedisRevocationCache(client redis.UniversalClient, prefix string) *RedisRevocationCache {
	return &RedisRevocationCache{client: client, prefix: prefix}
}

func (r *RedisRevocationCache) key(tokenHash string) string {
	return r.prefix + ":" + tokenHash
}

// MarkRevoked records the hash. A non-positive ttl means the token already
// expired and nothing is stored.
func (r *RedisRevocationCache) MarkRevoked(ctx context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(tokenHash), 1, ttl).Err(); err != nil {
		return apperrors.Wrap(err, "failed to cache revoked token")
	}
	return nil
}

// IsRevoked reports whether the hash is cached as revoked. A miss is not
// authoritative; callers fall back to the database.
func (r *RedisRevocationCache) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	err := r.client.Get(ctx, r.key(tokenHash)).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return false, apperrors.Wrap(err, "failed to read revoked token cache")
}

// NoopRevocationCache is used when no Redis URL is configured.
type NoopRevocationCache struct{}

// NewNoopRevocationCache creates a cache that stores nothing.
func NewNoopRevocationCache() NoopRevocationCache {
	return NoopRevocationCache{}
}

// MarkRevoked does nothing.
func (NoopRevocationCache) MarkRevoked(context.Context, string, time.Duration) error { return nil }

// IsRevoked always misses.
func (NoopRevocationCache) IsRevoked(context.Context, string) (bool, error) { return false, nil }

// NewRedisClient parses a redis:// or rediss:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperrors.Wrap(err, "invalid redis url")
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.Wrap(err, "failed to ping redis")
	}
	return client, nil
}
