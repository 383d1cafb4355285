// Package cache keeps the refresh token blacklist in Redis, with each entry
// expiring together with the token it blocks.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jcob-sikorski/mech-mashup/internal/models"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "auth:blacklist:"

// redisClient is the part of *redis.Client the blacklist needs.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisBlacklist implements repositories.BlacklistRepository on top of Redis.
type RedisBlacklist struct {
	rdb    redisClient
	prefix string
	now    func() time.Time
}

// NewRedisBlacklist connects to redisURL (for example redis://:pass@host:6379/0) and pings it.
func NewRedisBlacklist(ctx context.Context, redisURL, prefix string) (*RedisBlacklist, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return newRedisBlacklist(rdb, prefix, time.Now), nil
}

func newRedisBlacklist(rdb redisClient, prefix string, now func() time.Time) *RedisBlacklist {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisBlacklist{rdb: rdb, prefix: prefix, now: now}
}

func (b *RedisBlacklist) key(jti string) string { return b.prefix + jti }

// Add stores the jti until the token's own expiry. Tokens that already expired are skipped.
func (b *RedisBlacklist) Add(ctx context.Context, token models.BlacklistedToken) error {
	ttl := token.ExpiresAt.Sub(b.now())
	if ttl <= 0 {
		return nil
	}
	// SETNX keeps the first entry, so blacklisting twice is harmless.
	if err := b.rdb.SetNX(ctx, b.key(token.JTI), strconv.FormatInt(token.AccountID, 10), ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token in redis: %w", err)
	}
	return nil
}

func (b *RedisBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := b.rdb.Exists(ctx, b.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check redis blacklist: %w", err)
	}
	return n > 0, nil
}

func (b *RedisBlacklist) Close() error { return b.rdb.Close() }
