package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const identityKeyPrefix = "identity:"

type IdentityCache interface {
	Get(ctx context.Context, rawToken string) (*Claims, error)
	Set(ctx context.Context, rawToken string, claims Claims) error
}

// RedisIdentityCache remembers verified token claims so that repeated requests
// skip signature and issuer checks. Keys are the token's sha256, never the
// token itself.
type RedisIdentityCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisIdentityCache(client *redis.Client, ttl time.Duration) *RedisIdentityCache {
	return &RedisIdentityCache{Client: client, TTL: ttl}
}

// Get returns nil, nil on a miss or when the cached token has expired.
func (c *RedisIdentityCache) Get(ctx context.Context, rawToken string) (*Claims, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	value, err := c.Client.Get(ctx, cacheKey(rawToken)).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get identity from Redis: %w", err)
	}

	var claims Claims
	if err := json.Unmarshal([]byte(value), &claims); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached identity: %w", err)
	}
	if !claims.ExpiresAt.IsZero() && time.Now().After(claims.ExpiresAt) {
		return nil, nil
	}
	return &claims, nil
}

// Set caches claims for the configured TTL, or until the token expires if
// that is sooner.
func (c *RedisIdentityCache) Set(ctx context.Context, rawToken string, claims Claims) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	ttl := c.TTL
	if !claims.ExpiresAt.IsZero() {
		if untilExpiry := time.Until(claims.ExpiresAt); untilExpiry < ttl {
			ttl = untilExpiry
		}
	}
	if ttl <= 0 {
		return nil
	}

	value, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	if err := c.Client.Set(ctx, cacheKey(rawToken), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store identity in Redis: %w", err)
	}
	return nil
}

func cacheKey(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return identityKeyPrefix + hex.EncodeToString(sum[:])
}
