package adminauth

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenBlacklist holds revoked token ids until their natural expiry. Token
// validation itself stays stateless; the blacklist is consulted afterwards.
type TokenBlacklist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const blacklistKeyPrefix = "kassabook:admin:revoked:"

// RedisBlacklist keeps revoked jtis in Redis with a TTL equal to the token's
// remaining lifetime.
type RedisBlacklist struct {
	client *redis.Client
}

// NewRedisBlacklist connects a blacklist to the given Redis instance.
func NewRedisBlacklist(addr, password string) *RedisBlacklist {
	return &RedisBlacklist{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// Already expired; nothing to remember.
		return nil
	}
	return b.client.Set(ctx, blacklistKeyPrefix+jti, "1", ttl).Err()
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the underlying Redis connection.
func (b *RedisBlacklist) Close() error {
	return b.client.Close()
}

// NoopBlacklist is used when no Redis instance is configured: logout still
// succeeds but tokens remain valid until expiry.
type NoopBlacklist struct{}

func (NoopBlacklist) Revoke(context.Context, string, time.Duration) error { return nil }
func (NoopBlacklist) IsRevoked(context.Context, string) (bool, error)    { return false, nil }
