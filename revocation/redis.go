package revocation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures from the Redis backend.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisStore keeps one key per revoked jti with a TTL matching the revocation window.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore stores entries under <prefix>:revoked:<jti>. An empty prefix means "gotoken".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "gotoken"
	}
	return &RedisStore{redis: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(jti string) string {
	return s.prefix + ":revoked:" + jti
}

// IsRevoked reports whether a live entry exists for jti.
func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Revoke denies jti until the given time. Past deadlines are a no-op.
func (s *RedisStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	if strings.TrimSpace(jti) == "" {
		return ErrInvalidTokenID
	}
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	if err := s.redis.Set(ctx, s.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return nil
}
