package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps issued tokens in Redis so any instance behind a load
// balancer can validate a token issued by another. Redis expiry handles
// the freshness window, which makes SweepExpired a no-op.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func key(session string) string { return "export:token:" + session }

func (s *RedisStore) Issue(ctx context.Context, session, token string, _ time.Time) error {
	if err := s.rdb.Set(ctx, key(session), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key(session), err)
	}
	return nil
}

// consumeScript deletes the stored token only when it matches, so a
// mismatched attempt cannot destroy the session's real token.
var consumeScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (s *RedisStore) ConsumeIfValid(ctx context.Context, session, token string, _ time.Time) (bool, error) {
	n, err := consumeScript.Run(ctx, s.rdb, []string{key(session)}, token).Int()
	if err != nil {
		return false, fmt.Errorf("redis consume %s: %w", key(session), err)
	}
	return n == 1, nil
}

func (s *RedisStore) SweepExpired(context.Context, time.Time) error { return nil }
