package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallbiznis/cardlink/internal/repository"
)

const noncePrefix = "cardlink:nonce:"

// RedisNonceStore implements NonceStore backed by Redis.
type RedisNonceStore struct {
	client redis.UniversalClient
}

var _ repository.NonceStore = (*RedisNonceStore)(nil)

// NewRedisNonceStore constructs a Redis-backed nonce store.
func NewRedisNonceStore(client redis.UniversalClient) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

// Claim records the nonce with SET NX so only the first redemption wins.
func (s *RedisNonceStore) Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := s.client.SetNX(ctx, noncePrefix+nonce, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim nonce: %w", err)
	}
	return ok, nil
}

// Release forgets a nonce, letting the capability be redeemed again.
func (s *RedisNonceStore) Release(ctx context.Context, nonce string) error {
	if err := s.client.Del(ctx, noncePrefix+nonce).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release nonce: %w", err)
	}
	return nil
}
