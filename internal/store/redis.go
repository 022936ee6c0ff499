package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateLimitStore interface {
	// IncrementRPM increments the request counter for key in the current
	// minute window and returns the new value.
	IncrementRPM(ctx context.Context, key string) (int64, error)
}

type RedisRateLimitStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRateLimitStore(addr, password string) *RedisRateLimitStore {
	return NewRedisRateLimitStoreFromClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	}))
}

func NewRedisRateLimitStoreFromClient(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, now: time.Now}
}

func (s *RedisRateLimitStore) IncrementRPM(ctx context.Context, key string) (int64, error) {
	windowKey := fmt.Sprintf("rate_limit:rpm:%s:%d", key, s.now().Unix()/60)
	count, err := s.client.Incr(ctx, windowKey).Result()
	if err != nil {
		return 0, err
	}

	if count == 1 {
		s.client.Expire(ctx, windowKey, 90*time.Second) // Expire after 90s to be safe
	}
	return count, nil
}

// Ping checks connectivity at startup.
func (s *RedisRateLimitStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisRateLimitStore) Close() error {
	return s.client.Close()
}
