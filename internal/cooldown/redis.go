package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "mtodo:cooldown:"

type redisStore struct {
	client redis.Cmdable
	window time.Duration
}

// NewRedis shares cooldowns between instances. SETNX with a TTL makes the
// check and the claim one step.
func NewRedis(client redis.Cmdable, window time.Duration) Store {
	return &redisStore{client: client, window: window}
}

func (s *redisStore) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, time.Now().Unix(), s.window).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown: setnx: %w", err)
	}
	return ok, nil
}

func (s *redisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("cooldown: del: %w", err)
	}
	return nil
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cooldown: ping redis: %w", err)
	}
	return client, nil
}
