package limitx

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces limiter counters in a shared Redis.
const redisKeyPrefix = "ratelimit:"

// RedisStore is a CounterStore backed by a shared Redis, giving correct
// limiting across multiple service instances. Atomicity comes from INCR;
// the window TTL is attached once per key with EXPIRE NX.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	rkey := redisKeyPrefix + key

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, rkey)
	pipe.ExpireNX(ctx, rkey, window)
	ttl := pipe.TTL(ctx, rkey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("redis incr: %w", err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}

	return int(incr.Val()), time.Now().Add(remaining), nil
}

func (s *RedisStore) Entries(ctx context.Context) ([]Entry, error) {
	keys, err := s.scanKeys(ctx, redisKeyPrefix+"*")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]Entry, 0, len(keys))
	for _, rkey := range keys {
		raw, err := s.client.Get(ctx, rkey).Result()
		if err == redis.Nil {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("redis get: %w", err)
		}

		count, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}

		ttl, err := s.client.TTL(ctx, rkey).Result()
		if err != nil {
			return nil, fmt.Errorf("redis ttl: %w", err)
		}
		if ttl <= 0 {
			continue
		}

		out = append(out, Entry{
			Key:     strings.TrimPrefix(rkey, redisKeyPrefix),
			Count:   count,
			ResetAt: now.Add(ttl),
		})
	}

	return out, nil
}

func (s *RedisStore) DeleteIdentity(ctx context.Context, identity string) (int, error) {
	keys, err := s.scanKeys(ctx, redisKeyPrefix+"*")
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, rkey := range keys {
		if identityOf(strings.TrimPrefix(rkey, redisKeyPrefix)) != identity {
			continue
		}
		n, err := s.client.Del(ctx, rkey).Result()
		if err != nil {
			return removed, fmt.Errorf("redis del: %w", err)
		}
		removed += int(n)
	}

	return removed, nil
}

func (s *RedisStore) Clear(ctx context.Context) (int, error) {
	keys, err := s.scanKeys(ctx, redisKeyPrefix+"*")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}

	return int(n), nil
}

func (s *RedisStore) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}
