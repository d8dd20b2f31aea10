package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisBackend mirrors cache writes into Redis so that additional
// instances can warm from a shared store.
type RedisBackend struct {
	rdb *redis.Client
}

// NewRedisBackend connects using a redis:// URL.
func NewRedisBackend(url string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBackend{rdb: redis.NewClient(opt)}, nil
}

func (b *RedisBackend) Put(ctx context.Context, category, key string, value []byte, ttl time.Duration) error {
	return b.rdb.Set(ctx, b.key(category, key), value, ttl).Err()
}

func (b *RedisBackend) Clear(ctx context.Context, category string) error {
	iter := b.rdb.Scan(ctx, 0, b.key(category, "*"), 0).Iterator()
	for iter.Next(ctx) {
		if err := b.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (b *RedisBackend) key(category, key string) string {
	return "cache:" + category + ":" + key
}
