package intended

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCmds is the subset of the go-redis client the store needs.
type RedisCmds interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore persists the intended route in redis under <prefix>:<tabID>, so
// it survives a reload of the same tab but is never shared between tabs.
type RedisStore struct {
	client RedisCmds
	key    string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client RedisCmds, prefix, tabID string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultKey
	}
	return &RedisStore{
		client: client,
		key:    prefix + ":" + tabID,
		ttl:    ttl,
	}
}

func (r *RedisStore) Key() string {
	return r.key
}

func (r *RedisStore) Set(ctx context.Context, path string) error {
	if err := r.client.Set(ctx, r.key, path, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", r.key, err)
	}
	return nil
}

// Consume uses GETDEL so the read and the delete are one atomic step.
func (r *RedisStore) Consume(ctx context.Context) (string, bool, error) {
	path, err := r.client.GetDel(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis GETDEL %s: %w", r.key, err)
	}
	return path, path != "", nil
}
