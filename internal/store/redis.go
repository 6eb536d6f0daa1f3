package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares progress between processes through Redis. Keys are
// <prefix>tour_<id> and hold the JSON record.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps client. prefix defaults to "onboardly:".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "onboardly:"
	}
	return &RedisStore{client: client, prefix: prefix, timeout: 2 * time.Second}
}

func (r *RedisStore) key(tourID string) string {
	return r.prefix + Key(tourID)
}

func (r *RedisStore) Load(tourID string) (Progress, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.key(tourID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Progress{}, false, nil
	}
	if err != nil {
		return Progress{}, false, fmt.Errorf("load progress %s: %w", tourID, err)
	}
	p, err := Decode(data)
	return p, true, err
}

func (r *RedisStore) Save(tourID string, p Progress) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.Set(ctx, r.key(tourID), data, 0).Err(); err != nil {
		return fmt.Errorf("save progress %s: %w", tourID, err)
	}
	return nil
}

func (r *RedisStore) Clear(tourID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Del(ctx, r.key(tourID)).Err()
}
