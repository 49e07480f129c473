package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const windowKeyPrefix = "remedial:window:"

// WindowCache stores resolved windows per subject and school year.
type WindowCache interface {
	Get(ctx context.Context, subject, schoolYear string) (Window, bool, error)
	Set(ctx context.Context, w Window) error
	Invalidate(ctx context.Context) error
}

// RedisWindowCache keeps JSON encoded windows in Redis with a TTL.
type RedisWindowCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisWindowCache(client *redis.Client, ttl time.Duration) *RedisWindowCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisWindowCache{client: client, ttl: ttl}
}

func windowKey(subject, schoolYear string) string {
	return fmt.Sprintf("%s%s:%s", windowKeyPrefix, subject, schoolYear)
}

func (c *RedisWindowCache) Get(ctx context.Context, subject, schoolYear string) (Window, bool, error) {
	raw, err := c.client.Get(ctx, windowKey(subject, schoolYear)).Bytes()
	if err == redis.Nil {
		return Window{}, false, nil
	}
	if err != nil {
		return Window{}, false, err
	}
	var w Window
	if err := json.Unmarshal(raw, &w); err != nil {
		return Window{}, false, fmt.Errorf("decode cached window: %w", err)
	}
	return w, true, nil
}

func (c *RedisWindowCache) Set(ctx context.Context, w Window) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, windowKey(w.Subject, w.SchoolYear), raw, c.ttl).Err()
}

// Invalidate deletes every cached window.
func (c *RedisWindowCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, windowKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
