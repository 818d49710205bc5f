// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache is a Cache backed by a shared Redis instance, used when the
// engine runs alongside other nfosync processes (or restarts often enough
// that an in-memory cache would thrash on every cold start).
type redisCache struct {
	client *redis.Client
	prefix string
	stats  CacheStats
}

// NewRedisCache wraps client as a Cache. Every key is namespaced under
// prefix to share a Redis instance safely with unrelated consumers.
func NewRedisCache(client *redis.Client, prefix string) Cache {
	return &redisCache{client: client, prefix: prefix}
}

func (c *redisCache) key(k string) string {
	return c.prefix + k
}

func (c *redisCache) Get(key string) (any, bool) {
	raw, err := c.client.Get(context.Background(), c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, false
		}
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

func (c *redisCache) Set(key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.client.Set(context.Background(), c.key(key), raw, ttl)
}

func (c *redisCache) Delete(key string) {
	c.client.Del(context.Background(), c.key(key))
}

func (c *redisCache) Clear() {
	iter := c.client.Scan(context.Background(), 0, c.prefix+"*", 0).Iterator()
	for iter.Next(context.Background()) {
		c.client.Del(context.Background(), iter.Val())
	}
}

func (c *redisCache) Stats() CacheStats {
	return c.stats
}
