package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "marketboard:kpi"

// KPICache is a read-through Redis cache for computed KPI responses. It
// fails open: any Redis error is treated as a miss so a cache outage
// degrades to recomputation, never to a failed request.
type KPICache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps an existing Redis client.
func New(rdb *redis.Client, ttl time.Duration) *KPICache {
	return &KPICache{rdb: rdb, ttl: ttl}
}

// Key builds a namespaced cache key from query components.
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}

// Get unmarshals a cached value into v. The bool reports a hit.
func (c *KPICache) Get(ctx context.Context, key string, v any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("kpi cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("kpi cache held undecodable payload")
		return false
	}
	return true
}

// Set stores a computed value with the configured TTL. Errors are logged
// and swallowed.
func (c *KPICache) Set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("kpi cache marshal failed")
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("kpi cache write failed")
	}
}
