package coordgateway

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// HotCache provides an optional fast path for idempotency lookups, keyed
// `idemp:{route}:{key}`, ahead of the authoritative store gateway lookup.
type HotCache struct {
	redis *redis.Client
}

func NewHotCache(rdb *redis.Client) *HotCache {
	return &HotCache{redis: rdb}
}

func idempKey(route, key string) string {
	return fmt.Sprintf("idemp:%s:%s", route, key)
}

// GetSetNX atomically sets value if absent and reports whether it was the
// one doing the setting (true) or an existing value already won (false,
// with the existing value returned).
func (c *HotCache) GetSetNX(ctx context.Context, route, key, value string, ttl time.Duration) (won bool, existing string, err error) {
	ok, err := c.redis.SetNX(ctx, idempKey(route, key), value, ttl).Result()
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, value, nil
	}
	existing, err = c.redis.Get(ctx, idempKey(route, key)).Result()
	if err != nil {
		return false, "", err
	}
	return false, existing, nil
}
