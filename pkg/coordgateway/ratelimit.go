// Package coordgateway wraps the coordination store (Redis): rate-limit
// counters, single-flight locks, and an idempotency hot cache. All state
// here is derived and ephemeral — losing it costs temporary duplicate rule
// runs and weaker rate-limit accuracy, never data loss.
package coordgateway

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/sentineldb/siemcore/internal/telemetry"
)

// RateLimiter enforces a per-tenant fixed-window eps_limit plus a burst
// token bucket, backed by Redis INCR+EXPIRE. When Redis is unreachable it
// falls back to an in-process token bucket per tenant and reports
// degraded_mode via telemetry.DegradedModeGauge.
type RateLimiter struct {
	redis *redis.Client

	burstMu sync.Mutex
	burst   map[string]*rate.Limiter // composes with the Redis window on every call

	fallbackMu sync.Mutex
	fallback   map[string]*rate.Limiter // substitutes for the whole mechanism when Redis is down
}

// NewRateLimiter creates a rate limiter backed by rdb.
func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{
		redis:    rdb,
		burst:    make(map[string]*rate.Limiter),
		fallback: make(map[string]*rate.Limiter),
	}
}

// Allow enforces the per-tenant burst token bucket first, then checks and
// increments the fixed-window counter at the current epoch second, denying
// once epsLimit is exceeded. Both must allow for the request to pass.
func (rl *RateLimiter) Allow(ctx context.Context, tenant string, epsLimit, burstLimit int) (bool, error) {
	if !rl.takeBurst(tenant, epsLimit, burstLimit) {
		return false, nil
	}

	key := fmt.Sprintf("rate:%s:%d", tenant, time.Now().Unix())

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		telemetry.DegradedModeGauge.Set(1)
		return rl.allowFallback(tenant, epsLimit, burstLimit), nil
	}
	telemetry.DegradedModeGauge.Set(0)

	return incr.Val() <= int64(epsLimit), nil
}

// takeBurst enforces the in-process burst bucket that always runs alongside
// the Redis fixed window, independent of Redis reachability.
func (rl *RateLimiter) takeBurst(tenant string, epsLimit, burstLimit int) bool {
	rl.burstMu.Lock()
	defer rl.burstMu.Unlock()

	lim, ok := rl.burst[tenant]
	if !ok {
		lim = newTokenBucket(epsLimit, burstLimit)
		rl.burst[tenant] = lim
	}
	return lim.Allow()
}

// allowFallback substitutes a process-local token bucket for the entire
// rate-limiting mechanism while the coordination store is unreachable.
func (rl *RateLimiter) allowFallback(tenant string, epsLimit, burstLimit int) bool {
	rl.fallbackMu.Lock()
	defer rl.fallbackMu.Unlock()

	lim, ok := rl.fallback[tenant]
	if !ok {
		lim = newTokenBucket(epsLimit, burstLimit)
		rl.fallback[tenant] = lim
	}
	return lim.Allow()
}

func newTokenBucket(epsLimit, burstLimit int) *rate.Limiter {
	burst := burstLimit
	if burst <= 0 {
		burst = epsLimit
	}
	return rate.NewLimiter(rate.Limit(epsLimit), burst)
}

// RetryAfterSeconds returns the spec-mandated Retry-After value for a
// denied request at the given eps_limit.
func RetryAfterSeconds(epsLimit int) int {
	if epsLimit <= 0 {
		return 1
	}
	return int(math.Ceil(1.0 / float64(epsLimit)))
}
