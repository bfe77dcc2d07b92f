package coordgateway

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Pinger reports reachability of the coordination store for the HTTP
// server's health endpoint.
type Pinger struct {
	redis *redis.Client
}

func NewPinger(rdb *redis.Client) *Pinger {
	return &Pinger{redis: rdb}
}

func (p *Pinger) Ping(ctx context.Context) error {
	return p.redis.Ping(ctx).Err()
}
