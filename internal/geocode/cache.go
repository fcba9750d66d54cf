package geocode

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"backend-eventmap/internal/shared/geo"

	"github.com/redis/go-redis/v9"
)

// Cached answers repeated lookups from Redis. Only successful resolutions are
// stored; a failed lookup is retried against the next resolver every time.
type Cached struct {
	next  Resolver
	redis *redis.Client
	ttl   time.Duration
}

func NewCached(next Resolver, redisClient *redis.Client, ttl time.Duration) Resolver {
	if redisClient == nil {
		return next
	}
	return &Cached{next: next, redis: redisClient, ttl: ttl}
}

func (c *Cached) Resolve(ctx context.Context, address string) (geo.Point, error) {
	key := cacheKey(address)

	if raw, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var p geo.Point
		if err := json.Unmarshal(raw, &p); err == nil {
			return p, nil
		}
	} else if err != redis.Nil {
		log.Printf("geocode cache read error: %v", err)
	}

	p, err := c.next.Resolve(ctx, address)
	if err != nil {
		return geo.Point{}, err
	}

	payload, _ := json.Marshal(p)
	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		log.Printf("geocode cache write error: %v", err)
	}
	return p, nil
}

func cacheKey(address string) string {
	return "geocode:" + strings.ToLower(strings.Join(strings.Fields(address), " "))
}
