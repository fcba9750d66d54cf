package db

import (
	"context"
	"log"
	"time"

	"backend-eventmap/internal/config"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil when Redis is not configured or does not answer.
// Callers treat a nil client as "single instance": change notices are
// delivered in-process and geocode results are not cached.
func ConnectRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis at %s unavailable, running without it: %v", cfg.RedisAddr, err)
		_ = client.Close()
		return nil
	}
	return client
}
