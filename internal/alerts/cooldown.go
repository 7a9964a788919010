package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCooldown implements Cooldown with a per-symbol SET NX key that
// expires after the window. Whoever sets the key owns the window.
type RedisCooldown struct {
	client *redis.Client
	window time.Duration
}

// NewRedisCooldown connects to Redis and verifies the connection.
func NewRedisCooldown(ctx context.Context, addr, password string, db int, window time.Duration) (*RedisCooldown, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCooldown{
		client: client,
		window: window,
	}, nil
}

// Acquire claims the cooldown window for symbol. It returns true when no
// alert fired for the symbol within the window.
func (c *RedisCooldown) Acquire(ctx context.Context, symbol string) (bool, error) {
	ok, err := c.client.SetNX(ctx, cooldownKey(symbol), time.Now().UTC().Format(time.RFC3339), c.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire alert cooldown for %s: %w", symbol, err)
	}
	return ok, nil
}

// Close releases the Redis connection.
func (c *RedisCooldown) Close() error {
	return c.client.Close()
}

func cooldownKey(symbol string) string {
	return "alerts:cooldown:" + symbol
}

// NoCooldown allows every alert. It stands in when Redis is unreachable
// so a missing cache never blocks alerting.
type NoCooldown struct{}

// Acquire always reports the window as free.
func (NoCooldown) Acquire(context.Context, string) (bool, error) {
	return true, nil
}
