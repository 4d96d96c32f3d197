/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "personified"

// PreferenceTTL is how long an unused preference is kept.
const PreferenceTTL = 30 * 24 * time.Hour

func timerKey(playerID string) string {
	return fmt.Sprintf("%s:default_timer:%s", keyPrefix, playerID)
}

// Redis stores preferences in Redis so they survive restarts.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis connects to url and verifies the connection.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, err
	}

	return NewRedisWithClient(client, PreferenceTTL), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) DefaultTimer(ctx context.Context, playerID string) (int, error) {
	val, err := r.client.Get(ctx, timerKey(playerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotFound
		}

		return 0, err
	}

	seconds, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("corrupt timer preference %q: %w", val, err)
	}

	return seconds, nil
}

func (r *Redis) SetDefaultTimer(ctx context.Context, playerID string, seconds int) error {
	return r.client.Set(ctx, timerKey(playerID), strconv.Itoa(seconds), r.ttl).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
