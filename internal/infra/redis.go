package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrNoRedisURL is returned when Redis is requested without a URL.
var ErrNoRedisURL = errors.New("infra: REDIS_URL is empty")

// NewRedisClient connects the cache used for cooldowns, idempotency replays
// and login throttling. clientName shows up in CLIENT LIST.
func NewRedisClient(ctx context.Context, url, clientName string) (*redis.Client, error) {
	if url == "" {
		return nil, ErrNoRedisURL
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("infra: parse REDIS_URL: %w", err)
	}
	if clientName != "" {
		opt.ClientName = clientName
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("infra: cache unreachable: %w", err)
	}
	return client, nil
}
