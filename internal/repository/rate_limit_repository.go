package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitStore counts attempts inside a sliding window per identifier.
type RateLimitStore interface {
	// Allow records an attempt for the identifier and reports whether it fits
	// within limit attempts per window. When denied, retryAfter indicates how
	// long until the oldest attempt falls out of the window.
	Allow(ctx context.Context, identifier string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}

type rateLimitRepository struct {
	client *redis.Client
	prefix string
}

// NewRateLimitRepository returns a Redis-backed sliding-window store using
// sorted sets keyed by identifier.
func NewRateLimitRepository(client *redis.Client) RateLimitStore {
	return &rateLimitRepository{client: client, prefix: "ratelimit:"}
}

func (r *rateLimitRepository) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, time.Duration, error) {
	key := r.prefix + identifier
	now := time.Now()
	windowStart := now.Add(-window)

	if err := r.client.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10)).Err(); err != nil {
		return false, 0, err
	}

	count, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count >= int64(limit) {
		retryAfter := window
		oldest, err := r.client.ZRangeWithScores(ctx, key, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			oldestAt := time.Unix(0, int64(oldest[0].Score))
			retryAfter = oldestAt.Add(window).Sub(now)
			if retryAfter < 0 {
				retryAfter = 0
			}
		}
		return false, retryAfter, nil
	}

	member := redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()}
	if err := r.client.ZAdd(ctx, key, member).Err(); err != nil {
		return false, 0, err
	}
	if err := r.client.Expire(ctx, key, window).Err(); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}
