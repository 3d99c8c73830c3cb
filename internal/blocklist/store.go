// Package blocklist maintains the set of access tokens revoked before their
// natural expiry. Entries carry a TTL equal to the token's remaining lifetime
// so the set stays bounded. Lookups fail closed: if Redis cannot answer, the
// token is treated as blocked.
package blocklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned when the store cannot be reached after retries.
// Callers must treat it as "blocked".
var ErrUnavailable = errors.New("blocklist store unavailable")

const (
	keyPrefix  = "blocklist:"
	opTimeout  = 500 * time.Millisecond
	retryDelay = 50 * time.Millisecond
)

// Store wraps the Redis-backed revoked-token set.
type Store struct {
	redis   redis.UniversalClient
	retries int
}

// New creates a blocklist Store. retries is the number of additional attempts
// made after a failed Redis call before giving up.
func New(redisClient redis.UniversalClient, retries int) *Store {
	if retries < 0 {
		retries = 0
	}
	return &Store{redis: redisClient, retries: retries}
}

// Block records a token hash as revoked for the given TTL. A non-positive TTL
// means the token is already expired and nothing needs to be stored.
func (s *Store) Block(ctx context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	err := s.withRetry(ctx, func(c context.Context) error {
		return s.redis.Set(c, keyPrefix+tokenHash, "1", ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsBlocked reports whether the token hash has been revoked. When the store
// cannot be reached it returns true together with ErrUnavailable so that an
// outage never lets a revoked token through.
func (s *Store) IsBlocked(ctx context.Context, tokenHash string) (bool, error) {
	var n int64
	err := s.withRetry(ctx, func(c context.Context) error {
		var inner error
		n, inner = s.redis.Exists(c, keyPrefix+tokenHash).Result()
		return inner
	})
	if err != nil {
		return true, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

func (s *Store) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * retryDelay):
			}
		}
		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		err = fn(opCtx)
		cancel()
		if err == nil {
			return nil
		}
	}
	return err
}
