// Package lockout enforces progressive login lockout with a failed-attempt
// counter per identifier in shared Redis, so every replica observes the same
// state.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable is returned when Redis cannot be reached and the guard is
// configured to fail closed.
var ErrStoreUnavailable = errors.New("lockout store unavailable")

// incrExpireScript increments the counter and refreshes its TTL in one atomic
// step. A separate INCR+EXPIRE pair would race: two concurrent failures could
// leave the key without a TTL or reset the window incorrectly.
var incrExpireScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[1])
return count
`)

// Config holds lockout guard tuning parameters.
type Config struct {
	// MaxAttempts is the failure count at which the identifier is locked.
	MaxAttempts int
	// Window is the sliding TTL on the counter; equal to the lockout duration.
	Window time.Duration
	// FailOpen allows attempts with a logged warning when Redis is unreachable.
	// Failing closed here would turn a Redis outage into a login outage, so the
	// policy is configurable rather than hardcoded.
	FailOpen bool
}

// Guard is the progressive-lockout counter. Safe for concurrent use.
type Guard struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a lockout Guard backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Guard {
	return &Guard{redis: redisClient, config: cfg}
}

// RecordFailure increments the failed-attempt counter for the identifier and
// refreshes the sliding window. Returns the new count.
func (g *Guard) RecordFailure(ctx context.Context, identifier string) (int64, error) {
	count, err := incrExpireScript.Run(ctx, g.redis, []string{key(identifier)},
		g.config.Window.Milliseconds()).Int64()
	if err != nil {
		if g.config.FailOpen {
			log.Printf("lockout: record failure unavailable, failing open: %v", err)
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

// IsLocked reports whether the identifier has reached the attempt limit within
// the current window.
func (g *Guard) IsLocked(ctx context.Context, identifier string) (bool, error) {
	count, err := g.redis.Get(ctx, key(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		if g.config.FailOpen {
			log.Printf("lockout: check unavailable, failing open: %v", err)
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count >= int64(g.config.MaxAttempts), nil
}

// Reset clears the counter for the identifier. Called on successful login.
func (g *Guard) Reset(ctx context.Context, identifier string) error {
	if err := g.redis.Del(ctx, key(identifier)).Err(); err != nil {
		if g.config.FailOpen {
			log.Printf("lockout: reset unavailable: %v", err)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Attempts returns the current counter for the identifier. Missing keys return
// zero and do not reveal account existence.
func (g *Guard) Attempts(ctx context.Context, identifier string) (int64, error) {
	count, err := g.redis.Get(ctx, key(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

func key(identifier string) string {
	return "login_attempts:" + identifier
}
