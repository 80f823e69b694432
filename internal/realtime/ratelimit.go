package realtime

import (
	"context"
	"fmt"
	"time"

	"collabhub.app/internal/store"
)

// RateLimiter caps how often a subject may perform an action within a rolling
// window. The counter lives in the store with an expiry set on the first
// increment; the window closes when the key expires.
//
// Policy is fail-open: when the store is unavailable the limiter never blocks
// a real user action over an infrastructure failure.
type RateLimiter struct {
	store *store.RedisStore
}

// NewRateLimiter creates a rate limiter backed by the given store.
func NewRateLimiter(s *store.RedisStore) *RateLimiter {
	return &RateLimiter{store: s}
}

func rateKey(subject, action string) string {
	return fmt.Sprintf("%s%s:%s", store.NamespaceRate, subject, action)
}

// CheckLimit atomically increments the counter for (subject, action) and
// reports whether the action is still within the limit. The window expiry is
// set only on the first increment; later increments never reset it.
func (r *RateLimiter) CheckLimit(ctx context.Context, subject, action string, limit int64, window time.Duration) bool {
	key := rateKey(subject, action)

	count, ok := r.store.Increment(ctx, key)
	if !ok {
		return true
	}

	if count == 1 {
		r.store.Expire(ctx, key, window)
	}

	return count <= limit
}

// GetRemainingAttempts returns how many attempts are left in the current
// window, treating a missing counter as zero uses.
func (r *RateLimiter) GetRemainingAttempts(ctx context.Context, subject, action string, limit int64) int64 {
	count, ok := r.store.GetInt(ctx, rateKey(subject, action))
	if !ok {
		return limit
	}

	remaining := limit - count
	if remaining < 0 {
		return 0
	}
	return remaining
}
