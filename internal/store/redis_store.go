package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"collabhub.app/config"
	"collabhub.app/metrics"
	"collabhub.app/pkg/errors"
	"collabhub.app/pkg/logger"
)

// Cache key namespaces. Every key written through this adapter lives under
// one of these prefixes so pattern invalidation stays scoped.
const (
	NamespaceOnline            = "online:"
	NamespaceRoom              = "room:"
	NamespaceRate              = "rate:"
	NamespaceMessages          = "messages:"
	NamespaceNotificationQueue = "notifications:queue"
	NamespaceNotificationUser  = "notifications:user:"
	NamespaceRealtime          = "realtime:"
	NamespaceCache             = "cache:"
)

const (
	defaultCheckInterval = 2 * time.Second
	scanBatchSize        = 100
)

// RedisStore wraps a shared Redis client and exposes the ephemeral key-value
// operations the caching subsystem is built on. Every operation degrades to a
// neutral failure value when the store is unreachable; callers never receive
// an error because the cache is down.
type RedisStore struct {
	client  *redis.Client
	metrics *metrics.CacheMetrics
	log     *logger.Logger

	mu            sync.Mutex
	available     bool
	lastCheck     time.Time
	checkInterval time.Duration
}

// NewRedisStore creates a store adapter from configuration. The adapter is
// returned even when Redis is unreachable at startup; it begins in degraded
// mode and recovers once the liveness check succeeds.
func NewRedisStore(cfg *config.RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		return nil, errors.NewConfigurationError("redis config cannot be nil", nil)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	})

	s := &RedisStore{
		client:        client,
		metrics:       metrics.NewCacheMetrics("redis"),
		log:           logger.New().WithField("component", "redis-store"),
		checkInterval: defaultCheckInterval,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		s.log.Warn("Redis unreachable at startup, running in degraded mode", "error", err, "addr", cfg.Addr)
		s.available = false
	} else {
		s.log.Info("Redis cache connected successfully", "addr", cfg.Addr)
		s.available = true
	}
	s.lastCheck = time.Now()

	return s, nil
}

// SetCheckInterval tunes how long a liveness probe result is reused before
// the store is pinged again.
func (s *RedisStore) SetCheckInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkInterval = d
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// IsAvailable reports whether the store is reachable. The liveness probe is
// rate-limited so concurrent requests do not each ping Redis; availability
// transitions are logged once per occurrence.
func (s *RedisStore) IsAvailable(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.lastCheck) < s.checkInterval {
		return s.available
	}

	err := s.client.Ping(ctx).Err()
	up := err == nil
	if up != s.available {
		if up {
			s.log.Info("Redis store recovered, leaving degraded mode")
		} else {
			s.log.Warn("Redis store unavailable, degrading to pass-through", "error", err)
			s.metrics.RecordDegradation()
		}
	}
	s.available = up
	s.lastCheck = time.Now()
	return up
}

// Set serializes value to JSON and stores it under key. A ttl <= 0 means no
// expiry. Returns false when serialization fails or the store is unreachable.
func (s *RedisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	if !s.IsAvailable(ctx) {
		return false
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.log.Error("Redis marshal error", "error", err, "key", key)
		return false
	}

	return s.SetRaw(ctx, key, data, ttl)
}

// SetRaw stores an already-serialized payload under key.
func (s *RedisStore) SetRaw(ctx context.Context, key string, data []byte, ttl time.Duration) bool {
	if !s.IsAvailable(ctx) {
		return false
	}

	if ttl < 0 {
		ttl = 0
	}

	start := time.Now()
	err := s.client.Set(ctx, key, data, ttl).Err()
	s.metrics.RecordLatency("set", time.Since(start).Seconds())
	if err != nil {
		s.log.Error("Redis set error", "error", err, "key", key)
		return false
	}
	return true
}

// Get reads the value stored under key and unmarshals it into dest. A miss,
// a store failure, and a corrupt payload all report false; a parse failure is
// treated as a miss, not an error.
func (s *RedisStore) Get(ctx context.Context, key string, dest interface{}) bool {
	data, ok := s.GetRaw(ctx, key)
	if !ok {
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		s.log.Error("Redis unmarshal error, treating as miss", "error", err, "key", key)
		return false
	}
	return true
}

// GetRaw reads the raw serialized payload stored under key.
func (s *RedisStore) GetRaw(ctx context.Context, key string) ([]byte, bool) {
	if !s.IsAvailable(ctx) {
		return nil, false
	}

	start := time.Now()
	val, err := s.client.Get(ctx, key).Result()
	s.metrics.RecordLatency("get", time.Since(start).Seconds())
	if err != nil {
		if err != redis.Nil {
			s.log.Error("Redis get error", "error", err, "key", key)
		}
		s.metrics.RecordMiss()
		return nil, false
	}

	s.metrics.RecordHit()
	return []byte(val), true
}

// Delete removes a single key. Deleting an absent key is a success.
func (s *RedisStore) Delete(ctx context.Context, key string) bool {
	if !s.IsAvailable(ctx) {
		return false
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.log.Error("Redis delete error", "error", err, "key", key)
		return false
	}
	return true
}

// DeletePattern removes every key matching a glob pattern. The match set is
// resolved with SCAN so large keyspaces do not block the store. Zero matches
// is a success with no side effect.
func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) bool {
	if !s.IsAvailable(ctx) {
		return false
	}

	start := time.Now()
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			s.log.Error("Redis scan error", "error", err, "pattern", pattern)
			return false
		}

		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				s.log.Error("Redis pattern delete error", "error", err, "pattern", pattern)
				return false
			}
			deleted += len(keys)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	s.metrics.RecordInvalidation()
	s.metrics.RecordLatency("delete_pattern", time.Since(start).Seconds())
	s.log.Debug("Cache pattern invalidated", "pattern", pattern, "deleted", deleted)
	return true
}

// Increment atomically increments the integer stored at key and returns the
// post-increment value. Atomicity relies on the store's native INCR; this is
// the one operation where lost updates would be a correctness bug.
func (s *RedisStore) Increment(ctx context.Context, key string) (int64, bool) {
	if !s.IsAvailable(ctx) {
		return 0, false
	}

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		s.log.Error("Redis incr error", "error", err, "key", key)
		return 0, false
	}
	return count, true
}

// GetInt reads an integer counter, treating a missing key as zero.
func (s *RedisStore) GetInt(ctx context.Context, key string) (int64, bool) {
	if !s.IsAvailable(ctx) {
		return 0, false
	}

	count, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if err != redis.Nil {
			s.log.Error("Redis get int error", "error", err, "key", key)
			return 0, false
		}
		return 0, true
	}
	return count, true
}

// Expire sets the TTL on an existing key.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	if !s.IsAvailable(ctx) {
		return false
	}

	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		s.log.Error("Redis expire error", "error", err, "key", key)
		return false
	}
	return true
}

// SetAdd adds a member to the set stored at key. Adding a member that is
// already present succeeds without effect.
func (s *RedisStore) SetAdd(ctx context.Context, key string, member string) bool {
	if !s.IsAvailable(ctx) {
		return false
	}

	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		s.log.Error("Redis sadd error", "error", err, "key", key)
		return false
	}
	return true
}

// SetRemove removes a member from the set stored at key.
func (s *RedisStore) SetRemove(ctx context.Context, key string, member string) bool {
	if !s.IsAvailable(ctx) {
		return false
	}

	if err := s.client.SRem(ctx, key, member).Err(); err != nil {
		s.log.Error("Redis srem error", "error", err, "key", key)
		return false
	}
	return true
}

// SetMembers returns the members of the set stored at key.
func (s *RedisStore) SetMembers(ctx context.Context, key string) ([]string, bool) {
	if !s.IsAvailable(ctx) {
		return nil, false
	}

	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		s.log.Error("Redis smembers error", "error", err, "key", key)
		return nil, false
	}
	return members, true
}

// SetIsMember tests membership of the set stored at key.
func (s *RedisStore) SetIsMember(ctx context.Context, key string, member string) bool {
	if !s.IsAvailable(ctx) {
		return false
	}

	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		s.log.Error("Redis sismember error", "error", err, "key", key)
		return false
	}
	return ok
}

// ListPush serializes value and prepends it to the list stored at key.
func (s *RedisStore) ListPush(ctx context.Context, key string, value interface{}) bool {
	if !s.IsAvailable(ctx) {
		return false
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.log.Error("Redis list marshal error", "error", err, "key", key)
		return false
	}

	if err := s.client.LPush(ctx, key, data).Err(); err != nil {
		s.log.Error("Redis lpush error", "error", err, "key", key)
		return false
	}
	return true
}

// ListTrim bounds the list stored at key to the given index range.
func (s *RedisStore) ListTrim(ctx context.Context, key string, start, stop int64) bool {
	if !s.IsAvailable(ctx) {
		return false
	}

	if err := s.client.LTrim(ctx, key, start, stop).Err(); err != nil {
		s.log.Error("Redis ltrim error", "error", err, "key", key)
		return false
	}
	return true
}

// ListRange returns the raw serialized elements in the given index range.
func (s *RedisStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, bool) {
	if !s.IsAvailable(ctx) {
		return nil, false
	}

	items, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		s.log.Error("Redis lrange error", "error", err, "key", key)
		return nil, false
	}
	return items, true
}

// ListSet overwrites the element at index with the serialized value.
func (s *RedisStore) ListSet(ctx context.Context, key string, index int64, value interface{}) bool {
	if !s.IsAvailable(ctx) {
		return false
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.log.Error("Redis list marshal error", "error", err, "key", key)
		return false
	}

	if err := s.client.LSet(ctx, key, index, data).Err(); err != nil {
		s.log.Error("Redis lset error", "error", err, "key", key)
		return false
	}
	return true
}

// ListLen returns the length of the list stored at key.
func (s *RedisStore) ListLen(ctx context.Context, key string) (int64, bool) {
	if !s.IsAvailable(ctx) {
		return 0, false
	}

	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		s.log.Error("Redis llen error", "error", err, "key", key)
		return 0, false
	}
	return n, true
}

// Stats exposes the adapter's hit/miss counters.
func (s *RedisStore) Stats() map[string]interface{} {
	return s.metrics.GetStats()
}
