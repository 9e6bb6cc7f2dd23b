package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultTTL is how long memoized results stay fresh.
const DefaultTTL = 5 * time.Minute

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or entry is expired.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	cacheKey := key.String()

	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(key.Namespace).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.WithLabelValues(key.Namespace).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(key.Namespace).Inc()
	return &entry, nil
}

// Set stores a cache entry with TTL based on the entry's Expires field.
// The entry will be automatically removed from Redis when it expires.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		// Already expired, don't cache
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	WrittenBytes.Add(float64(len(data)))
	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// GetJSON decodes the entry stored under key into v.
func (m *Manager) GetJSON(ctx context.Context, key Key, v any) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := entry.Decode(v); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return err
	}
	return nil
}

// SetJSON stores v under key for ttl.
func (m *Manager) SetJSON(ctx context.Context, key Key, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return m.Set(ctx, key, NewEntry(data, ttl))
}

// Remember returns the value cached under key, or computes, stores and
// returns it. A nil manager always computes. Cache failures are logged and
// never fail the call; the bool reports whether the value came from cache.
func Remember[T any](ctx context.Context, m *Manager, key Key, ttl time.Duration, compute func(context.Context) (T, error)) (T, bool, error) {
	if m != nil {
		var cached T
		err := m.GetJSON(ctx, key, &cached)
		if err == nil {
			return cached, true, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed")
		}
	}

	v, err := compute(ctx)
	if err != nil {
		return v, false, err
	}

	if m != nil {
		if err := m.SetJSON(ctx, key, v, ttl); err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
		}
	}
	return v, false, nil
}
