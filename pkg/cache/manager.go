package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

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

// Ping checks the Redis connection.
func (m *Manager) Ping(ctx context.Context) error {
	return m.redis.Ping(ctx).Err()
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or entry is expired.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(key.Resource).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	entry, err := m.decode(ctx, key, data)
	if err != nil {
		return nil, err
	}
	CacheHits.WithLabelValues(key.Resource).Inc()
	return entry, nil
}

// GetMany retrieves entries for many keys with one MGET. Only hits are
// present in the returned map, keyed by CacheKey.ID. Corrupt entries count
// as misses.
func (m *Manager) GetMany(ctx context.Context, keys []CacheKey) (map[string]*Entry, error) {
	found := make(map[string]*Entry, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = k.String()
	}

	values, err := m.redis.MGet(ctx, redisKeys...).Result()
	if err != nil {
		CacheErrors.WithLabelValues("mget").Inc()
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	for i, v := range values {
		key := keys[i]
		s, ok := v.(string)
		if !ok {
			CacheMisses.WithLabelValues(key.Resource).Inc()
			continue
		}
		entry, err := m.decode(ctx, key, []byte(s))
		if err != nil {
			continue
		}
		CacheHits.WithLabelValues(key.Resource).Inc()
		found[key.ID] = entry
	}

	return found, nil
}

// Set stores a cache entry with TTL based on the entry's Expires field.
// The entry will be automatically removed from Redis when it expires.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *Entry) error {
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

	CacheWrittenBytes.WithLabelValues(key.Resource).Add(float64(len(data)))
	return nil
}

// SetMany stores entries through a single pipeline. Expired or nil entries
// are skipped.
func (m *Manager) SetMany(ctx context.Context, entries map[CacheKey]*Entry) error {
	pipe := m.redis.Pipeline()
	queued := 0
	written := make(map[string]int)

	for key, entry := range entries {
		if entry == nil {
			continue
		}
		ttl := entry.TTL()
		if ttl <= 0 {
			continue
		}
		data, err := json.Marshal(entry)
		if err != nil {
			CacheErrors.WithLabelValues("set").Inc()
			return fmt.Errorf("marshal cache entry %s: %w", key, err)
		}
		pipe.Set(ctx, key.String(), data, ttl)
		written[key.Resource] += len(data)
		queued++
	}

	if queued == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis pipeline set: %w", err)
	}

	for resource, n := range written {
		CacheWrittenBytes.WithLabelValues(resource).Add(float64(n))
	}
	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (m *Manager) decode(ctx context.Context, key CacheKey, data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.WithLabelValues(key.Resource).Inc()
		return nil, ErrCacheMiss
	}
	return &entry, nil
}
