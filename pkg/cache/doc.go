// Package cache provides a Redis-backed entity cache for API detail records.
//
// Detail endpoints (device details, for example) return records that change
// slowly compared to how often they are requested. The cache stores each
// record under a deterministic key so a chunked detail fetch only asks the
// API for the ids it has not seen recently.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{Resource: "device", ID: aid}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then:
//		entry, _ = cache.NewEntry(detail, 15*time.Minute)
//		_ = manager.Set(ctx, key, entry)
//	}
//
// # Batch Access
//
// GetMany reads many keys with a single MGET; SetMany writes through a
// pipeline. Both are what the device service uses around FetchChunked.
//
// # Metrics
//
//   - falcon_cache_hits_total{resource}
//   - falcon_cache_misses_total{resource}
//   - falcon_cache_written_bytes_total{resource}
//   - falcon_cache_errors_total{operation}
package cache
