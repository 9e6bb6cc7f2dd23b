// Package cache memoizes end-to-end results in Redis.
//
// Estimates and regional samples cost dozens of upstream requests each, so
// repeated requests inside the TTL window are answered from Redis.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//	key := cache.NewKey("estimate", "period", "ALL")
//
//	var res estimator.Result
//	if err := manager.GetJSON(ctx, key, &res); err == cache.ErrCacheMiss {
//		// compute and store
//		_ = manager.SetJSON(ctx, key, res, cache.DefaultTTL)
//	}
//
// Remember wraps the read-compute-write sequence and treats a nil manager as
// "caching disabled":
//
//	res, hit, err := cache.Remember(ctx, manager, key, cache.DefaultTTL, compute)
//
// # Metrics
//
//   - jsm_cache_hits_total{namespace} - Cache hits
//   - jsm_cache_misses_total{namespace} - Cache misses
//   - jsm_cache_written_bytes_total - Bytes written
//   - jsm_cache_errors_total{operation} - Cache operation errors
package cache
