// Package cache provides the loader's response cache.
//
// The Manager keeps fully resolved endpoint responses in memory and makes sure
// that a cache key has at most one fetch in flight. Callers asking for a key
// that is already being fetched wait for that fetch instead of starting their
// own. Failed fetches are never stored.
//
// # Basic Usage
//
//	manager := cache.NewManager(logger)
//
//	key := cache.NewKey(host, "virtualServers", nil, nil)
//	data, err := manager.Load(ctx, key, func(ctx context.Context) (any, error) {
//		return fetchFromDevice(ctx)
//	})
//
// # Shared Store
//
// Several pollers aimed at the same device can share resolved responses
// through Redis:
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(logger,
//		cache.WithStore(cache.NewRedisStore(redisClient), time.Minute))
//
// The store is consulted inside the pending fetch, so coalescing still holds.
// Erase flushes every key of the device from the store.
//
// # Metrics
//
//   - appliance_cache_hits_total{layer="memory|store"} - Cache hits
//   - appliance_cache_misses_total - Fetches started
//   - appliance_cache_coalesced_total - Callers that joined a pending fetch
//   - appliance_cache_erases_total - Explicit erases
//   - appliance_cache_errors_total{operation} - Store operation errors
package cache
