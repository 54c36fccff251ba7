package services

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"podagg/config"
	"podagg/models"
)

// CacheMode indicates which cache backend is active
type CacheMode string

const (
	CacheModeRedis    CacheMode = "redis"
	CacheModeInMemory CacheMode = "in-memory"
)

const (
	keyspace          = "podagg:"
	responseKeyPrefix = keyspace + "resp:"
	geoKeyPrefix      = keyspace + "geo:"
)

// CacheService owns the process-wide caches. It routes reads and writes to
// Redis while it is healthy and to an in-memory store otherwise.
type CacheService struct {
	cfg *config.Config

	// Redis
	redis      *redis.Client
	redisStore *redisStore
	mode       CacheMode
	modeMutex  sync.RWMutex

	// In-memory fallback
	memory *memoryStore

	// Optional persistent tier behind the geo cache
	geoTier CacheStore

	Responses *TTLCache[models.CachedResponse]
	Geo       *TTLCache[models.GeoLocation]

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewCacheService builds the response and geolocation caches. geoTier may be
// nil; when set, geolocations are also persisted there.
func NewCacheService(cfg *config.Config, metrics *Metrics, geoTier CacheStore) *CacheService {
	cs := &CacheService{
		cfg:      cfg,
		memory:   newMemoryStore(),
		geoTier:  geoTier,
		stopChan: make(chan struct{}),
		mode:     CacheModeInMemory, // Start in memory mode
	}

	if cfg.Redis.Enabled {
		cs.connectRedis()
	} else {
		log.Println("Redis disabled in config, using in-memory cache only")
	}

	cs.Responses = NewTTLCache[models.CachedResponse]("response", responseKeyPrefix,
		cfg.CacheTTLDuration(), cfg.Cache.Enabled, cs, metrics)

	var geoStore CacheStore = cs
	if geoTier != nil {
		geoStore = newLayeredStore(cs, geoTier, cfg.GeoCacheTTLDuration())
	}
	cs.Geo = NewTTLCache[models.GeoLocation]("geo", geoKeyPrefix,
		cfg.GeoCacheTTLDuration(), true, geoStore, metrics)

	return cs
}

// connectRedis attempts to connect to Redis with improved error handling
func (cs *CacheService) connectRedis() {
	if cs.cfg.Redis.Address == "" {
		log.Println("Redis address not configured, using in-memory cache")
		return
	}

	options := &redis.Options{
		Addr:         cs.cfg.Redis.Address,
		Password:     cs.cfg.Redis.Password,
		DB:           cs.cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   1,
		PoolTimeout:  5 * time.Second,
	}

	if cs.cfg.Redis.UseTLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		log.Printf("TLS enabled for Redis connection")
	}

	cs.redis = redis.NewClient(options)
	cs.redisStore = newRedisStore(cs.redis)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pong, err := cs.redis.Ping(ctx).Result()
	if err != nil {
		log.Printf("⚠️  Redis connection failed: %v", err)
		log.Printf("⚠️  Running in IN-MEMORY mode")
		cs.setMode(CacheModeInMemory)
		return
	}

	log.Printf("✓ Redis connected successfully (response: %s)", pong)
	cs.setMode(CacheModeRedis)
}

// setMode safely updates the cache mode
func (cs *CacheService) setMode(mode CacheMode) {
	cs.modeMutex.Lock()
	defer cs.modeMutex.Unlock()
	cs.mode = mode
}

// getMode safely reads the cache mode
func (cs *CacheService) getMode() CacheMode {
	cs.modeMutex.RLock()
	defer cs.modeMutex.RUnlock()
	return cs.mode
}

// Start launches the Redis health monitor.
func (cs *CacheService) Start() {
	if cs.redis != nil {
		go cs.runHealthCheckLoop()
	}
}

func (cs *CacheService) Stop() {
	cs.stopOnce.Do(func() {
		close(cs.stopChan)
		if cs.redis != nil {
			cs.redis.Close()
		}
	})
}

// runHealthCheckLoop monitors Redis health
func (cs *CacheService) runHealthCheckLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cs.checkRedisHealth()
		case <-cs.stopChan:
			return
		}
	}
}

// checkRedisHealth verifies Redis is responsive and switches modes
func (cs *CacheService) checkRedisHealth() {
	if cs.redis == nil {
		return
	}

	mode := cs.getMode()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := cs.redis.Ping(ctx).Result()

	if mode == CacheModeRedis && err != nil {
		log.Printf("⚠️  Redis health check failed: %v", err)
		log.Printf("⚠️  Switching to IN-MEMORY mode")
		cs.setMode(CacheModeInMemory)
	} else if mode == CacheModeInMemory && err == nil {
		log.Printf("✓ Redis reconnected! Switching back to REDIS mode")
		cs.syncInMemoryToRedis()
		cs.setMode(CacheModeRedis)
	}
}

// syncInMemoryToRedis copies in-memory cache to Redis on reconnection
func (cs *CacheService) syncInMemoryToRedis() {
	ctx := context.Background()
	synced := 0
	cs.memory.each(func(key string, data []byte, ttl time.Duration) {
		if err := cs.redisStore.Set(ctx, key, data, ttl); err == nil {
			synced++
		}
	})
	log.Printf("Synced %d items to Redis", synced)
}

// ============================================
// CacheStore routed to the active backend
// ============================================

func (cs *CacheService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if cs.getMode() == CacheModeRedis {
		data, found, err := cs.redisStore.Get(ctx, key)
		if err == nil {
			return data, found, nil
		}
		// On Redis error, check in-memory fallback
		log.Printf("Redis GET failed for '%s': %v (checking in-memory)", key, err)
	}
	return cs.memory.Get(ctx, key)
}

func (cs *CacheService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if cs.getMode() == CacheModeRedis {
		err := cs.redisStore.Set(ctx, key, value, ttl)
		if err == nil {
			return nil
		}
		log.Printf("Redis SET failed for '%s': %v (falling back to in-memory)", key, err)
	}
	return cs.memory.Set(ctx, key, value, ttl)
}

func (cs *CacheService) Delete(ctx context.Context, key string) error {
	_ = cs.memory.Delete(ctx, key)
	if cs.getMode() == CacheModeRedis {
		return cs.redisStore.Delete(ctx, key)
	}
	return nil
}

func (cs *CacheService) Clear(ctx context.Context, prefix string) (int, error) {
	deleted, _ := cs.memory.Clear(ctx, prefix)
	if cs.getMode() == CacheModeRedis {
		n, err := cs.redisStore.Clear(ctx, prefix)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// ============================================
// Utility Methods
// ============================================

func (cs *CacheService) GetCacheMode() CacheMode {
	return cs.getMode()
}

// ClearCache drops every response and geolocation entry, including the
// persistent geo tier.
func (cs *CacheService) ClearCache(ctx context.Context) (int, error) {
	deleted, err := cs.Clear(ctx, keyspace)
	if err != nil {
		return deleted, err
	}

	if cs.geoTier != nil {
		n, err := cs.geoTier.Clear(ctx, geoKeyPrefix)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}

	log.Printf("Cache cleared (%d keys deleted, mode: %s)", deleted, cs.getMode())
	return deleted, nil
}

func (cs *CacheService) GetCacheStats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"mode":                   string(cs.getMode()),
		"redis_enabled":          cs.cfg.Redis.Enabled,
		"response_cache_enabled": cs.Responses.Enabled(),
		"response_ttl_seconds":   int(cs.Responses.TTL().Seconds()),
		"geo_ttl_seconds":        int(cs.Geo.TTL().Seconds()),
		"persistent_geo_tier":    cs.geoTier != nil,
		"in_memory_keys":         cs.memory.Len(),
	}

	if cs.getMode() == CacheModeRedis {
		if dbSize, err := cs.redisStore.DBSize(ctx); err == nil {
			stats["redis_keys"] = dbSize
		}
	}

	return stats
}

// ============================================
// Typed TTL caches
// ============================================

// CacheEntry is one stored payload with its creation time. Entries are
// replaced whole, never mutated.
type CacheEntry[T any] struct {
	Value     T         `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// TTLCache is a typed view over a CacheStore. An entry is valid while
// now - timestamp <= ttl; expired entries are deleted on lookup.
type TTLCache[T any] struct {
	name    string
	prefix  string
	ttl     time.Duration
	enabled bool
	store   CacheStore
	now     func() time.Time
	metrics *Metrics
}

func NewTTLCache[T any](name, prefix string, ttl time.Duration, enabled bool, store CacheStore, metrics *Metrics) *TTLCache[T] {
	return &TTLCache[T]{
		name:    name,
		prefix:  prefix,
		ttl:     ttl,
		enabled: enabled,
		store:   store,
		now:     time.Now,
		metrics: metrics,
	}
}

func (c *TTLCache[T]) Enabled() bool {
	return c.enabled
}

func (c *TTLCache[T]) TTL() time.Duration {
	return c.ttl
}

func (c *TTLCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	if !c.enabled {
		return zero, false
	}

	fullKey := c.prefix + key
	data, found, err := c.store.Get(ctx, fullKey)
	if err != nil {
		log.Printf("⚠️  %s cache read failed for %s: %v", c.name, key, err)
	}
	if err != nil || !found {
		c.metrics.observeCache(c.name, false)
		return zero, false
	}

	var entry CacheEntry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Printf("⚠️  %s cache entry for %s is corrupt: %v", c.name, key, err)
		_ = c.store.Delete(ctx, fullKey)
		c.metrics.observeCache(c.name, false)
		return zero, false
	}

	if c.now().Sub(entry.Timestamp) > c.ttl {
		_ = c.store.Delete(ctx, fullKey)
		c.metrics.observeCache(c.name, false)
		return zero, false
	}

	c.metrics.observeCache(c.name, true)
	return entry.Value, true
}

func (c *TTLCache[T]) Set(ctx context.Context, key string, value T) {
	if !c.enabled {
		return
	}

	data, err := json.Marshal(CacheEntry[T]{Value: value, Timestamp: c.now()})
	if err != nil {
		log.Printf("⚠️  %s cache marshal failed for %s: %v", c.name, key, err)
		return
	}

	if err := c.store.Set(ctx, c.prefix+key, data, c.ttl); err != nil {
		log.Printf("⚠️  %s cache write failed for %s: %v", c.name, key, err)
	}
}
