package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/sirupsen/logrus"
)

// LookupCache is a generic interface for caching RPC lookup results with
// TTL-based expiration. Receipts, client metadata and snapshot handles are
// all cached through it so repeated lookups do not re-hit the node.
type LookupCache[K comparable, V any] interface {
	// Start initializes the cache and begins background cleanup operations.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the cache and its background operations.
	Stop() error
	// Get returns the cached value for key and whether it was present.
	Get(key K) (V, bool)
	// Set stores a value under key with the cache's default TTL.
	Set(key K, value V)
	// GetCache returns the underlying TTL cache.
	GetCache() *ttlcache.Cache[K, V]
}

// Config holds configuration options for the LookupCache.
type Config struct {
	// TTL is the time-to-live for cached entries.
	TTL time.Duration
	// Capacity sets the maximum number of items the cache can hold.
	// If 0, the cache has no size limit.
	Capacity uint64
	// OnEviction is called when an item is evicted from the cache.
	OnEviction func(key any, value any, reason ttlcache.EvictionReason)
	// Metrics, if set, records hit/miss/insertion/eviction counts.
	Metrics *Metrics
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		TTL:      5 * time.Minute,
		Capacity: 0, // No limit
	}
}

// lookupCache implements the LookupCache interface.
type lookupCache[K comparable, V any] struct {
	cache   *ttlcache.Cache[K, V]
	log     logrus.FieldLogger
	metrics *Metrics

	cancel context.CancelFunc
}

// NewLookupCacheWithConfig creates a new generic LookupCache instance with a full configuration.
func NewLookupCacheWithConfig[K comparable, V any](log logrus.FieldLogger, config Config) LookupCache[K, V] {
	opts := []ttlcache.Option[K, V]{
		ttlcache.WithTTL[K, V](config.TTL),
	}

	if config.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[K, V](config.Capacity))
	}

	cache := ttlcache.New(opts...)

	c := &lookupCache[K, V]{
		cache:   cache,
		log:     log.WithField("component", "cache"),
		metrics: config.Metrics,
	}

	cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[K, V]) {
		if c.metrics != nil {
			c.metrics.IncEvictions()
		}

		if config.OnEviction != nil {
			config.OnEviction(item.Key(), item.Value(), reason)
		}
	})

	return c
}

// NewLookupCache creates a new LookupCache with just a TTL duration.
// This is a convenience function for simple use cases.
func NewLookupCache[K comparable, V any](log logrus.FieldLogger, ttl time.Duration) LookupCache[K, V] {
	config := DefaultConfig()
	config.TTL = ttl

	return NewLookupCacheWithConfig[K, V](log, config)
}

// Start initializes the cache and begins background cleanup operations.
func (c *lookupCache[K, V]) Start(ctx context.Context) error {
	_, c.cancel = context.WithCancel(ctx)

	go func() {
		c.log.Debug("Starting cache")
		c.cache.Start()
		c.log.Debug("Cache stopped")
	}()

	c.log.Info("Cache started")

	return nil
}

// Stop gracefully shuts down the cache and its background operations.
func (c *lookupCache[K, V]) Stop() error {
	c.log.Info("Stopping cache")

	if c.cancel != nil {
		c.cancel()
	}

	c.cache.Stop()

	c.log.Info("Cache stopped")

	return nil
}

// Get returns the cached value for key and whether it was present.
func (c *lookupCache[K, V]) Get(key K) (V, bool) {
	item := c.cache.Get(key)
	if item == nil {
		if c.metrics != nil {
			c.metrics.IncMisses()
		}

		var zero V

		return zero, false
	}

	if c.metrics != nil {
		c.metrics.IncHits()
	}

	return item.Value(), true
}

// Set stores a value under key with the cache's default TTL.
func (c *lookupCache[K, V]) Set(key K, value V) {
	c.cache.Set(key, value, ttlcache.DefaultTTL)

	if c.metrics != nil {
		c.metrics.IncInsertions()
		c.metrics.SetSize(float64(c.cache.Len()))
	}
}

// GetCache returns the underlying TTL cache.
func (c *lookupCache[K, V]) GetCache() *ttlcache.Cache[K, V] {
	return c.cache
}
