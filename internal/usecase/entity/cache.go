package entity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/metrics"
)

// Loader fetches a lookup from the backing store.
type Loader interface {
	FetchLookup(ctx context.Context, bucket, key string) (domain.EntityLookup, error)
}

type cacheEntry struct {
	lookup   domain.EntityLookup
	loadedAt time.Time
}

// Cache keeps parsed lookups per (bucket, key). Reads share a read lock,
// refreshes are coalesced so at most one load per key is in flight.
type Cache struct {
	loader Loader
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	gen     map[string]uint64 // bumped by Invalidate
	group   singleflight.Group
}

// NewCache wraps loader. A ttl <= 0 keeps entries until invalidated.
func NewCache(loader Loader, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		loader:  loader,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
		gen:     make(map[string]uint64),
	}
}

func cacheKey(bucket, key string) string { return bucket + "/" + key }

// FetchLookup returns the cached lookup or loads it. A failed load is returned
// as is and leaves any previous entry untouched.
func (c *Cache) FetchLookup(ctx context.Context, bucket, key string) (domain.EntityLookup, error) {
	k := cacheKey(bucket, key)

	c.mu.RLock()
	e, ok := c.entries[k]
	gen := c.gen[k]
	c.mu.RUnlock()

	if ok && c.fresh(e) {
		metrics.LookupCacheTotal.WithLabelValues("hit").Inc()
		return e.lookup, nil
	}
	if ok {
		metrics.LookupCacheTotal.WithLabelValues("refresh").Inc()
	} else {
		metrics.LookupCacheTotal.WithLabelValues("miss").Inc()
	}

	v, err, _ := c.group.Do(k, func() (any, error) {
		// one caller giving up must not fail the others waiting on this load
		lookup, err := c.loader.FetchLookup(context.WithoutCancel(ctx), bucket, key)
		if err != nil {
			return domain.EntityLookup{}, err
		}
		c.mu.Lock()
		// an invalidation during the load means the document may already be stale
		if c.gen[k] == gen {
			c.entries[k] = cacheEntry{lookup: lookup, loadedAt: c.now()}
		}
		c.mu.Unlock()
		return lookup, nil
	})
	if err != nil {
		return domain.EntityLookup{}, err
	}
	return v.(domain.EntityLookup), nil
}

func (c *Cache) fresh(e cacheEntry) bool {
	return c.ttl <= 0 || c.now().Sub(e.loadedAt) < c.ttl
}

// Invalidate drops the entry for (bucket, key) unless version matches the cached revision.
// An empty version always drops.
func (c *Cache) Invalidate(bucket, key, version string) {
	k := cacheKey(bucket, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if ok && version != "" && version == e.lookup.Version() {
		c.logger.Debug("Lookup already at published version", zap.String("lookup", k), zap.String("version", version))
		return
	}
	c.gen[k]++
	c.group.Forget(k)
	if !ok {
		return
	}
	delete(c.entries, k)
	metrics.LookupCacheTotal.WithLabelValues("invalidated").Inc()
	c.logger.Info("Lookup invalidated",
		zap.String("lookup", k),
		zap.String("cached_version", e.lookup.Version()),
		zap.String("published_version", version),
	)
}
