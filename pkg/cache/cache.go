// Package cache sits in front of a FileStore with a cost-weighted
// concurrent LRU of reassembled archive bytes, so repeat reads of hot
// archives skip the sector-chain walk. Meta index (type 255) reads are not
// cached.
package cache

import (
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/openscape/cachefs/pkg/metrics"
	"github.com/openscape/cachefs/pkg/storeerr"
)

// Store is the subset of FileStore that Cache wraps.
type Store interface {
	Read(typeID, fileID int) ([]byte, error)
}

const (
	defaultNumCounters = 1e7
	defaultMaxCost     = 1 << 30 // 1 GiB of cached archive bytes
	defaultBufferItems = 64

	// checksumTypeID is the meta/checksum payload type (255). Its archives
	// are never cached: the ChecksumTable already holds an in-memory
	// summary of every one of them, so caching the raw bytes too would
	// just burn LRU budget on data the process keeps redundantly anyway.
	checksumTypeID = 255
)

// Cache wraps a Store with an in-memory LRU keyed by (typeID, fileID).
type Cache struct {
	store   Store
	lru     *ristretto.Cache
	metrics *metrics.Counters
}

type key struct {
	typeID int
	fileID int
}

// New builds a Cache in front of store with this package's default sizing
// (defaultNumCounters, defaultMaxCost, defaultBufferItems). A
// nil metricsCounters is replaced with a fresh, unshared Counters.
func New(store Store, metricsCounters *metrics.Counters) (*Cache, error) {
	return NewWithConfig(store, metricsCounters, defaultNumCounters, defaultMaxCost, defaultBufferItems)
}

// NewWithConfig builds a Cache with explicit ristretto sizing parameters.
func NewWithConfig(store Store, metricsCounters *metrics.Counters, numCounters, maxCost int64, bufferItems int64) (*Cache, error) {
	if metricsCounters == nil {
		metricsCounters = metrics.New()
	}

	lru, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, storeerr.IO("cache.New", fmt.Errorf("constructing ristretto cache: %w", err))
	}
	return &Cache{store: store, lru: lru, metrics: metricsCounters}, nil
}

// Read returns the cached archive bytes for (typeID, fileID), falling
// through to the underlying store and populating the cache on a miss. The
// returned bytes are byte-identical to what store.Read would return.
// Type-255 (meta/checksum) reads always go straight to the store and are
// never inserted into the LRU.
func (c *Cache) Read(typeID, fileID int) ([]byte, error) {
	if typeID == checksumTypeID {
		return c.store.Read(typeID, fileID)
	}

	k := key{typeID, fileID}

	if v, ok := c.lru.Get(k); ok {
		c.metrics.IncCacheHit()
		return v.([]byte), nil
	}
	c.metrics.IncCacheMiss()

	data, err := c.store.Read(typeID, fileID)
	if err != nil {
		return nil, err
	}

	c.lru.Set(k, data, int64(len(data)))
	c.lru.Wait()

	return data, nil
}

// Close releases the cache's background resources. It does not close the
// underlying store.
func (c *Cache) Close() {
	c.lru.Close()
}
