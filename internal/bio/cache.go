package bio

import (
	"sync"

	"github.com/ikle/go-ufs1/internal/devio"
	"github.com/ikle/go-ufs1/internal/diag"
	"github.com/ikle/go-ufs1/internal/hash"
	"github.com/ikle/go-ufs1/internal/metrics"
)

const (
	cacheOrder = 10
	cacheSize  = 1 << cacheOrder
	cacheMask  = cacheSize - 1

	// TableSize is the cache's fixed slot count, exported so callers
	// (the CLI's --cache-size flag) can report or validate against the
	// real, compile-time table size rather than guessing at it.
	TableSize = cacheSize
)

// Cache is a direct-mapped, fixed-size table from (device, offset) to
// a resident Buffer. Only one buffer occupies a slot at a time; a
// colliding push evicts the previous occupant immediately — there is
// no LRU, chaining, or rehash, matching the spec's minimal collision
// policy.
type Cache struct {
	mu    sync.Mutex
	table [cacheSize]*Buffer

	registry *devio.Registry
	metrics  *metrics.Cache
	logger   diag.Logger
}

// NewCache builds an empty cache backed by registry, recording hit/
// miss/eviction/pending counters on m (pass metrics.Noop() to disable)
// and logging swallowed writeback failures through logger (nil
// disables logging).
func NewCache(registry *devio.Registry, m *metrics.Cache, logger diag.Logger) *Cache {
	if m == nil {
		m = metrics.Noop()
	}

	return &Cache{registry: registry, metrics: m, logger: logger}
}

func slotIndex(dev devio.Handle, offset int64) int {
	iv := hash.Step(0, uint32(dev))
	iv = hash.Step(iv, uint32(offset))
	iv = hash.Step(iv, uint32(offset>>32))

	return int(hash.Final(iv) & cacheMask)
}

// lookup returns a fresh reference to the resident buffer in (dev,
// offset)'s slot if it matches and covers count bytes, or nil. The
// match check and the Ref both happen under c.mu, so a concurrent push
// can't evict and tear down the slot's occupant between the two.
func (c *Cache) lookup(dev devio.Handle, offset int64, count int) *Buffer {
	i := slotIndex(dev, offset)

	c.mu.Lock()
	b := c.table[i]
	hit := b != nil && b.dev == dev && b.offset == offset && b.count >= count
	if hit {
		b.Ref()
	}
	c.mu.Unlock()

	if hit {
		c.metrics.Hits.Inc()
		return b
	}

	c.metrics.Misses.Inc()
	return nil
}

// push replaces b's slot. The previously-resident buffer, if any, has
// its cache reference released only after the cache mutex is dropped,
// so its teardown (if it was the last reference) never runs inside
// the critical section.
func (c *Cache) push(b *Buffer) {
	i := slotIndex(b.dev, b.offset)

	c.mu.Lock()
	old := c.table[i]
	c.table[i] = b
	c.mu.Unlock()

	if old != nil {
		c.metrics.Evictions.Inc()
		old.Put()
	}
}
