package nav

import (
	"errors"
	"log"
	"sort"
)

// ErrNotFound is returned by GetPath when no cached entry exists and
// generation is disallowed. It is an outcome, not a failure.
var ErrNotFound = errors.New("path not found")

// Store is the durable second tier. It is authoritative across restarts:
// the memory tier only ever holds a subset of what the store holds.
type Store interface {
	Get(key string) (CachedPath, bool, error)
	Put(p CachedPath) error
	Checksums() (map[string]string, error)
	Count() (int, error)
}

type CacheConfig struct {
	// MemoryCapacity bounds the LRU tier.
	MemoryCapacity int
	Generator      GeneratorConfig
}

func (c *CacheConfig) applyDefaults() {
	if c.MemoryCapacity <= 0 {
		c.MemoryCapacity = 1000
	}
}

// Cache is the two-tier deterministic path cache.
type Cache struct {
	mem   *lruTier
	store Store
	gen   *Generator
	log   *log.Logger
}

func NewCache(cfg CacheConfig, store Store, logger *log.Logger) *Cache {
	cfg.applyDefaults()
	c := &Cache{
		mem:   newLRUTier(cfg.MemoryCapacity),
		store: store,
		gen:   NewGenerator(cfg.Generator),
		log:   logger,
	}
	if n, err := store.Count(); err != nil {
		logger.Printf("path store count: %v", err)
	} else {
		logger.Printf("path store loaded: %d entries", n)
	}
	return c
}

// GetPath returns the cached path between the rounded endpoints, generating
// and caching it on a full miss when allowGeneration is set.
func (c *Cache) GetPath(start, end Point3, allowGeneration bool) (CachedPath, error) {
	key := PathKey(start, end)

	if p, ok := c.mem.Get(key); ok {
		return p, nil
	}
	p, ok, err := c.store.Get(key)
	if err != nil {
		return CachedPath{}, err
	}
	if ok {
		c.mem.Put(p)
		return p, nil
	}
	if !allowGeneration {
		return CachedPath{}, ErrNotFound
	}

	p = c.gen.Generate(start, end)
	c.mem.Put(p)
	if err := c.store.Put(p); err != nil {
		// The entry stays usable from memory; durability catches up on the
		// next generation or synchronization of this key.
		c.log.Printf("path store put %s: %v", key, err)
	}
	return p, nil
}

// PreBakeCommonPaths warms the cache with bidirectional paths between every
// pair of named locations.
func (c *Cache) PreBakeCommonPaths(named map[string]Point3) {
	names := make([]string, 0, len(named))
	for n := range named {
		names = append(names, n)
	}
	sort.Strings(names)

	baked := 0
	for _, a := range names {
		for _, b := range names {
			if a == b {
				continue
			}
			if _, err := c.GetPath(named[a], named[b], true); err != nil {
				c.log.Printf("prebake %s->%s: %v", a, b, err)
				continue
			}
			baked++
		}
	}
	c.log.Printf("prebaked %d paths between %d locations", baked, len(names))
}

// SynchronizePaths installs peer-supplied entries into both tiers
// unconditionally. Peer entries win over local ones: this is how diverged
// caches converge without requiring identical local generation.
func (c *Cache) SynchronizePaths(paths []CachedPath) {
	for _, p := range paths {
		if p.Key == "" || len(p.Waypoints) == 0 {
			continue
		}
		c.mem.Put(p)
		if err := c.store.Put(p); err != nil {
			c.log.Printf("sync store put %s: %v", p.Key, err)
		}
	}
}

// ValidateCache compares local entries against a peer key->checksum map.
// A key the peer has that we lack, or hold with a different checksum, is a
// mismatch. Returns true when every key matches.
func (c *Cache) ValidateCache(checksums map[string]string) (bool, []string) {
	var mismatched []string
	for key, sum := range checksums {
		local, ok := c.lookup(key)
		if !ok || local.Checksum != sum {
			mismatched = append(mismatched, key)
		}
	}
	sort.Strings(mismatched)
	return len(mismatched) == 0, mismatched
}

func (c *Cache) lookup(key string) (CachedPath, bool) {
	if p, ok := c.mem.Get(key); ok {
		return p, true
	}
	p, ok, err := c.store.Get(key)
	if err != nil || !ok {
		return CachedPath{}, false
	}
	return p, true
}

// Checksums exports the key->checksum map of the durable tier, for peers to
// validate or synchronize against.
func (c *Cache) Checksums() (map[string]string, error) {
	return c.store.Checksums()
}

// MemoryLen reports the current LRU tier occupancy.
func (c *Cache) MemoryLen() int { return c.mem.Len() }
