package nav

import (
	"io"
	"log"
	"testing"
)

func newTestCache(t *testing.T, cfg CacheConfig) (*Cache, *MemStore) {
	t.Helper()
	store := NewMemStore()
	logger := log.New(io.Discard, "", 0)
	return NewCache(cfg, store, logger), store
}

func TestGetPath_NotFoundWithoutGeneration(t *testing.T) {
	c, _ := newTestCache(t, CacheConfig{})
	_, err := c.GetPath(Point3{}, Point3{X: 500, Z: 500}, false)
	if err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetPath_GeneratesIntoBothTiers(t *testing.T) {
	c, store := newTestCache(t, CacheConfig{})
	start, end := Point3{}, Point3{X: 5000, Z: 2500}

	p, err := c.GetPath(start, end, true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if n, _ := store.Count(); n != 1 {
		t.Fatalf("store holds %d entries, want 1", n)
	}
	if c.MemoryLen() != 1 {
		t.Fatalf("memory tier holds %d entries, want 1", c.MemoryLen())
	}

	// A second call with generation disabled must serve the cached entry.
	p2, err := c.GetPath(start, end, false)
	if err != nil {
		t.Fatalf("cached lookup: %v", err)
	}
	if p2.Checksum != p.Checksum {
		t.Fatalf("cached checksum %s, want %s", p2.Checksum, p.Checksum)
	}
}

func TestGetPath_MemoryEvictionFallsBackToStore(t *testing.T) {
	c, store := newTestCache(t, CacheConfig{MemoryCapacity: 2})

	ends := []Point3{{X: 1000}, {X: 2000}, {X: 3000}}
	for _, end := range ends {
		if _, err := c.GetPath(Point3{}, end, true); err != nil {
			t.Fatalf("generate to %+v: %v", end, err)
		}
	}
	if c.MemoryLen() != 2 {
		t.Fatalf("memory tier holds %d entries, want capacity 2", c.MemoryLen())
	}
	if n, _ := store.Count(); n != 3 {
		t.Fatalf("store holds %d entries; eviction must not touch the durable tier", n)
	}

	// The evicted entry is still served, via the store.
	if _, err := c.GetPath(Point3{}, ends[0], false); err != nil {
		t.Fatalf("evicted entry lost: %v", err)
	}
}

func TestSynchronizePaths_ServedWithoutGeneration(t *testing.T) {
	c, _ := newTestCache(t, CacheConfig{})

	start, end := Point3{X: 100}, Point3{X: 900, Z: 300}
	peer := CachedPath{
		Key:       PathKey(start, end),
		Start:     start,
		End:       end,
		Waypoints: []Point3{start, {X: 475, Z: 160}, end},
	}
	peer.Length = PathLength(peer.Waypoints)
	peer.Checksum = PathChecksum(peer.Waypoints)

	c.SynchronizePaths([]CachedPath{peer})

	got, err := c.GetPath(start, end, false)
	if err != nil {
		t.Fatalf("synced entry not served: %v", err)
	}
	if got.Checksum != peer.Checksum {
		t.Fatalf("served checksum %s, want peer's %s", got.Checksum, peer.Checksum)
	}
	if len(got.Waypoints) != 3 {
		t.Fatalf("served %d waypoints, want peer's 3", len(got.Waypoints))
	}
}

func TestSynchronizePaths_PeerEntryReplacesLocal(t *testing.T) {
	c, _ := newTestCache(t, CacheConfig{})
	start, end := Point3{}, Point3{X: 4000, Z: 4000}

	local, err := c.GetPath(start, end, true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	peer := CachedPath{
		Key:       local.Key,
		Start:     start,
		End:       end,
		Waypoints: []Point3{start, end},
	}
	peer.Length = PathLength(peer.Waypoints)
	peer.Checksum = PathChecksum(peer.Waypoints)
	c.SynchronizePaths([]CachedPath{peer})

	got, err := c.GetPath(start, end, false)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Checksum != peer.Checksum {
		t.Fatalf("local entry survived synchronization")
	}
}

func TestValidateCache_DetectsDivergence(t *testing.T) {
	c, _ := newTestCache(t, CacheConfig{})
	p, err := c.GetPath(Point3{}, Point3{X: 1500, Z: 500}, true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	ok, mismatched := c.ValidateCache(map[string]string{p.Key: p.Checksum})
	if !ok || len(mismatched) != 0 {
		t.Fatalf("matching checksum reported divergent: %v", mismatched)
	}

	ok, mismatched = c.ValidateCache(map[string]string{
		p.Key:        "deadbeef",
		"5,5,5>9,9,9": p.Checksum,
	})
	if ok {
		t.Fatalf("divergence not detected")
	}
	if len(mismatched) != 2 {
		t.Fatalf("mismatched=%v, want both keys", mismatched)
	}
}

func TestPreBakeCommonPaths_WarmsAllPairs(t *testing.T) {
	c, store := newTestCache(t, CacheConfig{})
	named := map[string]Point3{
		"a": {X: 0, Z: 0},
		"b": {X: 3000, Z: 0},
		"c": {X: 0, Z: 3000},
	}
	c.PreBakeCommonPaths(named)
	if n, _ := store.Count(); n != 6 {
		t.Fatalf("prebaked %d entries, want 6 (3 locations, both directions)", n)
	}
}
