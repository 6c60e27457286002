package nav

import "sync"

// MemStore is a Store backed by a plain map, for replay runs and tests
// where durability across restarts does not matter.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]CachedPath
}

func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]CachedPath)}
}

func (m *MemStore) Get(key string) (CachedPath, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.entries[key]
	return p, ok, nil
}

func (m *MemStore) Put(p CachedPath) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[p.Key] = p
	return nil
}

func (m *MemStore) Checksums() (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.entries))
	for k, p := range m.entries {
		out[k] = p.Checksum
	}
	return out, nil
}

func (m *MemStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}
