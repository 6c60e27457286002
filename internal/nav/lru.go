package nav

import (
	"container/list"
	"sync"
)

// lruTier is the bounded in-memory cache tier. Internally synchronized;
// evicts the least-recently-used entry on insert when full.
type lruTier struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recent
	entries  map[string]*list.Element
}

type lruEntry struct {
	key  string
	path CachedPath
}

func newLRUTier(capacity int) *lruTier {
	if capacity <= 0 {
		capacity = 1000
	}
	return &lruTier{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

func (l *lruTier) Get(key string) (CachedPath, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	el, ok := l.entries[key]
	if !ok {
		return CachedPath{}, false
	}
	l.order.MoveToFront(el)
	return el.Value.(*lruEntry).path, true
}

func (l *lruTier) Put(p CachedPath) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.entries[p.Key]; ok {
		el.Value.(*lruEntry).path = p
		l.order.MoveToFront(el)
		return
	}
	if l.order.Len() >= l.capacity {
		back := l.order.Back()
		if back != nil {
			l.order.Remove(back)
			delete(l.entries, back.Value.(*lruEntry).key)
		}
	}
	l.entries[p.Key] = l.order.PushFront(&lruEntry{key: p.Key, path: p})
}

func (l *lruTier) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
