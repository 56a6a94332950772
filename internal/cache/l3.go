package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultL3Capacity bounds the large local tier.
const DefaultL3Capacity = 50000

// evictionFraction is the share of oldest entries dropped when the tier
// exceeds capacity.
const evictionFraction = 0.2

// l3Store is the large bounded local tier. Entries expire individually, and
// when the store grows past capacity the oldest fifth (by creation time) is
// evicted in one sweep. Eviction by creation age rather than recency keeps
// the sweep a single sort instead of a full LRU bookkeeping chain, which is
// why this tier does not reuse the L1 LRU.
type l3Store struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string]*l3Entry

	evictions func(count int)
}

type l3Entry struct {
	value     []byte
	createdAt time.Time
	expiresAt time.Time
}

func newL3Store(capacity int, onEvict func(count int)) *l3Store {
	if capacity <= 0 {
		capacity = DefaultL3Capacity
	}
	return &l3Store{
		capacity:  capacity,
		entries:   make(map[string]*l3Entry),
		evictions: onEvict,
	}
}

func (s *l3Store) get(key string) ([]byte, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (s *l3Store) set(key string, value []byte, ttl time.Duration) {
	now := time.Now()
	s.mu.Lock()
	s.entries[key] = &l3Entry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	evicted := s.evictLocked()
	s.mu.Unlock()

	if evicted > 0 && s.evictions != nil {
		s.evictions(evicted)
	}
}

// evictLocked trims the store when over capacity: expired entries first, then
// the oldest 20% by creation time. Caller holds the write lock.
func (s *l3Store) evictLocked() int {
	if len(s.entries) <= s.capacity {
		return 0
	}

	evicted := 0
	now := time.Now()
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
			evicted++
		}
	}
	if len(s.entries) <= s.capacity {
		return evicted
	}

	type aged struct {
		key       string
		createdAt time.Time
	}
	all := make([]aged, 0, len(s.entries))
	for key, entry := range s.entries {
		all = append(all, aged{key: key, createdAt: entry.createdAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].createdAt.Before(all[j].createdAt)
	})

	drop := int(float64(len(all)) * evictionFraction)
	if drop < 1 {
		drop = 1
	}
	for _, a := range all[:drop] {
		delete(s.entries, a.key)
		evicted++
	}
	return evicted
}

func (s *l3Store) delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *l3Store) deletePattern(substring string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key := range s.entries {
		if strings.Contains(key, substring) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *l3Store) purge() {
	s.mu.Lock()
	s.entries = make(map[string]*l3Entry)
	s.mu.Unlock()
}

func (s *l3Store) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
