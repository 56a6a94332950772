package cache

import (
	"strings"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// l1Store is the in-process tier: one expiring LRU per strategy, since each
// strategy carries its own L1 TTL and the LRU's lifetime is fixed at
// construction.
type l1Store struct {
	caches map[Strategy]*expirable.LRU[string, []byte]
}

// newL1Store builds the per-strategy LRUs. size is the entry capacity of each
// strategy's cache.
func newL1Store(size int, overrides map[Strategy]TTLProfile) *l1Store {
	if size <= 0 {
		size = 1024
	}
	caches := make(map[Strategy]*expirable.LRU[string, []byte], len(AllStrategies))
	for _, strategy := range AllStrategies {
		ttl := TTLFor(strategy, overrides).L1
		caches[strategy] = expirable.NewLRU[string, []byte](size, nil, ttl)
	}
	return &l1Store{caches: caches}
}

func (s *l1Store) get(key string, strategy Strategy) ([]byte, bool) {
	c, ok := s.caches[strategy]
	if !ok {
		return nil, false
	}
	return c.Get(key)
}

func (s *l1Store) set(key string, value []byte, strategy Strategy) {
	if c, ok := s.caches[strategy]; ok {
		c.Add(key, value)
	}
}

func (s *l1Store) delete(key string) {
	for _, c := range s.caches {
		c.Remove(key)
	}
}

// deletePattern removes every key containing the substring, across all
// strategies. Returns the number of removed entries.
func (s *l1Store) deletePattern(substring string) int {
	removed := 0
	for _, c := range s.caches {
		for _, key := range c.Keys() {
			if strings.Contains(key, substring) {
				if c.Remove(key) {
					removed++
				}
			}
		}
	}
	return removed
}

func (s *l1Store) purge() {
	for _, c := range s.caches {
		c.Purge()
	}
}

func (s *l1Store) len() int {
	total := 0
	for _, c := range s.caches {
		total += c.Len()
	}
	return total
}
