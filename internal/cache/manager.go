package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/federated-search-service/internal/observability"
)

// ManagerConfig configures the tiered cache manager.
type ManagerConfig struct {
	// L1Size is the per-strategy entry capacity of the in-process tier.
	L1Size int

	// L3Capacity bounds the large local tier. Zero uses DefaultL3Capacity.
	L3Capacity int

	// TTLOverrides replaces the default TTL profile per strategy.
	TTLOverrides map[Strategy]TTLProfile
}

// Manager is the tiered cache. Reads walk L1, L2, L3 and promote hits toward
// L1; writes land in every tier with the strategy's per-tier TTL. The shared
// tier failing never fails a call: the read or write degrades to the
// remaining tiers.
type Manager struct {
	l1 *l1Store
	l2 SharedStore
	l3 *l3Store

	ttls    map[Strategy]TTLProfile
	logger  zerolog.Logger
	metrics *observability.Metrics

	statsMu sync.Mutex
	stats   Stats
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	L1Hits          int64         `json:"l1Hits"`
	L2Hits          int64         `json:"l2Hits"`
	L3Hits          int64         `json:"l3Hits"`
	Misses          int64         `json:"misses"`
	Errors          int64         `json:"errors"`
	AvgResponseTime time.Duration `json:"avgResponseTime"`
	L1Entries       int           `json:"l1Entries"`
	L3Entries       int           `json:"l3Entries"`

	lookups   int64
	totalTime time.Duration
}

// NewManager creates the tiered cache. shared may be nil, in which case the
// L2 tier is skipped entirely.
func NewManager(cfg ManagerConfig, shared SharedStore, logger zerolog.Logger, metrics *observability.Metrics) *Manager {
	m := &Manager{
		l1:      newL1Store(cfg.L1Size, cfg.TTLOverrides),
		l2:      shared,
		ttls:    cfg.TTLOverrides,
		logger:  logger.With().Str("component", "cache").Logger(),
		metrics: metrics,
	}
	m.l3 = newL3Store(cfg.L3Capacity, func(count int) {
		if m.metrics != nil {
			m.metrics.RecordCacheEvictions(count)
		}
	})
	return m
}

// Get looks the key up tier by tier. A hit below L1 is promoted into the
// faster tiers with their own TTLs. Returns ErrMiss when no tier holds the
// key.
func (m *Manager) Get(ctx context.Context, key string, strategy Strategy) ([]byte, error) {
	start := time.Now()
	defer func() {
		m.observe(time.Since(start))
	}()

	if value, ok := m.l1.get(key, strategy); ok {
		m.recordHit("l1", strategy)
		return value, nil
	}

	ttl := TTLFor(strategy, m.ttls)

	if m.l2 != nil {
		value, err := m.l2.Get(ctx, key)
		switch {
		case err == nil:
			m.l1.set(key, value, strategy)
			m.recordHit("l2", strategy)
			return value, nil
		case !errors.Is(err, ErrMiss):
			m.recordError("l2", err)
		}
	}

	if value, ok := m.l3.get(key); ok {
		if m.l2 != nil {
			if err := m.l2.SetEx(ctx, key, value, ttl.L2); err != nil {
				m.recordError("l2", err)
			}
		}
		m.l1.set(key, value, strategy)
		m.recordHit("l3", strategy)
		return value, nil
	}

	m.recordMiss(strategy)
	return nil, ErrMiss
}

// Set writes the value into every tier using the strategy's per-tier TTLs.
// A shared-tier failure is logged and does not fail the call.
func (m *Manager) Set(ctx context.Context, key string, value []byte, strategy Strategy) error {
	ttl := TTLFor(strategy, m.ttls)

	m.l1.set(key, value, strategy)
	m.l3.set(key, value, ttl.L3)

	if m.l2 != nil {
		if err := m.l2.SetEx(ctx, key, value, ttl.L2); err != nil {
			m.recordError("l2", err)
		}
	}
	return nil
}

// Delete removes the key from every tier.
func (m *Manager) Delete(ctx context.Context, key string) error {
	m.l1.delete(key)
	m.l3.delete(key)
	if m.l2 != nil {
		if err := m.l2.Del(ctx, key); err != nil {
			m.recordError("l2", err)
		}
	}
	return nil
}

// InvalidatePattern removes every key containing the substring across all
// tiers and returns the number of entries removed from the local tiers.
func (m *Manager) InvalidatePattern(ctx context.Context, substring string) int {
	removed := m.l1.deletePattern(substring)
	removed += m.l3.deletePattern(substring)

	if m.l2 != nil {
		keys, err := m.l2.Keys(ctx, "*"+substring+"*")
		if err != nil {
			m.recordError("l2", err)
		} else if len(keys) > 0 {
			if err := m.l2.Del(ctx, keys...); err != nil {
				m.recordError("l2", err)
			}
		}
	}

	m.logger.Debug().
		Str("pattern", substring).
		Int("removed", removed).
		Msg("invalidated cache entries")
	return removed
}

// Clear empties every tier.
func (m *Manager) Clear(ctx context.Context) {
	m.l1.purge()
	m.l3.purge()
	if m.l2 != nil {
		if err := m.l2.FlushDB(ctx); err != nil {
			m.recordError("l2", err)
		}
	}
}

// GenerateKey builds a fixed-length cache key: the namespace stays readable
// for pattern invalidation, the parts are hashed.
func GenerateKey(namespace string, parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return namespace + ":" + hex.EncodeToString(h[:16])
}

// Metrics returns a snapshot of the cache counters.
func (m *Manager) Metrics() Stats {
	m.statsMu.Lock()
	snapshot := m.stats
	if snapshot.lookups > 0 {
		snapshot.AvgResponseTime = snapshot.totalTime / time.Duration(snapshot.lookups)
	}
	m.statsMu.Unlock()

	snapshot.L1Entries = m.l1.len()
	snapshot.L3Entries = m.l3.len()
	return snapshot
}

func (m *Manager) recordHit(tier string, strategy Strategy) {
	m.statsMu.Lock()
	switch tier {
	case "l1":
		m.stats.L1Hits++
	case "l2":
		m.stats.L2Hits++
	case "l3":
		m.stats.L3Hits++
	}
	m.statsMu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordCacheHit(tier, string(strategy))
	}
}

func (m *Manager) recordMiss(strategy Strategy) {
	m.statsMu.Lock()
	m.stats.Misses++
	m.statsMu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordCacheMiss(string(strategy))
	}
}

func (m *Manager) recordError(tier string, err error) {
	m.statsMu.Lock()
	m.stats.Errors++
	m.statsMu.Unlock()

	m.logger.Warn().Err(err).Str("tier", tier).Msg("cache tier error, degrading")
	if m.metrics != nil {
		m.metrics.RecordCacheError(tier)
	}
}

func (m *Manager) observe(d time.Duration) {
	m.statsMu.Lock()
	m.stats.lookups++
	m.stats.totalTime += d
	m.statsMu.Unlock()
}
