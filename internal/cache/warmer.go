package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/federated-search-service/internal/domain"
	"github.com/helixir/federated-search-service/internal/observability"
)

// Rolling retention windows for usage tracking.
const (
	DefaultQueryWindow  = 30 * 24 * time.Hour
	DefaultRecordWindow = 7 * 24 * time.Hour
)

// commonFacetQueries are warmed on every run regardless of observed usage.
var commonFacetQueries = []string{
	"machine learning",
	"climate change",
	"cancer treatment",
	"covid-19",
	"neural networks",
}

// WarmFuncs are the operations the warmer drives. Each should populate the
// relevant cache as a side effect of executing.
type WarmFuncs struct {
	// Search runs a keyword search for a popular query.
	Search func(ctx context.Context, query string) error

	// FetchPaper refreshes one trending record by DOI.
	FetchPaper func(ctx context.Context, doi string) error

	// CheckHealth pings the providers.
	CheckHealth func(ctx context.Context) error
}

// WarmerConfig tunes the cache warmer.
type WarmerConfig struct {
	Interval     time.Duration
	TopQueries   int
	TopRecords   int
	QueryWindow  time.Duration
	RecordWindow time.Duration
}

func (c WarmerConfig) withDefaults() WarmerConfig {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
	if c.TopQueries <= 0 {
		c.TopQueries = 10
	}
	if c.TopRecords <= 0 {
		c.TopRecords = 20
	}
	if c.QueryWindow <= 0 {
		c.QueryWindow = DefaultQueryWindow
	}
	if c.RecordWindow <= 0 {
		c.RecordWindow = DefaultRecordWindow
	}
	return c
}

type popularQuery struct {
	count    int
	lastSeen time.Time
}

type trendingRecord struct {
	count      int
	lastAccess time.Time
}

// Warmer tracks query and record popularity and periodically pre-fills the
// caches with the most used entries. A run is non-reentrant: a second
// StartWarming while one is in flight is skipped.
type Warmer struct {
	cfg     WarmerConfig
	funcs   WarmFuncs
	logger  zerolog.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	queries map[string]*popularQuery
	records map[string]*trendingRecord

	warming atomic.Bool
}

// NewWarmer creates a cache warmer.
func NewWarmer(cfg WarmerConfig, funcs WarmFuncs, logger zerolog.Logger, metrics *observability.Metrics) *Warmer {
	return &Warmer{
		cfg:     cfg.withDefaults(),
		funcs:   funcs,
		logger:  logger.With().Str("component", "cache_warmer").Logger(),
		metrics: metrics,
		queries: make(map[string]*popularQuery),
		records: make(map[string]*trendingRecord),
	}
}

// RecordQueryUsage notes one execution of a keyword query.
func (w *Warmer) RecordQueryUsage(query string) {
	norm := domain.NormalizeTitle(query)
	if norm == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	q, ok := w.queries[norm]
	if !ok {
		q = &popularQuery{}
		w.queries[norm] = q
	}
	q.count++
	q.lastSeen = time.Now()
}

// RecordPaperAccess notes one access of a record by DOI.
func (w *Warmer) RecordPaperAccess(doi string) {
	if doi == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.records[doi]
	if !ok {
		r = &trendingRecord{}
		w.records[doi] = r
	}
	r.count++
	r.lastAccess = time.Now()
}

// StartWarming runs one warming pass: popular queries, trending records,
// provider health, and the common facet queries, in that order. The warm
// functions consult the caches themselves, so still-fresh entries cost one
// cache read. Each step's failure is logged and never aborts the pass.
// Returns false if a pass was already in flight.
func (w *Warmer) StartWarming(ctx context.Context) bool {
	if !w.warming.CompareAndSwap(false, true) {
		w.logger.Debug().Msg("warming already in progress, skipping")
		if w.metrics != nil {
			w.metrics.RecordWarmingRun("skipped", 0)
		}
		return false
	}
	defer w.warming.Store(false)

	start := time.Now()
	w.prune()

	w.warmQueries(ctx, w.topQueries())
	w.warmRecords(ctx, w.topRecords())
	if w.funcs.CheckHealth != nil {
		if err := w.funcs.CheckHealth(ctx); err != nil {
			w.logger.Warn().Err(err).Msg("provider health check failed during warming")
		}
	}
	w.warmQueries(ctx, commonFacetQueries)

	elapsed := time.Since(start)
	w.logger.Info().Dur("duration", elapsed).Msg("cache warming completed")
	if w.metrics != nil {
		w.metrics.RecordWarmingRun("completed", elapsed.Seconds())
	}
	return true
}

// Run executes warming passes on the configured interval until the context
// ends.
func (w *Warmer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.StartWarming(ctx)
		}
	}
}

// PopularQueries returns the currently tracked queries ordered by usage, most
// used first.
func (w *Warmer) PopularQueries() []string {
	return w.topN(-1)
}

func (w *Warmer) warmQueries(ctx context.Context, queries []string) {
	if w.funcs.Search == nil {
		return
	}
	for _, query := range queries {
		if ctx.Err() != nil {
			return
		}
		if err := w.funcs.Search(ctx, query); err != nil {
			w.logger.Warn().Err(err).Str("query", query).Msg("query warming failed")
		}
	}
}

func (w *Warmer) warmRecords(ctx context.Context, ids []string) {
	if w.funcs.FetchPaper == nil {
		return
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if err := w.funcs.FetchPaper(ctx, id); err != nil {
			w.logger.Warn().Err(err).Str("record_id", id).Msg("record warming failed")
		}
	}
}

// prune drops tracking entries outside their rolling windows.
func (w *Warmer) prune() {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	for query, q := range w.queries {
		if now.Sub(q.lastSeen) > w.cfg.QueryWindow {
			delete(w.queries, query)
		}
	}
	for id, r := range w.records {
		if now.Sub(r.lastAccess) > w.cfg.RecordWindow {
			delete(w.records, id)
		}
	}
}

func (w *Warmer) topQueries() []string {
	return w.topN(w.cfg.TopQueries)
}

// topN returns the n most used queries, all of them when n is negative.
func (w *Warmer) topN(n int) []string {
	w.mu.Lock()
	type entry struct {
		query string
		count int
	}
	entries := make([]entry, 0, len(w.queries))
	for query, q := range w.queries {
		entries = append(entries, entry{query: query, count: q.count})
	}
	w.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].query < entries[j].query
	})
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.query
	}
	return out
}

func (w *Warmer) topRecords() []string {
	w.mu.Lock()
	type entry struct {
		id    string
		count int
	}
	entries := make([]entry, 0, len(w.records))
	for id, r := range w.records {
		entries = append(entries, entry{id: id, count: r.count})
	}
	w.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].id < entries[j].id
	})
	if len(entries) > w.cfg.TopRecords {
		entries = entries[:w.cfg.TopRecords]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.id
	}
	return out
}
