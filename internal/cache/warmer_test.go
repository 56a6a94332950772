package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmer_StartWarming(t *testing.T) {
	ctx := context.Background()

	t.Run("warms top queries by usage count", func(t *testing.T) {
		var mu sync.Mutex
		var warmed []string

		w := NewWarmer(WarmerConfig{TopQueries: 2}, WarmFuncs{
			Search: func(ctx context.Context, query string) error {
				mu.Lock()
				warmed = append(warmed, query)
				mu.Unlock()
				return nil
			},
		}, zerolog.Nop(), nil)

		for i := 0; i < 5; i++ {
			w.RecordQueryUsage("transformers")
		}
		for i := 0; i < 3; i++ {
			w.RecordQueryUsage("graphene")
		}
		w.RecordQueryUsage("rare query")

		require.True(t, w.StartWarming(ctx))

		mu.Lock()
		defer mu.Unlock()
		// Top-2 tracked queries first, then the fixed facet queries.
		require.GreaterOrEqual(t, len(warmed), 2)
		assert.Equal(t, "transformers", warmed[0])
		assert.Equal(t, "graphene", warmed[1])
		assert.NotContains(t, warmed, "rare query")
		assert.Contains(t, warmed, "machine learning")
	})

	t.Run("warms trending records", func(t *testing.T) {
		var mu sync.Mutex
		var fetched []string

		w := NewWarmer(WarmerConfig{TopRecords: 1}, WarmFuncs{
			FetchPaper: func(ctx context.Context, doi string) error {
				mu.Lock()
				fetched = append(fetched, doi)
				mu.Unlock()
				return nil
			},
		}, zerolog.Nop(), nil)

		w.RecordPaperAccess("10.1234/hot")
		w.RecordPaperAccess("10.1234/hot")
		w.RecordPaperAccess("10.1234/cold")

		require.True(t, w.StartWarming(ctx))

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"10.1234/hot"}, fetched)
	})

	t.Run("a failing step never aborts the run", func(t *testing.T) {
		healthCalled := false
		w := NewWarmer(WarmerConfig{}, WarmFuncs{
			Search: func(ctx context.Context, query string) error {
				return errors.New("provider down")
			},
			CheckHealth: func(ctx context.Context) error {
				healthCalled = true
				return errors.New("unhealthy")
			},
		}, zerolog.Nop(), nil)

		w.RecordQueryUsage("anything")

		assert.True(t, w.StartWarming(ctx))
		assert.True(t, healthCalled)
	})

	t.Run("concurrent warming is skipped, not queued", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{}, 1)
		var firstRun atomic.Bool

		w := NewWarmer(WarmerConfig{}, WarmFuncs{
			Search: func(ctx context.Context, query string) error {
				if firstRun.CompareAndSwap(false, true) {
					started <- struct{}{}
					<-release
				}
				return nil
			},
		}, zerolog.Nop(), nil)

		w.RecordQueryUsage("blocking query")

		var first atomic.Bool
		go func() {
			first.Store(w.StartWarming(ctx))
		}()

		<-started
		assert.False(t, w.StartWarming(ctx), "second run must be skipped while one is in flight")
		close(release)

		assert.Eventually(t, func() bool { return first.Load() }, time.Second, 5*time.Millisecond)

		// After the first run finishes the guard is clear again.
		assert.True(t, w.StartWarming(ctx))
	})

	t.Run("every top query goes through the search path", func(t *testing.T) {
		var mu sync.Mutex
		seen := map[string]int{}

		w := NewWarmer(WarmerConfig{TopQueries: 5}, WarmFuncs{
			Search: func(ctx context.Context, query string) error {
				mu.Lock()
				seen[query]++
				mu.Unlock()
				return nil
			},
		}, zerolog.Nop(), nil)

		// Freshness is the search path's concern: it consults the cache
		// itself, so the warmer hands over even recently-run queries.
		w.RecordQueryUsage("already warm")

		require.True(t, w.StartWarming(ctx))

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 1, seen["already warm"])
		for _, query := range commonFacetQueries {
			assert.Equal(t, 1, seen[query])
		}
	})
}

func TestWarmer_PopularQueries(t *testing.T) {
	w := NewWarmer(WarmerConfig{TopQueries: 1}, WarmFuncs{}, zerolog.Nop(), nil)

	for i := 0; i < 3; i++ {
		w.RecordQueryUsage("transformers")
	}
	w.RecordQueryUsage("graphene")

	// All tracked queries, most used first, unaffected by TopQueries.
	assert.Equal(t, []string{"transformers", "graphene"}, w.PopularQueries())
}

func TestWarmer_Pruning(t *testing.T) {
	w := NewWarmer(WarmerConfig{
		QueryWindow:  time.Millisecond,
		RecordWindow: time.Millisecond,
	}, WarmFuncs{}, zerolog.Nop(), nil)

	w.RecordQueryUsage("stale query")
	w.RecordPaperAccess("10.9999/stale")
	time.Sleep(5 * time.Millisecond)

	w.prune()

	assert.Empty(t, w.topQueries())
	assert.Empty(t, w.topRecords())
}
