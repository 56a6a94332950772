package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/federated-search-service/internal/domain"
)

func newTestAggregator(registry *Registry, timeout time.Duration) *AggregatorManager {
	return NewAggregatorManager(registry, timeout, zerolog.Nop(), nil)
}

func TestSearchAggregators(t *testing.T) {
	t.Run("collects one result per enabled roster provider", func(t *testing.T) {
		registry := NewRegistry()
		for _, source := range AggregatorRoster {
			s := source
			conn := newMockConnector(s, true)
			conn.searchFunc = func(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Record, error) {
				return []domain.Record{testRecord(s, "1", "paper from "+string(s))}, nil
			}
			registry.Register(conn)
		}

		agg := newTestAggregator(registry, time.Second)
		results := agg.SearchAggregators(context.Background(), domain.SearchCriteria{TitleOrKeywords: "test"})

		require.Len(t, results, len(AggregatorRoster))
		for i, result := range results {
			assert.Equal(t, AggregatorRoster[i], result.Source)
			assert.NoError(t, result.Err)
			assert.Len(t, result.Records, 1)
		}
	})

	t.Run("timed out provider yields empty records and an error, others succeed", func(t *testing.T) {
		registry := NewRegistry()

		// Five providers: four fast, one exceeding its timeout.
		roster := AggregatorRoster[:5]
		for i, source := range roster {
			s := source
			conn := newMockConnector(s, true)
			if i == 2 {
				conn.searchFunc = func(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Record, error) {
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					case <-time.After(5 * time.Second):
						return []domain.Record{testRecord(s, "slow", "too late")}, nil
					}
				}
			} else {
				conn.searchFunc = func(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Record, error) {
					return []domain.Record{testRecord(s, "1", "fast")}, nil
				}
			}
			registry.Register(conn)
		}

		agg := newTestAggregator(registry, 50*time.Millisecond)
		results := agg.SearchAggregators(context.Background(), domain.SearchCriteria{TitleOrKeywords: "test"})

		require.Len(t, results, 5)

		withRecords := 0
		var failed *AggregateResult
		for i := range results {
			if results[i].Err != nil {
				failed = &results[i]
				continue
			}
			if len(results[i].Records) > 0 {
				withRecords++
			}
		}

		assert.Equal(t, 4, withRecords)
		require.NotNil(t, failed, "the slow provider should report an error")
		assert.Empty(t, failed.Records)
		assert.True(t, errors.Is(failed.Err, domain.ErrTimeout), "error should be a timeout, got %v", failed.Err)
	})

	t.Run("provider error never fails the overall call", func(t *testing.T) {
		registry := NewRegistry()

		ok := newMockConnector(domain.SourceCORE, true)
		ok.searchFunc = func(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Record, error) {
			return []domain.Record{testRecord(domain.SourceCORE, "1", "ok")}, nil
		}
		bad := newMockConnector(domain.SourceOpenAIRE, true)
		bad.searchFunc = func(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Record, error) {
			return nil, domain.NewProviderError(domain.SourceOpenAIRE, 502, "bad gateway", nil)
		}

		registry.Register(ok)
		registry.Register(bad)

		agg := newTestAggregator(registry, time.Second)
		results := agg.SearchAggregators(context.Background(), domain.SearchCriteria{TitleOrKeywords: "test"})

		require.Len(t, results, 2)
		assert.NoError(t, results[0].Err)
		assert.Error(t, results[1].Err)
		assert.NotNil(t, results[1].Records)
		assert.Empty(t, results[1].Records)
	})

	t.Run("panicking provider is contained", func(t *testing.T) {
		registry := NewRegistry()

		conn := newMockConnector(domain.SourceCORE, true)
		conn.searchFunc = func(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Record, error) {
			panic("connector bug")
		}
		registry.Register(conn)

		agg := newTestAggregator(registry, time.Second)
		results := agg.SearchAggregators(context.Background(), domain.SearchCriteria{TitleOrKeywords: "test"})

		require.Len(t, results, 1)
		assert.Error(t, results[0].Err)
		assert.Empty(t, results[0].Records)
	})

	t.Run("skips disabled and unregistered roster members", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockConnector(domain.SourceCORE, true))
		registry.Register(newMockConnector(domain.SourceOpenAIRE, false))

		agg := newTestAggregator(registry, time.Second)
		results := agg.SearchAggregators(context.Background(), domain.SearchCriteria{TitleOrKeywords: "test"})

		require.Len(t, results, 1)
		assert.Equal(t, domain.SourceCORE, results[0].Source)
	})

	t.Run("searches run concurrently", func(t *testing.T) {
		registry := NewRegistry()
		for _, source := range AggregatorRoster {
			conn := newMockConnector(source, true)
			conn.searchFunc = func(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Record, error) {
				time.Sleep(50 * time.Millisecond)
				return []domain.Record{}, nil
			}
			registry.Register(conn)
		}

		agg := newTestAggregator(registry, time.Second)

		start := time.Now()
		results := agg.SearchAggregators(context.Background(), domain.SearchCriteria{TitleOrKeywords: "test"})
		elapsed := time.Since(start)

		assert.Len(t, results, len(AggregatorRoster))
		// Sequential execution would take ~300ms for six providers.
		assert.Less(t, elapsed, 200*time.Millisecond,
			"aggregate searches should run concurrently, took %v", elapsed)
	})
}

func TestAggregatorStats(t *testing.T) {
	registry := NewRegistry()
	registry.Register(newMockConnector(domain.SourceCORE, true))
	registry.Register(newMockConnector(domain.SourceOpenAIRE, false))

	agg := newTestAggregator(registry, 2*time.Second)
	stats := agg.Stats()

	require.Len(t, stats, len(AggregatorRoster))

	bySource := make(map[domain.Source]AggregatorStat)
	for _, s := range stats {
		bySource[s.Source] = s
	}

	assert.True(t, bySource[domain.SourceCORE].Enabled)
	assert.False(t, bySource[domain.SourceOpenAIRE].Enabled)
	assert.False(t, bySource[domain.SourceNCBI].Enabled, "unregistered roster member reports disabled")
	assert.Equal(t, 2*time.Second, bySource[domain.SourceCORE].Timeout)
}
