package fallback

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/federated-search-service/internal/domain"
)

func newTestManager() *Manager {
	return NewManager(zerolog.Nop())
}

func record(source domain.Source, id, title string) domain.Record {
	return domain.Record{
		ID:       domain.RecordID(source, id),
		Title:    title,
		Source:   source,
		SourceID: id,
	}
}

func succeedWith(records ...domain.Record) func(ctx context.Context) ([]domain.Record, error) {
	return func(ctx context.Context) ([]domain.Record, error) {
		return records, nil
	}
}

func failWith(err error) func(ctx context.Context) ([]domain.Record, error) {
	return func(ctx context.Context) ([]domain.Record, error) {
		return nil, err
	}
}

func TestExecuteFallbacks(t *testing.T) {
	t.Run("returns results in ascending priority order", func(t *testing.T) {
		m := newTestManager()

		ops := []Operation{
			{Name: "slow-index", Priority: 3, Run: succeedWith(record(domain.SourceCORE, "3", "c"))},
			{Name: "primary", Priority: 1, Run: succeedWith(record(domain.SourceCrossref, "1", "a"))},
			{Name: "secondary", Priority: 2, Run: succeedWith(record(domain.SourceOpenAlex, "2", "b"))},
		}

		results := m.ExecuteFallbacks(context.Background(), ops, Options{})

		require.Len(t, results, 3)
		assert.Equal(t, "primary", results[0].Name)
		assert.Equal(t, "secondary", results[1].Name)
		assert.Equal(t, "slow-index", results[2].Name)
		for _, r := range results {
			assert.True(t, r.Success)
			assert.Len(t, r.Records, 1)
			assert.Equal(t, 1, r.Attempts)
		}
	})

	t.Run("retries a flaky operation up to the retry budget", func(t *testing.T) {
		m := newTestManager()

		var calls atomic.Int32
		ops := []Operation{{
			Name: "flaky",
			Run: func(ctx context.Context) ([]domain.Record, error) {
				if calls.Add(1) < 3 {
					return nil, errors.New("transient")
				}
				return []domain.Record{record(domain.SourceCrossref, "1", "ok")}, nil
			},
		}}

		results := m.ExecuteFallbacks(context.Background(), ops, Options{
			RetryAttempts: 2,
			RetryDelay:    time.Millisecond,
		})

		require.Len(t, results, 1)
		assert.True(t, results[0].Success)
		assert.Equal(t, 3, results[0].Attempts)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("exhausted retries yield a failure result, not an error", func(t *testing.T) {
		m := newTestManager()

		ops := []Operation{
			{Name: "broken", Run: failWith(errors.New("boom"))},
			{Name: "healthy", Run: succeedWith(record(domain.SourceOpenAlex, "1", "ok"))},
		}

		results := m.ExecuteFallbacks(context.Background(), ops, Options{
			RetryAttempts: 1,
			RetryDelay:    time.Millisecond,
		})

		require.Len(t, results, 2)
		assert.False(t, results[0].Success)
		assert.Error(t, results[0].Err)
		assert.Equal(t, 2, results[0].Attempts)
		assert.True(t, results[1].Success)
	})

	t.Run("per-call timeout converts a hung operation into a timeout failure", func(t *testing.T) {
		m := newTestManager()

		ops := []Operation{{
			Name:    "hung",
			Timeout: 20 * time.Millisecond,
			Run: func(ctx context.Context) ([]domain.Record, error) {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(5 * time.Second):
					return nil, nil
				}
			},
		}}

		results := m.ExecuteFallbacks(context.Background(), ops, Options{
			RetryAttempts: 0,
		})

		require.Len(t, results, 1)
		assert.False(t, results[0].Success)
		assert.True(t, errors.Is(results[0].Err, domain.ErrTimeout), "got %v", results[0].Err)
	})

	t.Run("panicking operation is contained", func(t *testing.T) {
		m := newTestManager()

		ops := []Operation{{
			Name: "buggy",
			Run: func(ctx context.Context) ([]domain.Record, error) {
				panic("connector bug")
			},
		}}

		results := m.ExecuteFallbacks(context.Background(), ops, Options{RetryAttempts: 0})

		require.Len(t, results, 1)
		assert.False(t, results[0].Success)
		assert.ErrorContains(t, results[0].Err, "panicked")
	})

	t.Run("fail fast cancels in-flight losers after the first success", func(t *testing.T) {
		m := newTestManager()

		slowCancelled := make(chan struct{})
		ops := []Operation{
			{
				Name:     "fast",
				Priority: 1,
				Run:      succeedWith(record(domain.SourceCrossref, "1", "winner")),
			},
			{
				Name:     "slow",
				Priority: 2,
				Run: func(ctx context.Context) ([]domain.Record, error) {
					select {
					case <-ctx.Done():
						close(slowCancelled)
						return nil, ctx.Err()
					case <-time.After(5 * time.Second):
						return []domain.Record{record(domain.SourceCORE, "2", "loser")}, nil
					}
				},
			},
		}

		start := time.Now()
		results := m.ExecuteFallbacks(context.Background(), ops, Options{
			FailFast:      true,
			RetryAttempts: 0,
		})
		elapsed := time.Since(start)

		require.Len(t, results, 2)
		assert.True(t, results[0].Success)
		assert.False(t, results[1].Success)
		assert.Less(t, elapsed, time.Second, "losing branch should be cancelled, not awaited")

		select {
		case <-slowCancelled:
		case <-time.After(time.Second):
			t.Fatal("slow operation was never cancelled")
		}
	})

	t.Run("empty operation list returns nil", func(t *testing.T) {
		m := newTestManager()
		assert.Nil(t, m.ExecuteFallbacks(context.Background(), nil, Options{}))
	})
}

func TestExecuteWithEarlyReturn(t *testing.T) {
	t.Run("returns first success without invoking later operations", func(t *testing.T) {
		m := newTestManager()

		var secondCalls atomic.Int32
		ops := []Operation{
			{Name: "first", Priority: 1, Run: succeedWith(record(domain.SourceCrossref, "1", "hit"))},
			{
				Name:     "second",
				Priority: 2,
				Run: func(ctx context.Context) ([]domain.Record, error) {
					secondCalls.Add(1)
					return []domain.Record{record(domain.SourceOpenAlex, "2", "unused")}, nil
				},
			},
		}

		result, err := m.ExecuteWithEarlyReturn(context.Background(), ops, Options{})
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "first", result.Name)
		assert.Equal(t, int32(0), secondCalls.Load(), "later candidates must not run after a success")
	})

	t.Run("falls through failures in priority order", func(t *testing.T) {
		m := newTestManager()

		ops := []Operation{
			{Name: "third", Priority: 3, Run: succeedWith(record(domain.SourceUnpaywall, "3", "hit"))},
			{Name: "first", Priority: 1, Run: failWith(errors.New("down"))},
			{Name: "second", Priority: 2, Run: failWith(errors.New("down"))},
		}

		result, err := m.ExecuteWithEarlyReturn(context.Background(), ops, Options{
			RetryAttempts: 0,
			RetryDelay:    time.Millisecond,
		})
		require.NoError(t, err)
		assert.Equal(t, "third", result.Name)
	})

	t.Run("all failures return ErrAllFailed", func(t *testing.T) {
		m := newTestManager()

		ops := []Operation{
			{Name: "a", Run: failWith(errors.New("down"))},
			{Name: "b", Run: failWith(errors.New("down"))},
		}

		result, err := m.ExecuteWithEarlyReturn(context.Background(), ops, Options{
			RetryAttempts: 0,
			RetryDelay:    time.Millisecond,
		})
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrAllFailed)
	})

	t.Run("empty operation list returns ErrAllFailed", func(t *testing.T) {
		m := newTestManager()
		result, err := m.ExecuteWithEarlyReturn(context.Background(), nil, Options{})
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrAllFailed)
	})
}

func TestExecuteInStages(t *testing.T) {
	t.Run("later stage is skipped once enough results accumulated", func(t *testing.T) {
		m := newTestManager()

		var slowCalls atomic.Int32
		stages := []Stage{
			{
				Name: "fast",
				Operations: []Operation{
					{Name: "crossref", Run: succeedWith(
						record(domain.SourceCrossref, "1", "a"),
						record(domain.SourceCrossref, "2", "b"),
					)},
				},
			},
			{
				Name: "medium",
				Operations: []Operation{
					{
						Name: "openalex",
						Run: func(ctx context.Context) ([]domain.Record, error) {
							slowCalls.Add(1)
							return []domain.Record{record(domain.SourceOpenAlex, "3", "c")}, nil
						},
					},
				},
			},
		}

		results := m.ExecuteInStages(context.Background(), stages, StageOptions{MaxResults: 2})

		require.Len(t, results, 1)
		assert.Equal(t, "fast", results[0].Stage)
		assert.Equal(t, int32(0), slowCalls.Load(), "medium stage should be skipped")
	})

	t.Run("all stages run when the threshold is not reached", func(t *testing.T) {
		m := newTestManager()

		stages := []Stage{
			{Name: "fast", Operations: []Operation{
				{Name: "crossref", Run: succeedWith(record(domain.SourceCrossref, "1", "a"))},
				{Name: "unpaywall", Run: failWith(errors.New("down"))},
			}},
			{Name: "medium", Operations: []Operation{
				{Name: "openalex", Run: succeedWith(record(domain.SourceOpenAlex, "2", "b"))},
			}},
		}

		results := m.ExecuteInStages(context.Background(), stages, StageOptions{
			MaxResults: 10,
			Options:    Options{RetryAttempts: 0, RetryDelay: time.Millisecond},
		})

		require.Len(t, results, 3)
		assert.Equal(t, "fast", results[0].Stage)
		assert.Equal(t, "fast", results[1].Stage)
		assert.Equal(t, "medium", results[2].Stage)
	})

	t.Run("zero threshold disables early stopping", func(t *testing.T) {
		m := newTestManager()

		stages := []Stage{
			{Name: "fast", Operations: []Operation{
				{Name: "a", Run: succeedWith(record(domain.SourceCrossref, "1", "a"))},
			}},
			{Name: "slow", Operations: []Operation{
				{Name: "b", Run: succeedWith(record(domain.SourceCORE, "2", "b"))},
			}},
		}

		results := m.ExecuteInStages(context.Background(), stages, StageOptions{})
		assert.Len(t, results, 2)
	})

	t.Run("failed stage results do not count toward the threshold", func(t *testing.T) {
		m := newTestManager()

		var secondStage atomic.Int32
		stages := []Stage{
			{Name: "fast", Operations: []Operation{
				{Name: "a", Run: failWith(errors.New("down"))},
			}},
			{Name: "medium", Operations: []Operation{
				{
					Name: "b",
					Run: func(ctx context.Context) ([]domain.Record, error) {
						secondStage.Add(1)
						return []domain.Record{record(domain.SourceOpenAlex, "1", "b")}, nil
					},
				},
			}},
		}

		results := m.ExecuteInStages(context.Background(), stages, StageOptions{
			MaxResults: 1,
			Options:    Options{RetryAttempts: 0, RetryDelay: time.Millisecond},
		})

		require.Len(t, results, 2)
		assert.Equal(t, int32(1), secondStage.Load())
	})
}
