package cache

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

func newTestAPICache(retryOnError map[domain.Source]bool, errorTTL time.Duration) *APICache {
	return NewAPICache(newTestManager(NewMemoryStore()), retryOnError, errorTTL, zerolog.Nop())
}

func TestAPICache_SuccessEntries(t *testing.T) {
	ctx := context.Background()
	c := newTestAPICache(nil, 0)

	require.Nil(t, c.Get(ctx, domain.SourceCrossref, "works", "doi=10.1/x"))

	c.Set(ctx, domain.SourceCrossref, "works", []byte(`{"title":"t"}`), "doi=10.1/x")

	got := c.Get(ctx, domain.SourceCrossref, "works", "doi=10.1/x")
	require.NotNil(t, got)
	assert.Empty(t, got.ErrorMsg)
	assert.JSONEq(t, `{"title":"t"}`, string(got.Payload))

	// Different params are different entries.
	assert.Nil(t, c.Get(ctx, domain.SourceCrossref, "works", "doi=10.1/y"))
}

func TestAPICache_ErrorEntries(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh error is served from cache", func(t *testing.T) {
		c := newTestAPICache(nil, time.Minute)

		c.SetError(ctx, domain.SourceCORE, "search", errors.New("upstream 503"), "q=x")

		got := c.Get(ctx, domain.SourceCORE, "search", "q=x")
		require.NotNil(t, got)
		assert.Equal(t, "upstream 503", got.ErrorMsg)
		assert.Nil(t, got.Payload)
	})

	t.Run("expired error with retry enabled becomes a miss", func(t *testing.T) {
		c := newTestAPICache(map[domain.Source]bool{domain.SourceCORE: true}, time.Millisecond)

		c.SetError(ctx, domain.SourceCORE, "search", errors.New("upstream 503"), "q=x")
		time.Sleep(5 * time.Millisecond)

		assert.Nil(t, c.Get(ctx, domain.SourceCORE, "search", "q=x"))
	})

	t.Run("expired error without retry keeps serving the error", func(t *testing.T) {
		c := newTestAPICache(map[domain.Source]bool{domain.SourceCORE: false}, time.Millisecond)

		c.SetError(ctx, domain.SourceCORE, "search", errors.New("upstream 503"), "q=x")
		time.Sleep(5 * time.Millisecond)

		got := c.Get(ctx, domain.SourceCORE, "search", "q=x")
		require.NotNil(t, got)
		assert.Equal(t, "upstream 503", got.ErrorMsg)
	})

	t.Run("sources absent from the retry map default to retrying", func(t *testing.T) {
		c := newTestAPICache(map[domain.Source]bool{domain.SourceCORE: false}, time.Millisecond)

		c.SetError(ctx, domain.SourceNCBI, "search", errors.New("down"), "q=y")
		time.Sleep(5 * time.Millisecond)

		assert.Nil(t, c.Get(ctx, domain.SourceNCBI, "search", "q=y"))
	})
}

func TestAPICache_InvalidateAll(t *testing.T) {
	ctx := context.Background()
	c := newTestAPICache(nil, 0)

	c.Set(ctx, domain.SourceCrossref, "works", []byte(`{}`), "a")
	c.Set(ctx, domain.SourceOpenAlex, "works", []byte(`{}`), "b")

	removed := c.InvalidateAll(ctx)
	assert.Greater(t, removed, 0)
	assert.Nil(t, c.Get(ctx, domain.SourceCrossref, "works", "a"))
	assert.Nil(t, c.Get(ctx, domain.SourceOpenAlex, "works", "b"))
}
