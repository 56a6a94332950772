package cache

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/federated-search-service/internal/domain"
)

func newTestPaperCache() *PaperCache {
	return NewPaperCache(newTestManager(NewMemoryStore()), zerolog.Nop())
}

func enrichedPaper() *domain.EnrichedRecord {
	return &domain.EnrichedRecord{
		Record: domain.Record{
			ID:       domain.RecordID(domain.SourceCrossref, "C42"),
			DOI:      "10.1234/triple",
			Title:    "A Paper Indexed Three Ways",
			Source:   domain.SourceCrossref,
			SourceID: "C42",
		},
	}
}

func TestPaperCache_TripleIndex(t *testing.T) {
	ctx := context.Background()
	c := newTestPaperCache()

	rec := enrichedPaper()
	c.Set(ctx, rec)

	t.Run("retrievable by id", func(t *testing.T) {
		got := c.GetByID(ctx, rec.ID)
		require.NotNil(t, got)
		assert.Equal(t, rec.Title, got.Title)
	})

	t.Run("retrievable by doi in any written form", func(t *testing.T) {
		got := c.GetByDOI(ctx, "https://doi.org/10.1234/TRIPLE")
		require.NotNil(t, got)
		assert.Equal(t, rec.ID, got.ID)
	})

	t.Run("retrievable by title ignoring case and spacing", func(t *testing.T) {
		got := c.GetByTitle(ctx, "  a paper   indexed THREE ways ")
		require.NotNil(t, got)
		assert.Equal(t, rec.ID, got.ID)
	})

	t.Run("unknown keys miss", func(t *testing.T) {
		assert.Nil(t, c.GetByID(ctx, "openalex:W999"))
		assert.Nil(t, c.GetByDOI(ctx, "10.9999/nope"))
		assert.Nil(t, c.GetByTitle(ctx, "unseen title"))
	})
}

func TestPaperCache_PartialKeys(t *testing.T) {
	ctx := context.Background()
	c := newTestPaperCache()

	noDOI := &domain.EnrichedRecord{
		Record: domain.Record{
			ID:     domain.RecordID(domain.SourceArXiv, "2401.00001"),
			Title:  "Preprint Without DOI",
			Source: domain.SourceArXiv,
		},
	}
	c.Set(ctx, noDOI)

	assert.NotNil(t, c.GetByID(ctx, noDOI.ID))
	assert.NotNil(t, c.GetByTitle(ctx, noDOI.Title))
	assert.Nil(t, c.GetByDOI(ctx, ""))
}

func TestPaperCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := newTestPaperCache()

	rec := enrichedPaper()
	c.Set(ctx, rec)
	c.Invalidate(ctx, rec)

	assert.Nil(t, c.GetByID(ctx, rec.ID))
	assert.Nil(t, c.GetByDOI(ctx, rec.DOI))
	assert.Nil(t, c.GetByTitle(ctx, rec.Title))
}

func TestPaperCache_InvalidateAll(t *testing.T) {
	ctx := context.Background()
	c := newTestPaperCache()

	c.Set(ctx, enrichedPaper())
	removed := c.InvalidateAll(ctx)
	assert.Greater(t, removed, 0)
	assert.Nil(t, c.GetByID(ctx, enrichedPaper().ID))
}
